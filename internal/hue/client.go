package hue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/amimof/huego"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/huedash/internal/color"
	"github.com/dokzlo13/huedash/internal/remote"
)

// Client talks to the Hue bridge v1 local API.
type Client struct {
	remote  *remote.Client
	baseURL string
	limiter *rate.Limiter
}

// NewClient creates a bridge client. bridge is the bridge address or URL,
// username the whitelisted API user. writeRPS limits state writes
// (0 = 10 requests per second).
func NewClient(rc *remote.Client, bridge, username string, writeRPS float64) *Client {
	if writeRPS == 0 {
		writeRPS = 10.0
	}
	burst := int(writeRPS)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		remote:  rc,
		baseURL: fmt.Sprintf("%s/api/%s", bridgeURL(bridge), username),
		limiter: rate.NewLimiter(rate.Limit(writeRPS), burst),
	}
}

func bridgeURL(bridge string) string {
	bridge = strings.TrimRight(bridge, "/")
	if !strings.Contains(bridge, "://") {
		bridge = "http://" + bridge
	}
	return bridge
}

// Command is a light state or group action write.
type Command struct {
	Color color.Color
	On    bool
	// Dimmable lights have no hue channel and only accept brightness.
	Dimmable bool
}

// stateUpdate is the body of a light state or group action write.
// The bridge rejects color parameters for lights that are off or have no
// color channel, so those are left out.
type stateUpdate struct {
	On  bool    `json:"on"`
	Hue *uint16 `json:"hue,omitempty"`
	Sat *uint8  `json:"sat,omitempty"`
	Bri *uint8  `json:"bri,omitempty"`
}

func newStateUpdate(cmd Command) stateUpdate {
	u := stateUpdate{On: cmd.On}
	if !cmd.On {
		return u
	}
	v := cmd.Color.Vendor()
	u.Bri = &v.Bri
	if !cmd.Dimmable {
		u.Hue = &v.Hue
		u.Sat = &v.Sat
	}
	return u
}

// GetLights returns all lights keyed by ID.
func (c *Client) GetLights(ctx context.Context) (map[string]huego.Light, error) {
	var lights map[string]huego.Light
	if err := c.get(ctx, "lights", &lights); err != nil {
		return nil, fmt.Errorf("failed to get lights: %w", err)
	}
	return lights, nil
}

// GetLight returns a single light.
func (c *Client) GetLight(ctx context.Context, id string) (huego.Light, error) {
	var light huego.Light
	if err := c.get(ctx, "lights/"+id, &light); err != nil {
		return huego.Light{}, fmt.Errorf("failed to get light %s: %w", id, err)
	}
	return light, nil
}

// GetGroups returns all groups keyed by ID.
func (c *Client) GetGroups(ctx context.Context) (map[string]huego.Group, error) {
	var groups map[string]huego.Group
	if err := c.get(ctx, "groups", &groups); err != nil {
		return nil, fmt.Errorf("failed to get groups: %w", err)
	}
	return groups, nil
}

// GetGroup returns a single group.
func (c *Client) GetGroup(ctx context.Context, id string) (huego.Group, error) {
	var group huego.Group
	if err := c.get(ctx, "groups/"+id, &group); err != nil {
		return huego.Group{}, fmt.Errorf("failed to get group %s: %w", id, err)
	}
	return group, nil
}

// SetLight writes color and power to a light.
func (c *Client) SetLight(ctx context.Context, id string, cmd Command) error {
	if err := c.put(ctx, fmt.Sprintf("lights/%s/state", id), newStateUpdate(cmd)); err != nil {
		return fmt.Errorf("failed to set light %s: %w", id, err)
	}
	log.Debug().Str("light", id).Bool("on", cmd.On).Str("color", cmd.Color.String()).Msg("Light state written")
	return nil
}

// SetGroup writes color and power to a group.
func (c *Client) SetGroup(ctx context.Context, id string, cmd Command) error {
	if err := c.put(ctx, fmt.Sprintf("groups/%s/action", id), newStateUpdate(cmd)); err != nil {
		return fmt.Errorf("failed to set group %s: %w", id, err)
	}
	log.Debug().Str("group", id).Bool("on", cmd.On).Str("color", cmd.Color.String()).Msg("Group action written")
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	var raw json.RawMessage
	if err := c.remote.Get(ctx, c.baseURL+"/"+path, remote.Options{}, &raw); err != nil {
		return err
	}
	return decode(raw, out)
}

func (c *Client) put(ctx context.Context, path string, body any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &remote.TransportError{Err: err}
	}

	var raw json.RawMessage
	err := c.remote.Put(ctx, c.baseURL+"/"+path, remote.Options{Body: body, ContentType: remote.JSON}, &raw)
	if err != nil {
		return err
	}
	return writeResult(path, raw)
}

// apiResult is an entry of the bridge's reply array.
type apiResult struct {
	Success json.RawMessage `json:"success"`
	Error   *struct {
		Type        int    `json:"type"`
		Address     string `json:"address"`
		Description string `json:"description"`
	} `json:"error"`
}

// writeResult checks a write reply. The bridge answers per parameter, so a
// reply with at least one success entry means the write was applied; the
// remaining errors name parameters the device refused.
func writeResult(path string, raw json.RawMessage) error {
	var entries []apiResult
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}

	applied := false
	for _, e := range entries {
		if len(e.Success) > 0 {
			applied = true
		}
	}
	if !applied {
		if rej := bridgeError(raw); rej != nil {
			return rej
		}
		return nil
	}

	for _, e := range entries {
		if e.Error != nil {
			log.Debug().
				Str("path", path).
				Int("type", e.Error.Type).
				Str("address", e.Error.Address).
				Str("description", e.Error.Description).
				Msg("Bridge ignored parameter")
		}
	}
	return nil
}

// decode unmarshals a bridge reply, turning an error array into a rejection.
func decode(raw json.RawMessage, out any) error {
	if rej := bridgeError(raw); rej != nil {
		return rej
	}
	if len(raw) == 0 {
		return &remote.MalformedError{Err: fmt.Errorf("empty reply")}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &remote.MalformedError{Err: err}
	}
	return nil
}

// bridgeError inspects a reply for the bridge's error array. The bridge
// reports failures with status 200, so they are mapped onto HTTP-like codes.
func bridgeError(raw json.RawMessage) *remote.RejectionError {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "[") {
		return nil
	}

	var entries []apiResult
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}
	for _, e := range entries {
		if e.Error == nil {
			continue
		}
		status := 400
		switch e.Error.Type {
		case 1:
			status = 403 // unauthorized user
		case 3:
			status = 404 // resource not available
		case 901:
			status = 500 // internal bridge error
		}
		return &remote.RejectionError{Status: status, Message: e.Error.Description}
	}
	return nil
}
