package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/dokzlo13/huedash/internal/remote"
)

const (
	DefaultBaseURL  = "https://api.spotify.com/v1"
	DefaultTokenURL = "https://accounts.spotify.com/api/token"
)

// TokenConfig describes how access tokens are obtained. Acquiring the
// initial refresh token (the authorization code flow) happens elsewhere.
type TokenConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	AccessToken  string // used as-is when no refresh token is set
	TokenURL     string
}

// NewTokenSource returns a refreshing token source when a refresh token and
// client ID are configured, otherwise a static one.
func NewTokenSource(ctx context.Context, cfg TokenConfig) (oauth2.TokenSource, error) {
	if cfg.RefreshToken != "" {
		if cfg.ClientID == "" {
			return nil, fmt.Errorf("spotify client_id is required with a refresh token")
		}
		tokenURL := cfg.TokenURL
		if tokenURL == "" {
			tokenURL = DefaultTokenURL
		}
		oc := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		}
		return oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken}), nil
	}

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("spotify access_token or refresh_token is required")
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken}), nil
}

// Client calls the Spotify Web API player endpoints.
type Client struct {
	remote  *remote.Client
	baseURL string
	tokens  oauth2.TokenSource
}

// NewClient creates a client. baseURL "" uses DefaultBaseURL.
func NewClient(rc *remote.Client, baseURL string, tokens oauth2.TokenSource) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		remote:  rc,
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
	}
}

// PlaybackState returns the current playback. A nil state with a nil error
// means no device is active.
func (c *Client) PlaybackState(ctx context.Context) (*PlaybackState, error) {
	var state *PlaybackState
	if err := c.do(ctx, http.MethodGet, "/me/player", &state); err != nil {
		return nil, fmt.Errorf("failed to get playback state: %w", err)
	}
	return state, nil
}

// Queue returns the upcoming tracks.
func (c *Client) Queue(ctx context.Context) (*Queue, error) {
	var queue Queue
	if err := c.do(ctx, http.MethodGet, "/me/player/queue", &queue); err != nil {
		return nil, fmt.Errorf("failed to get queue: %w", err)
	}
	return &queue, nil
}

// Artist returns the full artist object.
func (c *Client) Artist(ctx context.Context, id string) (*HydratedArtist, error) {
	var artist HydratedArtist
	if err := c.do(ctx, http.MethodGet, "/artists/"+url.PathEscape(id), &artist); err != nil {
		return nil, fmt.Errorf("failed to get artist %s: %w", id, err)
	}
	return &artist, nil
}

func (c *Client) Play(ctx context.Context) error {
	return c.command(ctx, http.MethodPut, "/me/player/play")
}

func (c *Client) Pause(ctx context.Context) error {
	return c.command(ctx, http.MethodPut, "/me/player/pause")
}

func (c *Client) Next(ctx context.Context) error {
	return c.command(ctx, http.MethodPost, "/me/player/next")
}

func (c *Client) Previous(ctx context.Context) error {
	return c.command(ctx, http.MethodPost, "/me/player/previous")
}

// Shuffle turns shuffle on or off.
func (c *Client) Shuffle(ctx context.Context, state bool) error {
	return c.command(ctx, http.MethodPut, fmt.Sprintf("/me/player/shuffle?state=%t", state))
}

// Repeat sets the repeat mode.
func (c *Client) Repeat(ctx context.Context, mode RepeatMode) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid repeat mode %q", mode)
	}
	return c.command(ctx, http.MethodPut, "/me/player/repeat?state="+url.QueryEscape(string(mode)))
}

func (c *Client) command(ctx context.Context, method, path string) error {
	if err := c.do(ctx, method, path, nil); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	token, err := c.token()
	if err != nil {
		return err
	}
	return c.remote.Do(ctx, method, c.baseURL+path, remote.Options{AuthToken: token}, out)
}

// token maps token acquisition failures onto the remote error taxonomy.
func (c *Client) token() (string, error) {
	tok, err := c.tokens.Token()
	if err == nil {
		return tok.AccessToken, nil
	}

	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		msg := re.ErrorDescription
		if msg == "" {
			msg = re.ErrorCode
		}
		if msg == "" {
			msg = http.StatusText(re.Response.StatusCode)
		}
		return "", &remote.RejectionError{Status: re.Response.StatusCode, Message: msg}
	}
	return "", &remote.TransportError{Err: err}
}
