// Package remote is a small authenticated HTTP helper shared by the Hue and
// Spotify clients. It encodes request bodies, injects bearer tokens and
// classifies failures into rejections, transport failures and malformed
// payloads. It never retries.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ContentType selects how a request body is encoded.
type ContentType int

const (
	// Raw sends the body as its string form without a Content-Type header.
	Raw ContentType = iota
	JSON
	Form
)

func (c ContentType) header() string {
	switch c {
	case JSON:
		return "application/json"
	case Form:
		return "application/x-www-form-urlencoded"
	default:
		return ""
	}
}

// Options configures a single request.
type Options struct {
	Body        any
	ContentType ContentType
	AuthToken   string
	Headers     map[string]string
}

// Client performs requests against vendor HTTP APIs.
type Client struct {
	httpClient *http.Client
}

// New creates a client with the given timeout (0 = 10s).
func New(timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// NewWithHTTPClient wraps an existing http.Client.
func NewWithHTTPClient(hc *http.Client) *Client {
	return &Client{httpClient: hc}
}

// HTTPClient returns the underlying http.Client.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// Get issues a GET request and decodes the response into out (may be nil).
func (c *Client) Get(ctx context.Context, rawURL string, opts Options, out any) error {
	opts.Body = nil
	return c.Do(ctx, http.MethodGet, rawURL, opts, out)
}

// Put issues a PUT request.
func (c *Client) Put(ctx context.Context, rawURL string, opts Options, out any) error {
	return c.Do(ctx, http.MethodPut, rawURL, opts, out)
}

// Post issues a POST request.
func (c *Client) Post(ctx context.Context, rawURL string, opts Options, out any) error {
	return c.Do(ctx, http.MethodPost, rawURL, opts, out)
}

// Do performs the request. A 204 or an empty body leaves out untouched.
func (c *Client) Do(ctx context.Context, method, rawURL string, opts Options, out any) error {
	body, err := encodeBody(opts.Body, opts.ContentType)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if opts.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+opts.AuthToken)
	}
	if body != nil && opts.ContentType.header() != "" {
		req.Header.Set("Content-Type", opts.ContentType.header())
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("method", method).Str("url", rawURL).Msg("Request failed without response")
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	log.Debug().
		Str("method", method).
		Str("url", rawURL).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("Request completed")

	if resp.StatusCode >= 400 && resp.StatusCode < 600 {
		return &RejectionError{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, data)}
	}

	if resp.StatusCode == http.StatusNoContent || out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &MalformedError{Err: err}
	}
	return nil
}

func encodeBody(body any, ct ContentType) ([]byte, error) {
	if body == nil {
		return nil, nil
	}

	switch ct {
	case JSON:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode json body: %w", err)
		}
		return data, nil
	case Form:
		switch v := body.(type) {
		case url.Values:
			return []byte(v.Encode()), nil
		case map[string]string:
			values := url.Values{}
			for k, val := range v {
				values.Set(k, val)
			}
			return []byte(values.Encode()), nil
		default:
			return nil, fmt.Errorf("unsupported form body type %T", body)
		}
	default:
		return []byte(fmt.Sprint(body)), nil
	}
}

// errorMessage extracts a human-readable message from a vendor error document.
func errorMessage(status int, data []byte) string {
	var doc struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
		Desc    string          `json:"error_description"`
	}
	if err := json.Unmarshal(data, &doc); err == nil {
		if doc.Message != "" {
			return doc.Message
		}
		if doc.Desc != "" {
			return doc.Desc
		}
		if len(doc.Error) > 0 {
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(doc.Error, &nested) == nil && nested.Message != "" {
				return nested.Message
			}
			var plain string
			if json.Unmarshal(doc.Error, &plain) == nil && plain != "" {
				return plain
			}
		}
	}

	if text := strings.TrimSpace(string(data)); text != "" {
		return text
	}
	return http.StatusText(status)
}
