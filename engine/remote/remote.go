// Package remote talks to a synthesis sidecar over HTTP.
//
// The sidecar keeps the model loaded between calls. It must answer
// GET /health?model=<name> with 200 once that model is loaded (404 for an
// unknown one) and POST /synthesize with audio/wav.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/synthcache/engine"
)

const Kind = "remote"

// bound on a sidecar response body
const maxAudio = 256 << 20

func init() {
	engine.Register(Kind, func(ctx context.Context, cfg engine.Config) (engine.Engine, error) {
		c, err := New(cfg.URL)
		if err != nil {
			return nil, err
		}
		pctx, cancel := context.WithTimeout(ctx, cfg.OpenTimeout)
		defer cancel()
		if err := c.Probe(pctx, cfg.DefaultModel); err != nil {
			return nil, err
		}
		return c, nil
	})
}

type Client struct {
	client *http.Client

	url string
}

var _ engine.Engine = (*Client)(nil)

type Option func(*Client)

func WithClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

func New(url string, options ...Option) (*Client, error) {
	if url == "" {
		return nil, errors.New("remote engine: invalid url")
	}

	c := &Client{
		client: http.DefaultClient,

		url: strings.TrimRight(url, "/"),
	}

	for _, option := range options {
		option(c)
	}

	return c, nil
}

type synthesizeRequest struct {
	Text           string  `json:"text"`
	Model          string  `json:"model"`
	Speaker        *string `json:"speaker,omitempty"`
	SplitSentences bool    `json:"split_sentences"`
}

// Probe checks that the sidecar is healthy and, when model is not empty,
// that it can serve model.
func (c *Client) Probe(ctx context.Context, model string) error {
	u, _ := url.JoinPath(c.url, "/health")
	if model != "" {
		u += "?" + url.Values{"model": {model}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", engine.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case http.StatusNotFound:
		return convertError(resp, model)
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: health returned %s", engine.ErrUnavailable, resp.Status)
	}
}

func (c *Client) Synthesize(ctx context.Context, in engine.Input) (*engine.Audio, error) {
	body, err := json.Marshal(synthesizeRequest{
		Text:           in.Text,
		Model:          in.Model,
		Speaker:        in.Speaker,
		SplitSentences: in.SplitSentences,
	})
	if err != nil {
		return nil, err
	}

	u, _ := url.JoinPath(c.url, "/synthesize")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", engine.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, convertError(resp, in.Model)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudio+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxAudio {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", engine.ErrInvalidOutput, maxAudio)
	}
	if !engine.IsWAV(data) {
		return nil, fmt.Errorf("%w: response is not RIFF/WAVE", engine.ErrInvalidOutput)
	}
	return &engine.Audio{Data: data, Format: "wav"}, nil
}

func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func convertError(resp *http.Response, model string) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", engine.ErrUnknownModel, model)
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusBadGateway:
		return fmt.Errorf("%w: %s", engine.ErrUnavailable, msg)
	default:
		return fmt.Errorf("remote engine: %s: %s", resp.Status, msg)
	}
}
