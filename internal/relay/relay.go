// Package relay routes arbitrary fetches and media URLs through an ordered
// chain of third-party CORS relays. Every extractor depends on it; failures
// here are soft and signal "try the next strategy", never fatal.
package relay

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"streamsift/internal/config"
	"streamsift/pkg/logger"
)

const (
	fetchTimeout = 9 * time.Second
	probeTimeout = 5 * time.Second

	// Relays answer errors with short HTML stubs and 200s often enough
	// that anything under this size is treated as garbage.
	minBodyLen = 50

	maxBodyLen = 32 << 20
)

// Client tries relay endpoints in order until one yields a usable payload.
type Client struct {
	cfg  *config.Config
	http *http.Client

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New builds a relay client. A nil httpClient gets a default with sane
// timeouts; tests inject their own transport.
func New(cfg *config.Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: fetchTimeout + time.Second}
	}
	return &Client{
		cfg:      cfg,
		http:     httpClient,
		limiters: make(map[string]*rate.Limiter),
	}
}

// limiter returns the per-endpoint rate limiter. Fallback loops can hit the
// same public relay many times in a burst; this keeps us polite.
func (c *Client) limiter(name string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[name]
	if !ok {
		l = rate.NewLimiter(rate.Limit(4), 8)
		c.limiters[name] = l
	}
	return l
}

// Fetch retrieves the body of target through the relay chain. The second
// return is false when every endpoint failed; callers treat that as "move
// on", not as an error.
func (c *Client) Fetch(ctx context.Context, target string) ([]byte, bool) {
	return c.fetch(ctx, target, false)
}

// FetchJSON retrieves target through the relay chain and decodes the
// payload into out.
func (c *Client) FetchJSON(ctx context.Context, target string, out any) bool {
	payload, ok := c.fetch(ctx, target, true)
	if !ok {
		return false
	}
	if err := json.Unmarshal(payload, out); err != nil {
		slog.Log(ctx, logger.LevelTrace, "relay payload did not match expected shape", "target", target, "error", err)
		return false
	}
	return true
}

func (c *Client) fetch(ctx context.Context, target string, wantJSON bool) ([]byte, bool) {
	for _, ep := range FetchEndpoints(c.cfg) {
		payload, ok := c.tryEndpoint(ctx, ep, target, wantJSON)
		if ok {
			return payload, true
		}
		if ctx.Err() != nil {
			break
		}
	}
	slog.Debug("all relay endpoints exhausted", "target", target)
	return nil, false
}

func (c *Client) tryEndpoint(ctx context.Context, ep Endpoint, target string, wantJSON bool) ([]byte, bool) {
	if err := c.limiter(ep.Name).Wait(ctx); err != nil {
		return nil, false
	}

	reqCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, ep.Wrap(target), nil)
	if err != nil {
		return nil, false
	}
	req.Header.Set("Accept", "*/*")

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Log(ctx, logger.LevelTrace, "relay endpoint failed", "endpoint", ep.Name, "error", err)
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Log(ctx, logger.LevelTrace, "relay endpoint returned non-OK", "endpoint", ep.Name, "status", resp.StatusCode)
		return nil, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyLen))
	if err != nil {
		return nil, false
	}

	payload, ok := unwrap(body, ep.Envelope)
	if !ok {
		return nil, false
	}
	if wantJSON && !json.Valid(payload) {
		return nil, false
	}
	return payload, true
}

// envelope is the wrapper format of the mirror-get relay.
type envelope struct {
	Contents string `json:"contents"`
	Status   struct {
		HTTPCode int `json:"http_code"`
	} `json:"status"`
}

// unwrap pulls the real payload out of an envelope response. Non-envelope
// endpoints occasionally return envelope-shaped bodies too (chained
// relays), so the unwrap is attempted opportunistically either way.
func unwrap(body []byte, expectEnvelope bool) ([]byte, bool) {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Contents != "" {
		if env.Status.HTTPCode != 0 && (env.Status.HTTPCode < 200 || env.Status.HTTPCode > 299) {
			return nil, false
		}
		return []byte(env.Contents), true
	}
	if expectEnvelope {
		return nil, false
	}
	if len(body) < minBodyLen {
		return nil, false
	}
	return body, true
}

// MediaURL wraps a raw (likely CORS-blocked) media URL with a relay
// endpoint suitable for direct use as a playback source. Each candidate is
// HEAD-probed; a definitive rejection moves to the next candidate, but an
// inconclusive probe (transport error, or the relay not supporting HEAD)
// returns that candidate anyway, since probe failure is not proof the real
// GET won't work.
func (c *Client) MediaURL(ctx context.Context, raw string) string {
	eps := MediaEndpoints(c.cfg)
	for _, ep := range eps {
		wrapped := ep.Wrap(raw)

		ok, conclusive := c.probe(ctx, ep, wrapped)
		if ok || !conclusive {
			return wrapped
		}
		slog.Log(ctx, logger.LevelTrace, "media relay rejected probe", "endpoint", ep.Name)
		if ctx.Err() != nil {
			break
		}
	}
	// Every probe came back definitively bad. The default relay is still
	// the best guess available.
	return eps[0].Wrap(raw)
}

func (c *Client) probe(ctx context.Context, ep Endpoint, wrapped string) (ok, conclusive bool) {
	if err := c.limiter(ep.Name).Wait(ctx); err != nil {
		return false, false
	}

	reqCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, wrapped, nil)
	if err != nil {
		return false, true
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, false
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299,
		resp.StatusCode == http.StatusPartialContent,
		resp.StatusCode == http.StatusMovedPermanently,
		resp.StatusCode == http.StatusFound:
		return true, true
	case resp.StatusCode == http.StatusMethodNotAllowed,
		resp.StatusCode == http.StatusNotImplemented:
		// Relay doesn't support HEAD at all.
		return false, false
	default:
		return false, true
	}
}
