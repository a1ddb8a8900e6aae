package sandbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"streamsift/internal/config"
	"streamsift/internal/relay"
)

func shimConfig(primary, passthrough string) *config.Config {
	return &config.Config{
		Relay: config.Relay{Primary: primary, Passthrough: passthrough},
	}
}

func marshalShimRequest(t *testing.T, sr shimRequest) []byte {
	t.Helper()
	raw, err := json.Marshal(sr)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

// Every byte value must survive the crossing unchanged; the envelope is the
// only transport for media content the guest fetches.
func TestShimBinaryRoundTrip(t *testing.T) {
	payload := make([]byte, 256)
	for i := range payload {
		payload[i] = byte(i)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(payload)
	}))
	defer srv.Close()

	cfg := shimConfig("https://unused.invalid", srv.URL)
	s := newNetShim(cfg, relay.New(cfg, nil))

	resp := s.handle(context.Background(), marshalShimRequest(t, shimRequest{URL: "https://cdn.example/v.mp4"}))
	if resp.Error != "" {
		t.Fatalf("shim error: %s", resp.Error)
	}
	if resp.Status != http.StatusOK {
		t.Errorf("Status = %d", resp.Status)
	}

	got, err := base64.StdEncoding.DecodeString(resp.BodyB64)
	if err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(got) != len(payload) {
		t.Fatalf("body length = %d, want %d", len(got), len(payload))
	}
	for i := range payload {
		if got[i] != payload[i] {
			t.Fatalf("byte %d = %#x, want %#x", i, got[i], payload[i])
		}
	}
}

// The mirror-get relay wraps bodies in a text envelope, which corrupts
// binary payloads, so shim traffic must never touch it.
func TestShimSkipsEnvelopeEndpoints(t *testing.T) {
	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("envelope relay hit at %s for shim traffic", r.URL.Path)
	}))
	defer mirror.Close()

	pass := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer pass.Close()

	cfg := shimConfig(mirror.URL, pass.URL)
	s := newNetShim(cfg, relay.New(cfg, nil))

	resp := s.handle(context.Background(), marshalShimRequest(t, shimRequest{URL: "https://example.com/page"}))
	if resp.Error != "" {
		t.Fatalf("shim error: %s", resp.Error)
	}
}

func TestShimForwardsMethodBodyAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("User-Agent"); got != "tool/1.0" {
			t.Errorf("User-Agent = %q, want the guest's value", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "request payload" {
			t.Errorf("body = %q", body)
		}
		w.Write([]byte("done"))
	}))
	defer srv.Close()

	cfg := shimConfig("https://unused.invalid", srv.URL)
	s := newNetShim(cfg, relay.New(cfg, nil))

	resp := s.handle(context.Background(), marshalShimRequest(t, shimRequest{
		URL:    "https://api.example/endpoint",
		Method: http.MethodPost,
		Headers: map[string]string{
			"User-Agent": "tool/1.0",
			"Host":       "forged.example",
		},
		BodyB64: base64.StdEncoding.EncodeToString([]byte("request payload")),
	}))
	if resp.Error != "" {
		t.Fatalf("shim error: %s", resp.Error)
	}
	if got, _ := base64.StdEncoding.DecodeString(resp.BodyB64); string(got) != "done" {
		t.Errorf("response body = %q", got)
	}
}

func TestShimFallsBackPastFailingEndpoint(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer dead.Close()

	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("served by secondary"))
	}))
	defer live.Close()

	cfg := shimConfig("https://unused.invalid", dead.URL)
	cfg.Relay.Secondary = []string{live.URL + "/fetch/"}
	cfg.Relay.EnableSecondary = true
	s := newNetShim(cfg, relay.New(cfg, nil))

	resp := s.handle(context.Background(), marshalShimRequest(t, shimRequest{URL: "https://example.com/page"}))
	if resp.Error != "" {
		t.Fatalf("shim error: %s", resp.Error)
	}
	if got, _ := base64.StdEncoding.DecodeString(resp.BodyB64); string(got) != "served by secondary" {
		t.Errorf("body = %q", got)
	}
}

func TestShimErrors(t *testing.T) {
	cfg := shimConfig("https://unused.invalid", "https://also-unused.invalid")
	s := newNetShim(cfg, relay.New(cfg, nil))

	if resp := s.handle(context.Background(), []byte("not json")); resp.Error == "" {
		t.Error("malformed descriptor accepted")
	}
	if resp := s.handle(context.Background(), marshalShimRequest(t, shimRequest{
		URL:     "https://example.com/x",
		BodyB64: "!!not base64!!",
	})); resp.Error == "" {
		t.Error("malformed body accepted")
	}
}

func TestRenderProbeScriptEscapesTarget(t *testing.T) {
	script := renderProbeScript(`https://example.com/x?a="b"`, 720)
	if want := `"https://example.com/x?a=\"b\""`; !strings.Contains(script, want) {
		t.Errorf("script does not carry the JSON-escaped target %s", want)
	}
	if !strings.Contains(script, "_quality = 720") {
		t.Error("script does not carry the quality bound")
	}
}
