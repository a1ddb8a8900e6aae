package extract

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"streamsift/internal/config"
	"streamsift/internal/relay"
)

// newRelayEnv stands up a fake relay and builds an Env around it. handle
// receives the unwrapped target URL for both fetches and media probes. The
// envelope mirror answers 500 so everything flows through the passthrough.
func newRelayEnv(t *testing.T, handle func(target string) (int, string)) (*Env, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/get" || r.URL.Path == "/raw" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		code, body := handle(r.URL.Query().Get("url"))
		w.WriteHeader(code)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Relay.Primary = srv.URL
	cfg.Relay.Passthrough = srv.URL
	cfg.Relay.EnableSecondary = false
	return NewEnv(cfg, relay.New(cfg, nil), nil), srv
}

// relayWrapped is the passthrough form of raw as produced by the fake relay.
func relayWrapped(srv *httptest.Server, raw string) string {
	return relay.MediaEndpoints(&config.Config{
		Relay: config.Relay{Primary: srv.URL, Passthrough: srv.URL},
	})[0].Wrap(raw)
}
