package relay

import (
	"net/url"
	"strings"

	"streamsift/internal/config"
)

// Endpoint is one CORS relay in the ordered chain. Wrap turns a target URL
// into the relayed URL; Envelope marks services that wrap the body in a
// {contents, status} JSON envelope instead of passing it through.
type Endpoint struct {
	Name     string
	Wrap     func(target string) string
	Envelope bool
}

// FetchEndpoints returns the ordered relay chain for reading page/API
// content. The list is rebuilt from config on every call so the secondary
// toggle takes effect immediately.
func FetchEndpoints(cfg *config.Config) []Endpoint {
	eps := []Endpoint{
		mirrorGet(cfg.Relay),
		passthrough(cfg.Relay),
	}
	if cfg.Relay.EnableSecondary {
		eps = append(eps, secondaries(cfg.Relay)...)
	}
	return eps
}

// MediaEndpoints returns the ordered relay chain for wrapping a raw media
// URL into something a playback element can load directly. Order differs
// from FetchEndpoints: the passthrough relay streams bodies unmodified, so
// it comes first.
func MediaEndpoints(cfg *config.Config) []Endpoint {
	eps := []Endpoint{
		passthrough(cfg.Relay),
		mirrorRaw(cfg.Relay),
	}
	if cfg.Relay.EnableSecondary {
		eps = append(eps, secondaries(cfg.Relay)...)
	}
	return eps
}

func mirrorGet(r config.Relay) Endpoint {
	base := strings.TrimSuffix(r.Primary, "/")
	key := r.Key
	return Endpoint{
		Name:     hostname(base) + "/get",
		Envelope: true,
		Wrap: func(target string) string {
			u := base + "/get?url=" + url.QueryEscape(target)
			if key != "" {
				u += "&key=" + url.QueryEscape(key)
			}
			return u
		},
	}
}

func mirrorRaw(r config.Relay) Endpoint {
	base := strings.TrimSuffix(r.Primary, "/")
	key := r.Key
	return Endpoint{
		Name: hostname(base) + "/raw",
		Wrap: func(target string) string {
			u := base + "/raw?url=" + url.QueryEscape(target)
			if key != "" {
				u += "&key=" + url.QueryEscape(key)
			}
			return u
		},
	}
}

func passthrough(r config.Relay) Endpoint {
	base := strings.TrimSuffix(r.Passthrough, "/")
	return Endpoint{
		Name: hostname(base),
		Wrap: func(target string) string {
			return base + "/?url=" + url.QueryEscape(target)
		},
	}
}

// secondaries builds endpoints from raw prefix strings. A prefix ending in
// "=" expects a query-escaped target, anything else takes the target
// appended verbatim.
func secondaries(r config.Relay) []Endpoint {
	eps := make([]Endpoint, 0, len(r.Secondary))
	for _, prefix := range r.Secondary {
		p := prefix
		eps = append(eps, Endpoint{
			Name: hostname(p),
			Wrap: func(target string) string {
				if strings.HasSuffix(p, "=") {
					return p + url.QueryEscape(target)
				}
				return p + target
			},
		})
	}
	return eps
}

func hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}
