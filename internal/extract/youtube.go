package extract

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"streamsift/internal/platform"
)

type invidiousFormat struct {
	URL     string `json:"url"`
	Type    string `json:"type"`
	Quality height `json:"quality"`
}

type invidiousVideo struct {
	FormatStreams   []invidiousFormat `json:"formatStreams"`
	AdaptiveFormats []invidiousFormat `json:"adaptiveFormats"`
}

// YouTube resolves a watch/shorts URL through public invidious instances.
// formatStreams carry audio+video combined and are preferred over the
// split adaptiveFormats. The googlevideo CDN allows cross-origin reads, so
// the chosen URL needs no relay wrapping.
func (e *Env) YouTube(ctx context.Context, req Request) (*Result, error) {
	id := platform.VideoID(req.URL, platform.YouTube)
	if id == "" {
		return nil, nil
	}

	for _, instance := range e.Cfg.InvidiousInstances {
		req.Notify.Notify("YouTube via "+hostOf(instance), "")

		var video invidiousVideo
		if !e.Relay.FetchJSON(ctx, strings.TrimSuffix(instance, "/")+"/api/v1/videos/"+id, &video) {
			slog.Debug("invidious instance yielded nothing", "instance", instance)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		if best := pickInvidiousFormat(video, req.Quality); best != nil {
			slog.Debug("youtube stream found", "instance", instance, "quality", int(best.Quality))
			return Direct(best.URL, false), nil
		}
	}
	return nil, nil
}

func pickInvidiousFormat(v invidiousVideo, want int) *invidiousFormat {
	var combined []invidiousFormat
	for _, f := range v.FormatStreams {
		if f.URL != "" && strings.Contains(f.Type, "video") {
			combined = append(combined, f)
		}
	}

	if len(combined) > 0 {
		heights := make([]int, len(combined))
		for i, f := range combined {
			heights[i] = int(f.Quality)
		}
		if i := NearestIndex(heights, want); i >= 0 {
			return &combined[i]
		}
	}

	// No combined stream: fall back to whatever plays at all.
	for _, f := range v.FormatStreams {
		if f.URL != "" {
			return &f
		}
	}
	for _, f := range v.AdaptiveFormats {
		if f.URL != "" && strings.Contains(f.Type, "video") {
			return &f
		}
	}
	return nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}
