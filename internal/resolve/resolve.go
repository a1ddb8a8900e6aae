// Package resolve sequences extraction strategies for a request: direct
// file shortcut, embed-only shortlist, the platform's own chain, then the
// universal sandbox fallback. The router only sequences; parsing lives in
// the strategies.
package resolve

import (
	"context"
	"log/slog"
	"regexp"

	"streamsift/internal/config"
	"streamsift/internal/extract"
	"streamsift/internal/platform"
	"streamsift/internal/relay"
	"streamsift/internal/sandbox"
)

// directExt matches URLs a playback element can consume with no extraction
// at all.
var directExt = regexp.MustCompile(`(?i)\.(mp4|webm|mov|ogg|m3u8|ts)(\?.*)?$`)

// embedOnly lists platforms with no obtainable direct stream; the caller
// falls back to an iframe embed of the original page.
var embedOnly = map[platform.ID]bool{
	platform.Spotify: true,
	platform.Twitch:  true,
}

// Router holds the per-platform strategy chains. Stateless between calls:
// one execution per request, nothing carried over.
type Router struct {
	chains    map[platform.ID][]extract.Strategy
	universal extract.Strategy
}

// New wires the real extractor chains. Platforms not listed go straight to
// the universal fallback. A nil manager disables the universal fallback
// entirely.
func New(cfg *config.Config, rc *relay.Client, sb *sandbox.Manager) *Router {
	env := extract.NewEnv(cfg, rc, nil)
	var universal extract.Strategy
	if sb != nil {
		universal = sb.Strategy()
	}
	return &Router{
		chains: map[platform.ID][]extract.Strategy{
			platform.YouTube:   {env.YouTube},
			platform.Vimeo:     {env.Vimeo},
			platform.Reddit:    {env.Reddit, env.Cobalt},
			platform.Instagram: {env.Instagram, env.Cobalt},
			platform.TikTok:    {env.Cobalt},
			platform.Twitter:   {env.Cobalt},
			platform.Facebook:  {env.Cobalt},
		},
		universal: universal,
	}
}

// Resolve walks the fallback sequence and returns the first usable result.
// Public contract: returns a Result, never an error and never a panic, for
// every expected failure mode. Total exhaustion is KindFailure.
func (r *Router) Resolve(ctx context.Context, req extract.Request) (out extract.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("resolution panicked", "url", req.URL, "panic", rec)
			out = *extract.Failure()
		}
	}()

	if req.Platform == "" {
		req.Platform = platform.Classify(req.URL).Platform
	}
	if !extract.ValidQuality(req.Quality) {
		req.Quality = 720
	}

	if directExt.MatchString(req.URL) {
		req.Notify.Notify("direct media file", "")
		return *extract.Direct(req.URL, false)
	}

	if embedOnly[req.Platform] {
		return *extract.EmbedOnly()
	}

	if res := r.tryChain(ctx, r.chains[req.Platform], req); res != nil {
		return *res
	}
	if res := r.try(ctx, r.universal, req); res != nil {
		return *res
	}

	slog.Info("all strategies exhausted", "url", req.URL, "platform", req.Platform)
	return *extract.Failure()
}

// tryChain runs strategies in order and stops at the first non-nil result.
func (r *Router) tryChain(ctx context.Context, chain []extract.Strategy, req extract.Request) *extract.Result {
	for _, s := range chain {
		if res := r.try(ctx, s, req); res != nil {
			return res
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

func (r *Router) try(ctx context.Context, s extract.Strategy, req extract.Request) *extract.Result {
	if s == nil {
		return nil
	}
	res, err := s(ctx, req)
	if err != nil {
		slog.Debug("strategy failed", "platform", req.Platform, "error", err)
		return nil
	}
	if res == nil || res.Kind == extract.KindFailure {
		return nil
	}
	return res
}
