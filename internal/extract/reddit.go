package extract

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
)

type redditVideo struct {
	FallbackURL string `json:"fallback_url"`
}

type redditMedia struct {
	RedditVideo *redditVideo `json:"reddit_video"`
}

type redditPost struct {
	Media               *redditMedia `json:"media"`
	SecureMedia         *redditMedia `json:"secure_media"`
	URLOverriddenByDest string       `json:"url_overridden_by_dest"`
	URL                 string       `json:"url"`
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

var redditMediaExt = regexp.MustCompile(`(?i)\.(mp4|webm|gifv)(\?.*)?$`)

// Reddit resolves a post through its public .json representation. Reddit
// permits anonymous cross-origin GETs, so the direct fetch is tried before
// falling back to the relay chain. The v.redd.it CDN blocks cross-origin
// reads, so any URL coming out of here is relay-wrapped.
func (e *Env) Reddit(ctx context.Context, req Request) (*Result, error) {
	jsonURL := redditJSONURL(req.URL)

	req.Notify.Notify("Reddit JSON API", "")
	post, ok := e.fetchRedditPost(ctx, jsonURL)
	if !ok {
		return nil, nil
	}

	if v := post.video(); v != nil && v.FallbackURL != "" {
		// fallback_url is the video-only rendition; the ?source=fallback
		// marker confuses some relays and carries no meaning here.
		videoURL := strings.Replace(v.FallbackURL, "?source=fallback", "", 1)
		slog.Debug("reddit video found", "url", videoURL)
		return Direct(e.Relay.MediaURL(ctx, videoURL), true), nil
	}

	direct := post.URLOverriddenByDest
	if direct == "" {
		direct = post.URL
	}
	if direct == "" {
		return nil, nil
	}

	if redditMediaExt.MatchString(direct) {
		final := strings.Replace(direct, ".gifv", ".mp4", 1)
		return Direct(e.Relay.MediaURL(ctx, final), true), nil
	}
	if strings.Contains(direct, "imgur.com") && strings.Contains(direct, ".gifv") {
		final := strings.Replace(direct, ".gifv", ".mp4", 1)
		return Direct(e.Relay.MediaURL(ctx, final), true), nil
	}

	return nil, nil
}

func (p *redditPost) video() *redditVideo {
	if p.Media != nil && p.Media.RedditVideo != nil {
		return p.Media.RedditVideo
	}
	if p.SecureMedia != nil && p.SecureMedia.RedditVideo != nil {
		return p.SecureMedia.RedditVideo
	}
	return nil
}

// fetchRedditPost tries the anonymous direct fetch first, then the relay.
func (e *Env) fetchRedditPost(ctx context.Context, jsonURL string) (*redditPost, bool) {
	if body, err := e.directGet(ctx, jsonURL); err == nil {
		if post, ok := parseRedditPost(body); ok {
			return post, true
		}
	} else {
		slog.Debug("direct reddit fetch failed, retrying via relay", "error", err)
	}

	body, ok := e.Relay.Fetch(ctx, jsonURL)
	if !ok {
		return nil, false
	}
	return parseRedditPost(body)
}

// parseRedditPost handles both shapes the API answers with: a bare listing
// and the two-element [post, comments] array.
func parseRedditPost(body []byte) (*redditPost, bool) {
	var listings []redditListing
	if err := json.Unmarshal(body, &listings); err != nil {
		var single redditListing
		if err := json.Unmarshal(body, &single); err != nil {
			return nil, false
		}
		listings = []redditListing{single}
	}
	for _, l := range listings {
		if len(l.Data.Children) > 0 {
			return &l.Data.Children[0].Data, true
		}
	}
	return nil, false
}

func (e *Env) directGet(ctx context.Context, target string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := e.HTTP.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &httpStatusError{resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, 8<<20))
}

type httpStatusError struct {
	code int
}

func (e *httpStatusError) Error() string {
	return "unexpected status " + http.StatusText(e.code)
}

// redditJSONURL normalizes a post URL into its .json endpoint: query and
// trailing slash stripped, suffix appended.
func redditJSONURL(raw string) string {
	clean := raw
	if i := strings.IndexAny(clean, "?#"); i >= 0 {
		clean = clean[:i]
	}
	clean = strings.TrimSuffix(clean, "/")
	return clean + ".json"
}
