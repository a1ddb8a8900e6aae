package extract

import (
	"bytes"
	"context"
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

// Instagram scrapes a read-friendly mirror of the post page. The mirror URL
// keeps the original path and only swaps the hostname, so post/reel/tv
// paths all work unchanged. The media URL is pulled from the page's
// <source> tag or og:video metadata and relay-wrapped, since the CDN
// blocks cross-origin reads.
func (e *Env) Instagram(ctx context.Context, req Request) (*Result, error) {
	mirror := mirrorURL(req.URL, e.Cfg.InstagramMirror)
	if mirror == "" {
		return nil, nil
	}

	req.Notify.Notify("Instagram mirror", e.Cfg.InstagramMirror)
	html, ok := e.Relay.Fetch(ctx, mirror)
	if !ok {
		return nil, nil
	}

	raw := sourceFromHTML(html)
	if raw == "" {
		return nil, nil
	}

	req.Notify.Notify("relaying media URL", "")
	return Direct(e.Relay.MediaURL(ctx, raw), true), nil
}

// mirrorURL substitutes the mirror hostname into the original URL's path.
func mirrorURL(raw, mirrorHost string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return ""
	}
	return "https://" + mirrorHost + u.Path
}

// sourceFromHTML extracts a playable URL from the mirror page, trying in
// order: an explicit <source src>, og:video:secure_url, then og:video. The
// parser handles HTML entity decoding.
func sourceFromHTML(page []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return ""
	}

	if src, ok := doc.Find("source[src]").First().Attr("src"); ok && src != "" {
		return src
	}
	for _, sel := range []string{
		`meta[property="og:video:secure_url"]`,
		`meta[property="og:video"]`,
	} {
		if content, ok := doc.Find(sel).First().Attr("content"); ok && content != "" {
			return content
		}
	}
	return ""
}
