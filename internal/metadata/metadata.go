// Package metadata fetches display metadata (title, description,
// thumbnail) for a submitted URL. It is a sibling of the resolution
// pipeline that shares the relay, not part of it: nothing here affects
// stream extraction.
package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"streamsift/internal/config"
	"streamsift/internal/platform"
	"streamsift/internal/relay"
)

// Meta is the display metadata for one URL. All fields are best-effort.
type Meta struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Thumbnail   string   `json:"thumbnail,omitempty"`
	Author      string   `json:"author,omitempty"`
	Publisher   string   `json:"publisher,omitempty"`
	Hashtags    []string `json:"hashtags,omitempty"`
}

// Renderer produces fully-rendered page HTML for pages that only populate
// their metadata from script.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
}

type Fetcher struct {
	cfg      *config.Config
	relay    *relay.Client
	http     *http.Client
	renderer Renderer
}

// New builds a metadata fetcher. renderer may be nil to disable the
// headless-render fallback.
func New(cfg *config.Config, rc *relay.Client, httpClient *http.Client, renderer Renderer) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Fetcher{cfg: cfg, relay: rc, http: httpClient, renderer: renderer}
}

// Fetch tries the metadata API, then an og-tag scrape through the relay,
// then the headless renderer. Always returns a value; missing sources just
// leave fields empty.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) Meta {
	meta, ok := f.fromAPI(ctx, rawURL)
	if !ok {
		meta, ok = f.fromScrape(ctx, rawURL)
	}
	if !ok && f.renderer != nil {
		if html, err := f.renderer.Render(ctx, rawURL); err == nil {
			meta = metaFromHTML([]byte(html))
		} else {
			slog.Debug("headless render failed", "error", err)
		}
	}

	if meta.Thumbnail == "" {
		ref := platform.Classify(rawURL)
		meta.Thumbnail = platform.ThumbnailURL(rawURL, ref.Platform)
	}
	meta.Hashtags = hashtags(meta.Description, meta.Title, fragmentText(rawURL))
	return meta
}

type apiResponse struct {
	Status string `json:"status"`
	Data   struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Author      string `json:"author"`
		Publisher   string `json:"publisher"`
		Image       struct {
			URL string `json:"url"`
		} `json:"image"`
		Logo struct {
			URL string `json:"url"`
		} `json:"logo"`
	} `json:"data"`
}

func (f *Fetcher) fromAPI(ctx context.Context, rawURL string) (Meta, bool) {
	endpoint := strings.TrimSuffix(f.cfg.MetadataAPI, "/") +
		"/?url=" + url.QueryEscape(rawURL) + "&meta=true&screenshot=false&video=false"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Meta{}, false
	}
	resp, err := f.http.Do(req)
	if err != nil {
		slog.Debug("metadata API unreachable", "error", err)
		return Meta{}, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Meta{}, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Meta{}, false
	}
	var out apiResponse
	if err := json.Unmarshal(body, &out); err != nil || out.Status != "success" {
		return Meta{}, false
	}

	thumb := out.Data.Image.URL
	if thumb == "" {
		thumb = out.Data.Logo.URL
	}
	return Meta{
		Title:       out.Data.Title,
		Description: out.Data.Description,
		Thumbnail:   thumb,
		Author:      out.Data.Author,
		Publisher:   out.Data.Publisher,
	}, true
}

func (f *Fetcher) fromScrape(ctx context.Context, rawURL string) (Meta, bool) {
	page, ok := f.relay.Fetch(ctx, rawURL)
	if !ok {
		return Meta{}, false
	}
	meta := metaFromHTML(page)
	if meta.Title == "" && meta.Description == "" && meta.Thumbnail == "" {
		return Meta{}, false
	}
	return meta, true
}

func metaFromHTML(page []byte) Meta {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return Meta{}
	}

	meta := Meta{
		Title:       metaContent(doc, `meta[property="og:title"]`),
		Description: metaContent(doc, `meta[property="og:description"]`),
		Thumbnail:   metaContent(doc, `meta[property="og:image"]`),
	}
	if meta.Title == "" {
		meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if meta.Description == "" {
		meta.Description = metaContent(doc, `meta[name="description"]`)
	}
	return meta
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return content
}

var hashtagRe = regexp.MustCompile(`#[\w\x{00C0}-\x{024F}]+`)

const maxHashtags = 20

// hashtags collects unique lowercase hashtags across the given texts,
// preserving first-seen order.
func hashtags(texts ...string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, text := range texts {
		for _, m := range hashtagRe.FindAllString(text, -1) {
			tag := strings.ToLower(strings.TrimPrefix(m, "#"))
			if seen[tag] {
				continue
			}
			seen[tag] = true
			out = append(out, tag)
			if len(out) >= maxHashtags {
				return out
			}
		}
	}
	return out
}

// fragmentText exposes the query and fragment of a URL for hashtag mining.
func fragmentText(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Fragment + " " + u.RawQuery
}
