package metadata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"streamsift/internal/config"
	"streamsift/internal/relay"
)

func TestMetaFromHTML(t *testing.T) {
	page := `<html><head>
		<title>Fallback Title</title>
		<meta property="og:title" content="OG Title">
		<meta property="og:description" content="A #Great clip">
		<meta property="og:image" content="https://cdn.example/t.jpg">
	</head><body></body></html>`

	meta := metaFromHTML([]byte(page))
	if meta.Title != "OG Title" {
		t.Errorf("Title = %q, want og:title to win over <title>", meta.Title)
	}
	if meta.Description != "A #Great clip" {
		t.Errorf("Description = %q", meta.Description)
	}
	if meta.Thumbnail != "https://cdn.example/t.jpg" {
		t.Errorf("Thumbnail = %q", meta.Thumbnail)
	}
}

func TestMetaFromHTMLFallsBackToTitleTag(t *testing.T) {
	page := `<html><head><title> Plain Page </title>
		<meta name="description" content="plain description"></head></html>`

	meta := metaFromHTML([]byte(page))
	if meta.Title != "Plain Page" {
		t.Errorf("Title = %q, want trimmed <title> text", meta.Title)
	}
	if meta.Description != "plain description" {
		t.Errorf("Description = %q, want meta name=description fallback", meta.Description)
	}
}

func TestHashtags(t *testing.T) {
	got := hashtags("check #GoLang and #golang again", "#Music #perché", "#music")
	want := []string{"golang", "music", "perché"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("hashtags = %v, want %v", got, want)
	}
}

func TestHashtagsCap(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 30; i++ {
		sb.WriteString(" #tag")
		sb.WriteByte(byte('a' + i%26))
		sb.WriteString(strings.Repeat("x", i/26))
	}
	if got := hashtags(sb.String()); len(got) > maxHashtags {
		t.Errorf("hashtags returned %d tags, cap is %d", len(got), maxHashtags)
	}
}

func TestFetchFromAPI(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("url"); got != "https://example.com/watch" {
			t.Errorf("API received url %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data": map[string]any{
				"title":       "A Video #fun",
				"description": "about things",
				"author":      "someone",
				"image":       map[string]string{"url": "https://cdn.example/i.jpg"},
			},
		})
	}))
	defer api.Close()

	cfg := config.Default()
	cfg.MetadataAPI = api.URL
	f := New(cfg, relay.New(cfg, nil), nil, nil)

	meta := f.Fetch(context.Background(), "https://example.com/watch")
	if meta.Title != "A Video #fun" {
		t.Errorf("Title = %q", meta.Title)
	}
	if meta.Thumbnail != "https://cdn.example/i.jpg" {
		t.Errorf("Thumbnail = %q", meta.Thumbnail)
	}
	if !reflect.DeepEqual(meta.Hashtags, []string{"fun"}) {
		t.Errorf("Hashtags = %v, want [fun]", meta.Hashtags)
	}
}

func TestFetchFallsBackToScrape(t *testing.T) {
	longPad := strings.Repeat("<!-- pad -->", 10)
	relaySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><meta property="og:title" content="Scraped"></head>` + longPad + `</html>`))
	}))
	defer relaySrv.Close()

	deadAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer deadAPI.Close()

	cfg := config.Default()
	cfg.MetadataAPI = deadAPI.URL
	cfg.Relay.Primary = relaySrv.URL
	cfg.Relay.Passthrough = relaySrv.URL
	cfg.Relay.EnableSecondary = false
	f := New(cfg, relay.New(cfg, nil), nil, nil)

	meta := f.Fetch(context.Background(), "https://example.com/watch")
	if meta.Title != "Scraped" {
		t.Errorf("Title = %q, want og scrape result", meta.Title)
	}
}

// A YouTube URL with no fetchable metadata still gets the platform
// thumbnail.
func TestFetchThumbnailFallback(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer dead.Close()

	cfg := config.Default()
	cfg.MetadataAPI = dead.URL
	cfg.Relay.Primary = dead.URL
	cfg.Relay.Passthrough = dead.URL
	cfg.Relay.EnableSecondary = false
	f := New(cfg, relay.New(cfg, nil), nil, nil)

	meta := f.Fetch(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if meta.Thumbnail != "https://img.youtube.com/vi/dQw4w9WgXcQ/hqdefault.jpg" {
		t.Errorf("Thumbnail = %q, want the platform fallback", meta.Thumbnail)
	}
}
