package extract

import (
	"context"
	"strings"
	"testing"
)

const vimeoProgressiveBody = `{
	"request": {"files": {
		"progressive": [
			{"url": "https://vod.example/480.mp4", "quality": "480p"},
			{"url": "https://vod.example/720.mp4", "quality": "720p"}
		],
		"hls": {"cdns": {}}
	}}
}`

const vimeoHLSBody = `{
	"request": {"files": {
		"progressive": [],
		"hls": {"cdns": {"akfire": {"url": "https://vim.example/master.m3u8"}}}
	}}
}`

const vimeoMaster = `#EXTM3U
#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=1000000,RESOLUTION=640x360
360/prog_index.m3u8
#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=1800000,RESOLUTION=854x480
480/prog_index.m3u8
#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=3000000,RESOLUTION=1280x720
720/prog_index.m3u8
`

func TestVimeoProgressive(t *testing.T) {
	env, srv := newRelayEnv(t, func(target string) (int, string) {
		if strings.Contains(target, "/video/76979871/config") {
			return 200, vimeoProgressiveBody
		}
		return 200, ""
	})

	res, err := env.Vimeo(context.Background(), Request{
		URL:     "https://vimeo.com/76979871",
		Quality: 600,
	})
	if err != nil {
		t.Fatalf("Vimeo: %v", err)
	}
	if res == nil || res.Kind != KindDirect {
		t.Fatalf("result = %+v, want direct", res)
	}
	if !res.NeedsRelay {
		t.Error("NeedsRelay = false, vimeo renditions must go through a relay")
	}
	if want := relayWrapped(srv, "https://vod.example/480.mp4"); res.URL != want {
		t.Errorf("URL = %q, want relay-wrapped 480p rendition %q", res.URL, want)
	}
}

func TestVimeoHLSVariant(t *testing.T) {
	env, _ := newRelayEnv(t, func(target string) (int, string) {
		switch {
		case strings.Contains(target, "/config"):
			return 200, vimeoHLSBody
		case strings.Contains(target, "master.m3u8"):
			return 200, vimeoMaster
		default:
			return 200, ""
		}
	})

	res, err := env.Vimeo(context.Background(), Request{
		URL:     "https://vimeo.com/76979871",
		Quality: 480,
	})
	if err != nil {
		t.Fatalf("Vimeo: %v", err)
	}
	if res == nil || res.Kind != KindDirect {
		t.Fatalf("result = %+v, want direct", res)
	}
	// The relative variant URI resolves against the master URL.
	if !strings.Contains(res.URL, "vim.example%2F480%2Fprog_index.m3u8") {
		t.Errorf("URL = %q, want the resolved 480p variant inside the relay wrap", res.URL)
	}
}

func TestVimeoPassesWithoutStreams(t *testing.T) {
	env, _ := newRelayEnv(t, func(target string) (int, string) {
		return 200, `{"request": {"files": {"progressive": [], "hls": {"cdns": {}}}}}`
	})

	res, err := env.Vimeo(context.Background(), Request{URL: "https://vimeo.com/76979871", Quality: 720})
	if err != nil || res != nil {
		t.Errorf("got (%+v, %v), want the (nil, nil) pass", res, err)
	}
}

func TestResolutionHeight(t *testing.T) {
	tests := []struct {
		res  string
		want int
	}{
		{"1280x720", 720},
		{"854x480", 480},
		{"1920x1080", 1080},
		{"", 0},
		{"720", 0},
		{"axb", 0},
	}
	for _, tt := range tests {
		if got := resolutionHeight(tt.res); got != tt.want {
			t.Errorf("resolutionHeight(%q) = %d, want %d", tt.res, got, tt.want)
		}
	}
}

func TestResolveRef(t *testing.T) {
	tests := []struct {
		base, ref, want string
	}{
		{"https://h.example/a/master.m3u8", "480/v.m3u8", "https://h.example/a/480/v.m3u8"},
		{"https://h.example/a/master.m3u8", "https://other.example/v.m3u8", "https://other.example/v.m3u8"},
		{"https://h.example/a/master.m3u8", "/root/v.m3u8", "https://h.example/root/v.m3u8"},
	}
	for _, tt := range tests {
		if got := resolveRef(tt.base, tt.ref); got != tt.want {
			t.Errorf("resolveRef(%q, %q) = %q, want %q", tt.base, tt.ref, got, tt.want)
		}
	}
}
