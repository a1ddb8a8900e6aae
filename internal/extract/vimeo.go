package extract

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"

	"streamsift/internal/platform"
)

type vimeoConfig struct {
	Request struct {
		Files struct {
			Progressive []struct {
				URL     string `json:"url"`
				Quality height `json:"quality"`
			} `json:"progressive"`
			HLS struct {
				CDNs map[string]struct {
					URL string `json:"url"`
				} `json:"cdns"`
			} `json:"hls"`
		} `json:"files"`
	} `json:"request"`
}

// Vimeo queries the player config endpoint through the relay. Progressive
// renditions (audio+video in one file) are preferred at the nearest
// quality; when only adaptive HLS exists, the master playlist is fetched
// and the variant closest to the requested height is picked.
func (e *Env) Vimeo(ctx context.Context, req Request) (*Result, error) {
	id := platform.VideoID(req.URL, platform.Vimeo)
	if id == "" {
		return nil, nil
	}

	req.Notify.Notify("Vimeo config API", "")
	var cfg vimeoConfig
	if !e.Relay.FetchJSON(ctx, "https://player.vimeo.com/video/"+id+"/config", &cfg) {
		return nil, nil
	}

	files := cfg.Request.Files
	if len(files.Progressive) > 0 {
		heights := make([]int, len(files.Progressive))
		for i, p := range files.Progressive {
			heights[i] = int(p.Quality)
		}
		if i := NearestIndex(heights, req.Quality); i >= 0 && files.Progressive[i].URL != "" {
			slog.Debug("vimeo progressive rendition found", "quality", heights[i])
			return Direct(e.Relay.MediaURL(ctx, files.Progressive[i].URL), true), nil
		}
	}

	for _, cdn := range files.HLS.CDNs {
		if cdn.URL == "" {
			continue
		}
		req.Notify.Notify("Vimeo HLS manifest", "")
		manifest := e.pickHLSVariant(ctx, cdn.URL, req.Quality)
		return Direct(e.Relay.MediaURL(ctx, manifest), true), nil
	}

	return nil, nil
}

// pickHLSVariant downloads a master playlist and returns the variant URI
// with the height nearest to want. Any parse trouble falls back to the
// master URL itself, which players can still negotiate.
func (e *Env) pickHLSVariant(ctx context.Context, masterURL string, want int) string {
	body, ok := e.Relay.Fetch(ctx, masterURL)
	if !ok {
		return masterURL
	}

	pl, kind, err := m3u8.DecodeFrom(bytes.NewReader(body), true)
	if err != nil || kind != m3u8.MASTER {
		return masterURL
	}
	master, ok2 := pl.(*m3u8.MasterPlaylist)
	if !ok2 {
		return masterURL
	}

	var heights []int
	var uris []string
	for _, v := range master.Variants {
		if v == nil || v.URI == "" {
			continue
		}
		heights = append(heights, resolutionHeight(v.Resolution))
		uris = append(uris, v.URI)
	}

	i := NearestIndex(heights, want)
	if i < 0 {
		return masterURL
	}
	return resolveRef(masterURL, uris[i])
}

// resolutionHeight parses the "1280x720" RESOLUTION attribute.
func resolutionHeight(res string) int {
	_, h, ok := strings.Cut(res, "x")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(h)
	if err != nil {
		return 0
	}
	return n
}

func resolveRef(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
