package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const cobaltTimeout = 9 * time.Second

type cobaltRequest struct {
	URL           string `json:"url"`
	VideoQuality  string `json:"videoQuality"`
	AudioFormat   string `json:"audioFormat"`
	FilenameStyle string `json:"filenameStyle"`
	DownloadMode  string `json:"downloadMode"`
	TwitterGif    bool   `json:"twitterGif"`
}

type cobaltResponse struct {
	Status string       `json:"status"`
	URL    string       `json:"url"`
	Picker []PickerItem `json:"picker"`
}

// Cobalt delegates resolution to public cobalt instances, tried in order
// since availability varies day to day. The response status tag drives the
// outcome: error means next instance, stream/redirect/tunnel is a direct
// URL, picker hands back multiple candidates for the user to choose from.
func (e *Env) Cobalt(ctx context.Context, req Request) (*Result, error) {
	payload, err := json.Marshal(cobaltRequest{
		URL:           req.URL,
		VideoQuality:  strconv.Itoa(req.Quality),
		AudioFormat:   "mp3",
		FilenameStyle: "basic",
		DownloadMode:  "auto",
	})
	if err != nil {
		return nil, err
	}

	for _, instance := range e.Cfg.ResolverInstances {
		req.Notify.Notify("cobalt via "+hostOf(instance), "")

		resp, ok := e.postCobalt(ctx, instance, payload)
		if !ok {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		switch resp.Status {
		case "error":
			slog.Debug("cobalt instance answered error", "instance", instance)
		case "stream", "redirect", "tunnel":
			if resp.URL == "" {
				continue
			}
			wrapped := e.Relay.MediaURL(ctx, resp.URL)
			if wrapped == "" {
				wrapped = resp.URL
			}
			return Direct(wrapped, true), nil
		case "picker":
			if len(resp.Picker) > 0 {
				return Picker(resp.Picker), nil
			}
		}
	}
	return nil, nil
}

func (e *Env) postCobalt(ctx context.Context, instance string, payload []byte) (*cobaltResponse, bool) {
	reqCtx, cancel := context.WithTimeout(ctx, cobaltTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, instance, bytes.NewReader(payload))
	if err != nil {
		return nil, false
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTP.Do(httpReq)
	if err != nil {
		slog.Debug("cobalt instance unreachable", "instance", instance, "error", err)
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, false
	}

	var out cobaltResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, false
	}
	return &out, true
}
