package sandbox

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"streamsift/internal/config"
	"streamsift/internal/relay"
	"streamsift/pkg/logger"
)

const netModuleName = "streamsift_net"

const shimTimeout = 10 * time.Second

// shimRequest is the JSON descriptor the guest hands across the boundary.
// Both patch layers funnel here: the high-level URL-opener wrapper and the
// low-level connection shims that the tool talks to directly when it
// bypasses the opener.
type shimRequest struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	BodyB64 string            `json:"body_b64"`
}

// shimResponse carries the relayed response back. The body crosses the
// boundary base64-encoded: the guest's string/byte seam is lossy for
// arbitrary binary payloads, so nothing here may ride a text transport.
type shimResponse struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	BodyB64 string            `json:"body_b64"`
	Error   string            `json:"error,omitempty"`
}

type netShim struct {
	cfg  *config.Config
	rc   *relay.Client
	http *http.Client
}

func newNetShim(cfg *config.Config, rc *relay.Client) *netShim {
	return &netShim{
		cfg:  cfg,
		rc:   rc,
		http: &http.Client{Timeout: shimTimeout},
	}
}

func (s *netShim) instantiate(ctx context.Context, wz wazero.Runtime) error {
	_, err := wz.NewHostModuleBuilder(netModuleName).
		NewFunctionBuilder().
		WithFunc(s.relayRequest).
		Export("relay_request").
		Instantiate(ctx)
	return err
}

// relayRequest is the host function the guest imports. It reads the JSON
// request descriptor from guest memory, performs the fetch through the
// relay chain, and writes the JSON envelope back via the guest's malloc,
// returning a packed (ptr<<32|len).
func (s *netShim) relayRequest(ctx context.Context, m api.Module, reqPtr, reqLen uint32) uint64 {
	raw, ok := m.Memory().Read(reqPtr, reqLen)
	if !ok {
		return 0
	}

	resp := s.handle(ctx, raw)
	payload, err := json.Marshal(resp)
	if err != nil {
		return 0
	}
	return writeGuestBytes(ctx, m, payload)
}

// handle performs the relayed request with per-endpoint retry. Envelope
// endpoints are skipped for shim traffic: their {contents} wrapper is a
// text transport and corrupts binary media bytes.
func (s *netShim) handle(ctx context.Context, raw []byte) shimResponse {
	var sr shimRequest
	if err := json.Unmarshal(raw, &sr); err != nil {
		return shimResponse{Error: "malformed request descriptor: " + err.Error()}
	}
	if sr.Method == "" {
		sr.Method = http.MethodGet
	}

	var body []byte
	if sr.BodyB64 != "" {
		b, err := base64.StdEncoding.DecodeString(sr.BodyB64)
		if err != nil {
			return shimResponse{Error: "malformed request body: " + err.Error()}
		}
		body = b
	}

	for _, ep := range relay.FetchEndpoints(s.cfg) {
		if ep.Envelope {
			continue
		}
		resp, err := s.do(ctx, ep, sr, body)
		if err != nil {
			slog.Log(ctx, logger.LevelTrace, "shim relay attempt failed", "endpoint", ep.Name, "error", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return resp
	}
	return shimResponse{Error: "all relay endpoints failed"}
}

func (s *netShim) do(ctx context.Context, ep relay.Endpoint, sr shimRequest, body []byte) (shimResponse, error) {
	reqCtx, cancel := context.WithTimeout(ctx, shimTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, sr.Method, ep.Wrap(sr.URL), bytes.NewReader(body))
	if err != nil {
		return shimResponse{}, err
	}
	for k, v := range sr.Headers {
		if k == "Host" || k == "Accept-Encoding" {
			// The transport negotiates its own encoding so the response
			// arrives decompressed; forwarding the guest's value would
			// hand it compressed bytes it can't inflate.
			continue
		}
		req.Header.Set(k, v)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return shimResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 399 {
		return shimResponse{}, &relayStatusError{resp.StatusCode}
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return shimResponse{}, err
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return shimResponse{
		Status:  resp.StatusCode,
		Headers: headers,
		BodyB64: base64.StdEncoding.EncodeToString(payload),
	}, nil
}

type relayStatusError struct {
	code int
}

func (e *relayStatusError) Error() string {
	return "relay answered " + http.StatusText(e.code)
}

// writeGuestBytes copies b into guest memory through the guest's own
// allocator and packs the location into a u64.
func writeGuestBytes(ctx context.Context, m api.Module, b []byte) uint64 {
	malloc := m.ExportedFunction("malloc")
	if malloc == nil {
		return 0
	}
	res, err := malloc.Call(ctx, uint64(len(b)))
	if err != nil || len(res) == 0 {
		return 0
	}
	ptr := uint32(res[0])
	if !m.Memory().Write(ptr, b) {
		return 0
	}
	return uint64(ptr)<<32 | uint64(len(b))
}
