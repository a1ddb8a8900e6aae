package sandbox

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"streamsift/internal/config"
	"streamsift/internal/extract"
	"streamsift/internal/relay"
)

// Runtime wraps the instantiated interpreter module. The guest exports a
// tiny ABI: malloc/free for moving strings across the boundary and eval,
// which runs a script and returns a packed (ptr<<32|len) result string.
type Runtime struct {
	cfg   *config.Config
	relay *relay.Client

	wz  wazero.Runtime
	mod api.Module

	// The interpreter instance is not reentrant; one script at a time.
	mu sync.Mutex

	evalFn   api.Function
	mallocFn api.Function
	freeFn   api.Function
}

// load runs the full bootstrap: fetch the cached runtime bundle, stand up
// the wazero runtime with WASI plus our host modules, instantiate the
// interpreter, then run the in-guest install and patch scripts. The network
// shim and TLS stub must be instantiated before the guest module, or its
// imports fail to link.
func load(ctx context.Context, cfg *config.Config, rc *relay.Client, dataDir string, notify extract.ProgressFunc) (Handle, error) {
	notify.Notify("loading sandbox runtime", "first run downloads the bundle, cached afterwards")
	bundle, err := ensureBundle(ctx, cfg, dataDir)
	if err != nil {
		return nil, fmt.Errorf("fetching sandbox bundle: %w", err)
	}

	wz := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	ok := false
	defer func() {
		if !ok {
			wz.Close(ctx)
		}
	}()

	wasi_snapshot_preview1.MustInstantiate(ctx, wz)

	shim := newNetShim(cfg, rc)
	if err := shim.instantiate(ctx, wz); err != nil {
		return nil, fmt.Errorf("installing network shim: %w", err)
	}
	if err := instantiateTLSStub(ctx, wz); err != nil {
		return nil, fmt.Errorf("installing tls stub: %w", err)
	}

	notify.Notify("compiling sandbox runtime", "")
	compiled, err := wz.CompileModule(ctx, bundle)
	if err != nil {
		return nil, fmt.Errorf("compiling sandbox bundle: %w", err)
	}

	mod, err := wz.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().
		WithName("interp").
		WithStdout(io.Discard).
		WithStderr(io.Discard).
		WithRandSource(rand.Reader).
		WithSysWalltime().
		WithSysNanotime())
	if err != nil {
		return nil, fmt.Errorf("instantiating interpreter: %w", err)
	}

	rt := &Runtime{
		cfg:      cfg,
		relay:    rc,
		wz:       wz,
		mod:      mod,
		evalFn:   mod.ExportedFunction("eval"),
		mallocFn: mod.ExportedFunction("malloc"),
		freeFn:   mod.ExportedFunction("free"),
	}
	if rt.evalFn == nil || rt.mallocFn == nil || rt.freeFn == nil {
		return nil, errors.New("sandbox bundle does not export the expected eval/malloc/free ABI")
	}

	notify.Notify("installing extraction tool", "in-sandbox package install")
	if _, err := rt.eval(ctx, installToolScript); err != nil {
		return nil, fmt.Errorf("installing extraction tool: %w", err)
	}
	notify.Notify("patching sandbox networking", "")
	if _, err := rt.eval(ctx, patchOpenerScript); err != nil {
		return nil, fmt.Errorf("patching url opener: %w", err)
	}
	if _, err := rt.eval(ctx, patchTransportScript); err != nil {
		return nil, fmt.Errorf("patching transport layer: %w", err)
	}

	ok = true
	return rt, nil
}

// eval moves script into guest memory, runs it, and copies the result
// string back out.
func (rt *Runtime) eval(ctx context.Context, script string) (string, error) {
	res, err := rt.mallocFn.Call(ctx, uint64(len(script)))
	if err != nil || len(res) == 0 {
		return "", fmt.Errorf("guest malloc failed: %w", err)
	}
	ptr := uint32(res[0])
	defer rt.freeFn.Call(ctx, uint64(ptr)) //nolint:errcheck

	if !rt.mod.Memory().Write(ptr, []byte(script)) {
		return "", errors.New("script does not fit in guest memory")
	}

	out, err := rt.evalFn.Call(ctx, uint64(ptr), uint64(len(script)))
	if err != nil {
		return "", err
	}
	packed := out[0]
	off, n := uint32(packed>>32), uint32(packed)
	if n == 0 {
		return "", nil
	}
	b, ok := rt.mod.Memory().Read(off, n)
	if !ok {
		return "", errors.New("eval result outside guest memory range")
	}
	return string(b), nil
}

type probeResult struct {
	URL       string `json:"url"`
	Ext       string `json:"ext"`
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail"`
	Quality   string `json:"quality"`
	Error     string `json:"error"`
}

// Extract runs the tool's extract-metadata-without-downloading operation.
// Anything that goes wrong inside the sandboxed execution is demoted to a
// (nil, nil) miss; the host must never crash on tool-internal errors.
func (rt *Runtime) Extract(ctx context.Context, url string, quality int, notify extract.ProgressFunc) (res *extract.Result, err error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("sandbox execution panicked", "panic", r)
			res, err = nil, nil
		}
	}()

	notify.Notify("running extraction tool", truncate(url, 50))

	out, err := rt.eval(ctx, renderProbeScript(url, quality))
	if err != nil {
		slog.Debug("sandbox execution failed", "error", err)
		return nil, nil
	}

	var probe probeResult
	if err := json.Unmarshal([]byte(out), &probe); err != nil {
		slog.Debug("sandbox returned malformed result", "error", err)
		return nil, nil
	}
	if probe.Error != "" {
		slog.Debug("extraction tool reported failure", "error", probe.Error)
		return nil, nil
	}
	if probe.URL == "" {
		return nil, nil
	}

	slog.Debug("sandbox extraction succeeded", "quality", probe.Quality)
	wrapped := rt.relay.MediaURL(ctx, probe.URL)
	if wrapped == "" {
		wrapped = probe.URL
	}
	return extract.Direct(wrapped, true), nil
}

func (rt *Runtime) Close(ctx context.Context) error {
	return rt.wz.Close(ctx)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
