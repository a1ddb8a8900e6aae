package sandbox

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"streamsift/internal/config"
)

// defaultBundleURL points at the WASI build of the interpreter runtime that
// carries the eval/malloc/free ABI and imports our host modules. Multi-
// megabyte, hence the on-disk cache.
const defaultBundleURL = "https://github.com/streamsift/sandbox-runtime/releases/download/v0.4.2/interp-wasi.wasm"

const bundleDownloadTimeout = 5 * time.Minute

// ensureBundle returns the runtime bundle bytes, downloading into the data
// dir cache on first use. The download goes to a temp file first so a
// partial fetch never poisons the cache.
func ensureBundle(ctx context.Context, cfg *config.Config, dataDir string) ([]byte, error) {
	path := filepath.Join(dataDir, "sandbox", "interp.wasm")
	if b, err := os.ReadFile(path); err == nil && len(b) > 0 {
		return b, nil
	}

	bundleURL := cfg.SandboxBundleURL
	if bundleURL == "" {
		bundleURL = defaultBundleURL
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating bundle cache dir: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, bundleDownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, bundleURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading sandbox bundle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading sandbox bundle: status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "interp-*.wasm.part")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("writing sandbox bundle: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, err
	}

	return os.ReadFile(path)
}
