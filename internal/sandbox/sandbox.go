// Package sandbox hosts a general-purpose, scriptable media-extraction
// tool inside a WASM interpreter and exposes it behind the same strategy
// surface as the hand-written extractors. It is the last resort for URLs no
// platform-specific strategy handles, and the second attempt when one
// fails. The sandboxed tool's internals stay opaque: only its
// extract-metadata contract and the network shim are modeled here.
package sandbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"streamsift/internal/config"
	"streamsift/internal/extract"
	"streamsift/internal/relay"
)

// Handle is an initialized sandbox ready to run extractions.
type Handle interface {
	Extract(ctx context.Context, url string, quality int, notify extract.ProgressFunc) (*extract.Result, error)
	Close(ctx context.Context) error
}

// LoadFunc performs the one-time bootstrap sequence.
type LoadFunc func(ctx context.Context, notify extract.ProgressFunc) (Handle, error)

type loadResult struct {
	handle Handle
	err    error
}

// Manager memoizes the process-wide sandbox handle. Bootstrap runs at most
// once even under concurrent first calls: the first caller drives the load
// and every other caller queues as a waiter, all resolved with the same
// outcome. A failed bootstrap is not memoized, so a later request retries.
type Manager struct {
	load LoadFunc

	mu        sync.Mutex
	handle    Handle
	loading   bool
	waiters   []chan loadResult
	prewarmed bool
}

// NewManager wires the real wazero-backed loader.
func NewManager(cfg *config.Config, rc *relay.Client, dataDir string) *Manager {
	return &Manager{
		load: func(ctx context.Context, notify extract.ProgressFunc) (Handle, error) {
			return load(ctx, cfg, rc, dataDir, notify)
		},
	}
}

// NewManagerWithLoader exists for tests and alternative runtimes.
func NewManagerWithLoader(load LoadFunc) *Manager {
	return &Manager{load: load}
}

// Get returns the shared handle, bootstrapping it on first use. The load
// runs detached from the first caller's cancellation: an abandoned request
// must not poison the handle every queued waiter is about to receive.
func (m *Manager) Get(ctx context.Context, notify extract.ProgressFunc) (Handle, error) {
	m.mu.Lock()
	if m.handle != nil {
		h := m.handle
		m.mu.Unlock()
		return h, nil
	}
	if m.loading {
		ch := make(chan loadResult, 1)
		m.waiters = append(m.waiters, ch)
		m.mu.Unlock()
		select {
		case res := <-ch:
			return res.handle, res.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.loading = true
	m.mu.Unlock()

	handle, err := m.load(context.WithoutCancel(ctx), notify)
	if err != nil {
		slog.Warn("sandbox bootstrap failed", "error", err)
	}

	m.mu.Lock()
	if err == nil {
		m.handle = handle
	}
	m.loading = false
	waiters := m.waiters
	m.waiters = nil
	m.mu.Unlock()

	for _, ch := range waiters {
		ch <- loadResult{handle, err}
	}
	return handle, err
}

// Prewarm schedules a background bootstrap after delay, so the first real
// universal-fallback request doesn't pay the multi-megabyte load. No-op
// after the first call.
func (m *Manager) Prewarm(delay time.Duration) {
	m.mu.Lock()
	already := m.prewarmed || m.handle != nil || m.loading
	m.prewarmed = true
	m.mu.Unlock()
	if already {
		return
	}
	time.AfterFunc(delay, func() {
		if _, err := m.Get(context.Background(), nil); err != nil {
			slog.Debug("sandbox prewarm failed", "error", err)
		}
	})
}

// Strategy adapts the sandbox to the extractor chain. Bootstrap failure
// aborts this strategy only; the pipeline reports overall failure without
// crashing.
func (m *Manager) Strategy() extract.Strategy {
	return func(ctx context.Context, req extract.Request) (*extract.Result, error) {
		req.Notify.Notify("universal extractor", "WASM sandbox")
		h, err := m.Get(ctx, req.Notify)
		if err != nil {
			return nil, nil
		}
		return h.Extract(ctx, req.URL, req.Quality, req.Notify)
	}
}
