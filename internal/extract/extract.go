// Package extract turns a classified URL into a playable stream through
// per-platform strategies. Every strategy has the same shape: it returns
// (nil, nil) when it simply has nothing, so the caller can walk an ordered
// chain and stop at the first hit.
package extract

import (
	"context"
	"net/http"
	"time"

	"streamsift/internal/config"
	"streamsift/internal/platform"
	"streamsift/internal/relay"
)

// Kind tags the result variant. Exactly one variant is populated.
type Kind int

const (
	KindFailure Kind = iota
	KindDirect
	KindPicker
	KindEmbedOnly
)

func (k Kind) String() string {
	switch k {
	case KindDirect:
		return "direct"
	case KindPicker:
		return "picker"
	case KindEmbedOnly:
		return "embed-only"
	default:
		return "failure"
	}
}

// PickerItem is one candidate stream when a resolver answers with several
// and the user has to choose.
type PickerItem struct {
	URL   string `json:"url"`
	Thumb string `json:"thumb,omitempty"`
}

// Result is the normalized outcome of a resolution attempt.
type Result struct {
	Kind Kind

	// URL is populated for KindDirect. Once relay-wrapped it is assumed
	// immediately consumable by a playback element.
	URL        string
	NeedsRelay bool

	// Items is populated for KindPicker.
	Items []PickerItem
}

func Direct(url string, needsRelay bool) *Result {
	return &Result{Kind: KindDirect, URL: url, NeedsRelay: needsRelay}
}

func Picker(items []PickerItem) *Result {
	return &Result{Kind: KindPicker, Items: items}
}

func EmbedOnly() *Result {
	return &Result{Kind: KindEmbedOnly}
}

func Failure() *Result {
	return &Result{Kind: KindFailure}
}

// ProgressFunc receives human-readable phase descriptions for UI display.
// Never machine-parsed.
type ProgressFunc func(phase, detail string)

// Notify is nil-safe so strategies don't have to guard every call.
func (f ProgressFunc) Notify(phase, detail string) {
	if f != nil {
		f(phase, detail)
	}
}

// Request is one extraction attempt. Transient; strategies are stateless
// and none may assume another ran before it.
type Request struct {
	URL      string
	Platform platform.ID
	Quality  int
	Notify   ProgressFunc
}

// Strategy resolves a request or passes. (nil, nil) means "this strategy
// did not produce a result, try the next"; an error is logged by the caller
// and treated the same way.
type Strategy func(ctx context.Context, req Request) (*Result, error)

// Env carries the collaborators every extractor shares. Extractors read
// config through it on each call and hold no other state.
type Env struct {
	Cfg   *config.Config
	Relay *relay.Client
	HTTP  *http.Client
}

// NewEnv builds the shared extractor environment. A nil httpClient gets a
// default used for native-CORS direct fetches and resolver POSTs.
func NewEnv(cfg *config.Config, rc *relay.Client, httpClient *http.Client) *Env {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Env{Cfg: cfg, Relay: rc, HTTP: httpClient}
}
