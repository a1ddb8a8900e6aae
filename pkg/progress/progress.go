// Package progress renders resolution phases as a terminal spinner. Phase
// strings are display-only and never parsed.
package progress

import (
	"io"
	"sync"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

type Reporter struct {
	p   *mpb.Progress
	bar *mpb.Bar

	mu     sync.Mutex
	phase  string
	detail string
}

func New(w io.Writer) *Reporter {
	r := &Reporter{phase: "starting"}
	r.p = mpb.New(mpb.WithOutput(w), mpb.WithWidth(1))
	r.bar = r.p.New(0,
		mpb.SpinnerStyle(),
		mpb.AppendDecorators(
			decor.Any(func(decor.Statistics) string {
				r.mu.Lock()
				defer r.mu.Unlock()
				if r.detail != "" {
					return " " + r.phase + " · " + r.detail
				}
				return " " + r.phase
			}),
		),
	)
	return r
}

// Notify matches extract.ProgressFunc.
func (r *Reporter) Notify(phase, detail string) {
	r.mu.Lock()
	r.phase = phase
	r.detail = detail
	r.mu.Unlock()
	r.bar.IncrBy(1)
}

// Done tears the spinner down and flushes the output.
func (r *Reporter) Done() {
	r.bar.Abort(true)
	r.bar.Wait()
	r.p.Wait()
}
