package cmd

import (
	"sort"
	"time"
)

// pendingFiles tracks the last write time of watched files.
type pendingFiles struct {
	quiet time.Duration
	seen  map[string]time.Time
}

func newPendingFiles(quiet time.Duration) *pendingFiles {
	return &pendingFiles{quiet: quiet, seen: make(map[string]time.Time)}
}

func (p *pendingFiles) touch(path string, at time.Time) {
	p.seen[path] = at
}

// ready removes and returns the files that were quiet for the debounce
// period, in name order.
func (p *pendingFiles) ready(now time.Time) []string {
	var out []string
	for path, at := range p.seen {
		if now.Sub(at) >= p.quiet {
			out = append(out, path)
			delete(p.seen, path)
		}
	}
	sort.Strings(out)
	return out
}
