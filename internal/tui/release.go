package tui

import (
	"sort"
	"time"

	"github.com/icco/keysynth/internal/keymap"
)

// releaseDetector infers key-up from the absence of auto-repeat. Terminals
// only report presses: a held key repeats, so a key that has not been seen
// for longer than the threshold is treated as released.
type releaseDetector struct {
	after    time.Duration
	lastSeen map[keymap.Code]time.Time
}

func newReleaseDetector(after time.Duration) *releaseDetector {
	return &releaseDetector{
		after:    after,
		lastSeen: make(map[keymap.Code]time.Time),
	}
}

// press records a press and reports whether the key was not already held.
func (r *releaseDetector) press(code keymap.Code, now time.Time) bool {
	_, held := r.lastSeen[code]
	r.lastSeen[code] = now
	return !held
}

// expired removes and returns the keys not seen since now-after, in
// layout order.
func (r *releaseDetector) expired(now time.Time) []keymap.Code {
	var out []keymap.Code
	for code, seen := range r.lastSeen {
		if now.Sub(seen) > r.after {
			out = append(out, code)
			delete(r.lastSeen, code)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ni, _ := keymap.MIDINote(out[i])
		nj, _ := keymap.MIDINote(out[j])
		return ni < nj
	})
	return out
}

func (r *releaseDetector) forget(code keymap.Code) {
	delete(r.lastSeen, code)
}

func (r *releaseDetector) reset() {
	r.lastSeen = make(map[keymap.Code]time.Time)
}
