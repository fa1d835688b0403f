package settings

import "sync/atomic"

// Holder publishes immutable settings snapshots. Tick loops call Load
// once per tick and keep the returned pointer for that tick, so a Swap
// from another goroutine becomes visible exactly at the next tick
// boundary. Loaded snapshots must never be written through.
type Holder struct {
	ptr atomic.Pointer[Settings]
}

func NewHolder(s Settings) *Holder {
	h := &Holder{}
	h.Swap(s)
	return h
}

func (h *Holder) Load() *Settings {
	return h.ptr.Load()
}

// Swap normalizes the candidate and publishes it, returning the repairs
// that normalization applied.
func (h *Holder) Swap(s Settings) []string {
	repairs := s.Normalize()
	h.ptr.Store(&s)
	return repairs
}
