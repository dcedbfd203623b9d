package render

import (
	"math"
	"time"
)

// Tab retirement thresholds. A retired tab is closed and replaced by a fresh
// one on the next render.
const (
	maxTabErrScore = 3.0
	maxTabUses     = 50
	maxTabAge      = 50 * time.Minute
)

// tabHealth scores a pooled tab. Each failure adds one point and each
// success removes half a point, down to zero.
type tabHealth struct {
	errScore float64
	uses     int
	created  time.Time
}

func newTabHealth(now time.Time) *tabHealth {
	return &tabHealth{created: now}
}

// record counts one render.
func (h *tabHealth) record(success bool) {
	h.uses++
	if success {
		h.errScore = math.Max(0, h.errScore-0.5)
	} else {
		h.errScore++
	}
}

// retire reports whether the tab has failed too often, served too many
// renders or lived too long.
func (h *tabHealth) retire(now time.Time) bool {
	return h.errScore >= maxTabErrScore ||
		h.uses >= maxTabUses ||
		now.Sub(h.created) >= maxTabAge
}
