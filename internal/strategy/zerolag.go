package strategy

import "math"

const (
	gainLimit = 900 // scan -90.0..+90.0 in 0.1 steps
)

// zeroLagFilter is the error-corrected EMA. Each bar it recomputes the EMA
// with alpha = 2/(period+1), then scans gain candidates for the error
// correction term and keeps the one whose corrected value lands closest to
// the source price. The previous bar's EC is held fixed during the scan so
// every candidate is judged against the same base.
type zeroLagFilter struct {
	EMA        float64 `json:"ema"`
	EC         float64 `json:"ec"`
	LeastError float64 `json:"least_error"`
	BestGain   float64 `json:"best_gain"`
	Seeded     bool    `json:"seeded"`
}

// update advances the filter one bar and returns the new EC and EMA.
func (f *zeroLagFilter) update(src float64, period int) (ec, ema float64) {
	if !f.Seeded {
		f.EMA = src
		f.EC = src
		f.Seeded = true
	}

	alpha := 2.0 / (float64(period) + 1.0)
	emaPrev := f.EMA
	ecPrev := f.EC
	f.EMA = alpha*src + (1-alpha)*emaPrev

	least := math.MaxFloat64
	best := 0.0
	for i := -gainLimit; i <= gainLimit; i++ {
		gain := float64(i) / 10.0
		cand := alpha*(f.EMA+gain*(src-ecPrev)) + (1-alpha)*ecPrev
		err := math.Abs(src - cand)
		if err < least {
			least = err
			best = gain
		}
	}
	f.EC = alpha*(f.EMA+best*(src-ecPrev)) + (1-alpha)*ecPrev
	f.LeastError = least
	f.BestGain = best
	return f.EC, f.EMA
}
