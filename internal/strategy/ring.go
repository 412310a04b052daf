package strategy

// ring is a fixed-capacity circular buffer of float64 with a write cursor.
// at(n) returns the value pushed n calls ago; at(0) is the most recent push.
// The buffer is zero-initialized, so lookbacks older than the number of
// pushes read zero unless the ring was seeded.
type ring struct {
	Buf []float64 `json:"buf"`
	Cur int       `json:"cur"`
}

func newRing(capacity int) *ring {
	return &ring{Buf: make([]float64, capacity)}
}

func (r *ring) push(v float64) {
	r.Cur = (r.Cur + 1) % len(r.Buf)
	r.Buf[r.Cur] = v
}

func (r *ring) at(n int) float64 {
	i := (r.Cur - n) % len(r.Buf)
	if i < 0 {
		i += len(r.Buf)
	}
	return r.Buf[i]
}

// fill writes v into every slot. Used on the first bar so lookbacks resolve
// to the first observed value instead of zero.
func (r *ring) fill(v float64) {
	for i := range r.Buf {
		r.Buf[i] = v
	}
}
