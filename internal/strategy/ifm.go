package strategy

import "math"

// Instantaneous Frequency Measurement: both detectors derive a per-bar phase
// delta from the price stream, accumulate the most recent deltas until the
// sum exceeds one full rotation (2π), and take the bar count at the crossing
// as the instantaneous period. The raw estimate is then smoothed 0.25/0.75.
//
// Each detector owns its price and delta history outright so that "average"
// mode runs both over identical, independent views of the series.

const (
	ifmRange     = 50 // phase-delta lookback; buffers hold ifmRange+1 entries
	ifmSmoothing = 0.25
)

// cosineIFM estimates the dominant cycle from the ratio of smoothed squared
// sums and differences of the 7-bar momentum.
type cosineIFM struct {
	Src    *ring `json:"src"` // last 8 closes, for the 7-bars-ago lookback
	Deltas *ring `json:"deltas"`
	V1Prev float64 `json:"v1_prev"`
	S2     float64 `json:"s2"`
	S3     float64 `json:"s3"`
	Inst   float64 `json:"inst"`
	Smooth float64 `json:"smooth"`
	Seeded bool    `json:"seeded"`
}

func newCosineIFM() *cosineIFM {
	return &cosineIFM{Src: newRing(8), Deltas: newRing(ifmRange + 1)}
}

// update consumes one close price and returns the smoothed period estimate.
func (m *cosineIFM) update(src float64) float64 {
	if !m.Seeded {
		m.Src.fill(src)
		m.Seeded = true
	}
	m.Src.push(src)
	v1 := src - m.Src.at(7)

	v1Prev := m.V1Prev
	m.V1Prev = v1

	m.S2 = 0.2*(v1Prev+v1)*(v1Prev+v1) + 0.8*m.S2
	m.S3 = 0.2*(v1Prev-v1)*(v1Prev-v1) + 0.8*m.S3

	delta := 0.0
	if m.S2 != 0 && m.S3/m.S2 >= 0 {
		delta = 2 * math.Atan(math.Sqrt(m.S3/m.S2))
	}
	m.Deltas.push(delta)

	// Walk back from the current bar; the first index whose cumulative phase
	// exceeds 2π marks one full cycle. The cosine variant reports i-1.
	sum := 0.0
	inst := m.Inst // carry the previous estimate when no crossing occurs
	for i, found := 0, false; i <= ifmRange; i++ {
		sum += m.Deltas.at(i)
		if sum > 2*math.Pi && !found {
			inst = float64(i - 1)
			found = true
		}
	}
	m.Inst = inst
	m.Smooth = ifmSmoothing*inst + (1-ifmSmoothing)*m.Smooth
	return m.Smooth
}

// iqIFM estimates the dominant cycle from in-phase/quadrature recursive
// filters over the 7-bar momentum, correlated into a complex (re, im) pair
// whose angle is the per-bar phase delta.
type iqIFM struct {
	Src        *ring `json:"src"` // last 8 closes
	P          *ring `json:"p"`   // last 5 momentum values, for lags 2 and 4
	InPhase    *ring `json:"inphase"`
	Quadrature *ring `json:"quadrature"`
	Deltas     *ring `json:"deltas"`
	Re         float64 `json:"re"`
	Im         float64 `json:"im"`
	Inst       float64 `json:"inst"`
	Smooth     float64 `json:"smooth"`
	Seeded     bool    `json:"seeded"`
}

const (
	iqIMult = 0.635
	iqQMult = 0.338
)

func newIQIFM() *iqIFM {
	return &iqIFM{
		Src:        newRing(8),
		P:          newRing(5),
		InPhase:    newRing(4),
		Quadrature: newRing(3),
		Deltas:     newRing(ifmRange + 1),
	}
}

// update consumes one close price and returns the smoothed period estimate.
func (m *iqIFM) update(src float64) float64 {
	if !m.Seeded {
		m.Src.fill(src)
		m.Seeded = true
		m.P.fill(src - m.Src.at(7)) // zero on the first bar
	}
	m.Src.push(src)
	p := src - m.Src.at(7)
	m.P.push(p)
	p2 := m.P.at(2)
	p4 := m.P.at(4)

	// Recursive terms are read before this bar's values are pushed: at(0)
	// is then 1 bar ago, at(2) is 3 bars ago.
	inPhase3 := m.InPhase.at(2)
	inPhase1 := m.InPhase.at(0)
	quad2 := m.Quadrature.at(1)
	quad1 := m.Quadrature.at(0)

	inPhase := 1.25*(p4-iqIMult*p2) + iqIMult*inPhase3
	quad := p2 - iqQMult*p + iqQMult*quad2
	m.InPhase.push(inPhase)
	m.Quadrature.push(quad)

	m.Re = 0.2*(inPhase*inPhase1+quad*quad1) + 0.8*m.Re
	m.Im = 0.2*(inPhase*quad1-inPhase1*quad) + 0.8*m.Im

	var delta float64
	switch {
	case m.Re != 0:
		delta = math.Atan2(m.Im, m.Re)
	case m.Im != 0:
		delta = math.Copysign(math.Pi/2, m.Im)
	}
	m.Deltas.push(delta)

	sum := 0.0
	inst := m.Inst
	for i, found := 0, false; i <= ifmRange; i++ {
		sum += m.Deltas.at(i)
		if sum > 2*math.Pi && !found {
			inst = float64(i)
			found = true
		}
	}
	m.Inst = inst
	m.Smooth = ifmSmoothing*inst + (1-ifmSmoothing)*m.Smooth
	return m.Smooth
}
