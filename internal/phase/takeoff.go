package phase

import "math"

// Profile is a precomputed takeoff thrust ramp: fractions 1-e^(-t) for
// t = 0..n-1, the shape of a charging capacitor. The fractions are immutable;
// a monotonic cursor advances one step per tick and never rewinds.
type Profile struct {
	fractions []float64
	cursor    int
}

// NewProfile builds a ramp of n steps.
func NewProfile(n int) *Profile {
	f := make([]float64, n)
	for t := range f {
		f[t] = 1 - math.Exp(-float64(t))
	}
	return &Profile{fractions: f}
}

// Next returns the next thrust fraction and advances the cursor. ok is false
// once the profile is exhausted; the profile then stays exhausted forever.
func (p *Profile) Next() (fraction float64, ok bool) {
	if p.cursor >= len(p.fractions) {
		return 0, false
	}
	fraction = p.fractions[p.cursor]
	p.cursor++
	return fraction, true
}

// Exhausted reports whether every step has been consumed.
func (p *Profile) Exhausted() bool {
	return p.cursor >= len(p.fractions)
}
