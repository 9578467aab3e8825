// Package effects holds the little DSP the software preview needs: a
// Schroeder reverb voiced so a dry SoundFont render sits in a sanctuary
// acoustic instead of an anechoic one.
package effects

// Reverb is a Schroeder-style reverb: four parallel comb filters into two
// series allpass filters, mixed back under the dry signal. It processes the
// split stereo buffers the audio stream hands around.
type Reverb struct {
	combs   [4]combFilter
	allpass [2]allpassFilter
	wet     float32
}

type combFilter struct {
	buf []float32
	pos int
	fb  float32
}

type allpassFilter struct {
	buf []float32
	pos int
	fb  float32
}

// NewReverb builds a reverb. roomSize (0..1) scales the delay lengths,
// decay (0..1) the tail length, wet (0..1) the mix.
func NewReverb(sampleRate int, roomSize, decay, wet float32) *Reverb {
	base := int(float32(sampleRate) * roomSize * 0.05)
	if base < 10 {
		base = 10
	}
	fb := clamp(decay, 0, 0.95)
	r := &Reverb{wet: clamp(wet, 0, 1)}
	// Prime-ish length ratios keep the combs from resonating together.
	combLens := [4]int{base, base * 1117 / 1000, base * 1271 / 1000, base * 1437 / 1000}
	for i := range r.combs {
		r.combs[i] = combFilter{buf: make([]float32, combLens[i]), fb: fb}
	}
	apLens := [2]int{base * 347 / 1000, base * 213 / 1000}
	for i := range r.allpass {
		n := apLens[i]
		if n < 1 {
			n = 1
		}
		r.allpass[i] = allpassFilter{buf: make([]float32, n), fb: 0.5}
	}
	return r
}

// NewChapel is the preset used for hymn previews: a large room with a long
// but unobtrusive tail.
func NewChapel(sampleRate int) *Reverb {
	return NewReverb(sampleRate, 0.85, 0.72, 0.25)
}

// ProcessBlock runs the reverb over one buffer of split stereo samples in
// place. Both slices must be the same length.
func (r *Reverb) ProcessBlock(left, right []float32) {
	for i := range left {
		left[i], right[i] = r.process(left[i], right[i])
	}
}

func (r *Reverb) process(l, rr float32) (float32, float32) {
	mono := (l + rr) * 0.5
	var out float32
	for i := range r.combs {
		out += r.combs[i].process(mono)
	}
	out *= 0.25
	for i := range r.allpass {
		out = r.allpass[i].process(out)
	}
	return l*(1-r.wet) + out*r.wet, rr*(1-r.wet) + out*r.wet
}

func (c *combFilter) process(in float32) float32 {
	out := c.buf[c.pos]
	c.buf[c.pos] = in + out*c.fb
	c.pos++
	if c.pos >= len(c.buf) {
		c.pos = 0
	}
	return out
}

func (a *allpassFilter) process(in float32) float32 {
	bufOut := a.buf[a.pos]
	out := -in + bufOut
	a.buf[a.pos] = in + bufOut*a.fb
	a.pos++
	if a.pos >= len(a.buf) {
		a.pos = 0
	}
	return out
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
