// Package frame defines the stereo sample type and the cubic resampler
// used to fetch a Sound's value at an arbitrary floating-point position.
package frame

// Frame is one stereo sample pair.
type Frame struct {
	Left  float32
	Right float32
}

// Zero is silence.
var Zero = Frame{}

func FromMono(v float32) Frame {
	return Frame{Left: v, Right: v}
}

func (f Frame) Add(o Frame) Frame {
	return Frame{Left: f.Left + o.Left, Right: f.Right + o.Right}
}

func (f Frame) Sub(o Frame) Frame {
	return Frame{Left: f.Left - o.Left, Right: f.Right - o.Right}
}

func (f Frame) Scale(s float32) Frame {
	return Frame{Left: f.Left * s, Right: f.Right * s}
}

func (f Frame) Div(s float32) Frame {
	return Frame{Left: f.Left / s, Right: f.Right / s}
}

func (f Frame) Neg() Frame {
	return Frame{Left: -f.Left, Right: -f.Right}
}

// at returns samples[i], or silence if i is out of range (including i<0).
func at(samples []Frame, i int) Frame {
	if i < 0 || i >= len(samples) {
		return Zero
	}
	return samples[i]
}

// Interpolate resamples samples at positionSeconds using the four-point
// cubic (Catmull-Rom-style) interpolator specified in spec.md §4.3. This
// formula is a wire contract: test vectors depend on its exact shape,
// so it must not be replaced by an equivalent-looking variant.
func Interpolate(samples []Frame, positionSeconds float64, sampleRate uint32) Frame {
	sp := positionSeconds * float64(sampleRate)
	i := int(sp)
	x := float32(sp - float64(i))

	y0 := at(samples, i-1)
	y1 := at(samples, i)
	y2 := at(samples, i+1)
	y3 := at(samples, i+2)

	c0 := y1
	c1 := y2.Sub(y0).Scale(0.5)
	c2 := y0.Sub(y1.Scale(2.5)).Add(y2.Scale(2)).Sub(y3.Scale(0.5))
	c3 := y3.Sub(y0).Scale(0.5).Add(y1.Sub(y2).Scale(1.5))

	return c3.Scale(x).Add(c2).Scale(x).Add(c1).Scale(x).Add(c0)
}
