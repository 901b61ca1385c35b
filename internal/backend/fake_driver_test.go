package backend

// fakeDriver is a test-only Driver that can report an arbitrary channel
// count, which EbitenDriver never does (SPEC_FULL.md §5). The rejection
// of a non-stereo driver happens in kestrel.New and is tested in the
// root package.
type fakeDriver struct {
	sampleRate int
	channels   int
	closed     bool
	pull       func(out []float32)
}

func (d *fakeDriver) SampleRate() int { return d.sampleRate }
func (d *fakeDriver) Channels() int   { return d.channels }

func (d *fakeDriver) Start(pull func(out []float32)) error {
	d.pull = pull
	return nil
}

func (d *fakeDriver) Close() error {
	d.closed = true
	return nil
}

// pullOnce drives one callback's worth of frames through the stored pull
// function, as the real driver's own audio thread would.
func (d *fakeDriver) pullOnce(out []float32) {
	d.pull(out)
}
