// Command kestrelplay is a small demo harness for the kestrel engine: it
// synthesizes a tone, loads it as a Sound, drives it through a Sequence
// under a running metronome, and either plays it live through the host
// audio device or renders it to a WAV file (the same two destinations
// the teacher's play_mml/offline split supports).
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/kestrelaudio/kestrel"
	"github.com/kestrelaudio/kestrel/internal/backend"
	"github.com/kestrelaudio/kestrel/internal/command"
	"github.com/kestrelaudio/kestrel/internal/frame"
	"github.com/kestrelaudio/kestrel/internal/instance"
	"github.com/kestrelaudio/kestrel/internal/sequence"
	"github.com/kestrelaudio/kestrel/internal/sound"
)

func main() {
	var (
		sampleRate = flag.Int("sample-rate", 48000, "output sample rate")
		freq       = flag.Float64("freq", 440.0, "demo tone frequency in Hz")
		beats      = flag.Int("beats", 4, "number of metronome beats to play the tone on")
		bpm        = flag.Float64("bpm", 120, "metronome tempo")
		volume     = flag.Float64("volume", 0.5, "instance volume")
		out        = flag.String("out", "", "render to this WAV path instead of playing live")
	)
	flag.Parse()

	toneSeconds := 0.5
	tone := generateTone(*sampleRate, *freq, toneSeconds)
	snd := sound.New(uint32(*sampleRate), tone, sound.Metadata{})

	if *out != "" {
		if err := renderToFile(*out, snd, *beats, *bpm); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("wrote %s\n", *out)
		return
	}

	driver, err := backend.NewEbitenDriver(*sampleRate)
	if err != nil {
		log.Fatal(err)
	}
	mgr, err := kestrel.New(driver)
	if err != nil {
		log.Fatal(err)
	}
	defer mgr.Close()

	sid, err := mgr.LoadDecodedSound(snd)
	if err != nil {
		log.Fatal(err)
	}

	seq := kestrel.NewSequence()
	settings := kestrel.DefaultInstanceSettings()
	settings.Volume = *volume
	for i := 0; i < *beats; i++ {
		seq.PlaySound(sid, settings)
		seq.WaitBeats(1)
	}
	seqID, err := mgr.StartSequence(seq)
	if err != nil {
		log.Fatal(err)
	}

	if err := mgr.SetMetronomeTempo(*bpm); err != nil {
		log.Fatal(err)
	}
	if err := mgr.StartMetronome(); err != nil {
		log.Fatal(err)
	}

	beatSeconds := 60.0 / *bpm
	deadline := time.Now().Add(time.Duration(float64(*beats+1) * beatSeconds * float64(time.Second)))
	for time.Now().Before(deadline) {
		for _, ev := range mgr.Events() {
			switch e := ev.(type) {
			case kestrel.MetronomeIntervalPassed:
				fmt.Printf("beat interval %v passed\n", e.Interval)
			case kestrel.CustomEvent:
				fmt.Printf("custom event: %v\n", e.Event)
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	mgr.MuteSequence(seqID)
	mgr.FreeUnusedResources()
}

// generateTone is a phase-accumulator sine oscillator, the same
// technique internal/lfo used for a modulation signal, repurposed here
// to synthesize source samples instead of modulating an existing voice.
func generateTone(sampleRate int, freqHz, seconds float64) []frame.Frame {
	n := int(float64(sampleRate) * seconds)
	out := make([]frame.Frame, n)
	phase := 0.0
	step := freqHz / float64(sampleRate)
	for i := range out {
		v := float32(math.Sin(2 * math.Pi * phase))
		out[i] = frame.Frame{Left: v, Right: v}
		phase += step
		for phase >= 1.0 {
			phase -= 1.0
		}
	}
	return out
}

// renderToFile drives an offline Backend through enough callbacks to
// cover beats metronome beats at bpm, then writes the mixed result as a
// 32-bit float stereo WAV.
func renderToFile(path string, snd sound.Sound, beats int, bpm float64) error {
	sampleRate := snd.SampleRate
	settings := backend.DefaultSettings()
	b := backend.New(sampleRate, settings)

	sid := sound.NewId()
	b.Commands().Push(command.LoadSound{Id: sid, Sound: snd})
	b.Commands().Push(command.StartMetronome{})
	b.Commands().Push(command.SetTempo{BPM: bpm})

	seq := sequence.New()
	settingsInstance := instance.DefaultSettings()
	for i := 0; i < beats; i++ {
		seq.PlaySound(sid, settingsInstance)
		seq.WaitBeats(1)
	}
	b.Commands().Push(command.StartSequence{Id: sequence.NewId(), Sequence: seq})

	totalSeconds := float64(beats+1) * 60.0 / bpm
	totalFrames := int(float64(sampleRate) * totalSeconds)
	buf := make([]float32, totalFrames*2)
	chunk := make([]float32, 512)
	for offset := 0; offset < len(buf); offset += len(chunk) {
		n := len(chunk)
		if offset+n > len(buf) {
			n = len(buf) - offset
		}
		b.Process(chunk[:n])
		copy(buf[offset:offset+n], chunk[:n])
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(encodeWAVFloat32LE(buf, int(sampleRate), 2))
	return err
}

// encodeWAVFloat32LE writes a IEEE-float WAV header (format tag 3)
// around interleaved 32-bit float samples, adapted from the teacher's
// offline.go encoder for kestrel's fixed two-channel output.
func encodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}
