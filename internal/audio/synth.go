package audio

import (
	"fmt"
	"os"
	"sync"

	"github.com/sinshu/go-meltysynth/meltysynth"
)

// Synth drives a SoundFont synthesizer with raw MIDI messages. Send
// may be called from one goroutine while the audio layer calls Process
// from another.
type Synth struct {
	mu    sync.Mutex
	inner *meltysynth.Synthesizer
}

// NewSynth loads the SoundFont file and prepares a synthesizer at the
// given sample rate.
func NewSynth(sampleRate int, soundFontPath string) (*Synth, error) {
	f, err := os.Open(soundFontPath)
	if err != nil {
		return nil, fmt.Errorf("soundfont: %w", err)
	}
	defer f.Close()

	sf, err := meltysynth.NewSoundFont(f)
	if err != nil {
		return nil, fmt.Errorf("soundfont %s: %w", soundFontPath, err)
	}
	settings := meltysynth.NewSynthesizerSettings(int32(sampleRate))
	inner, err := meltysynth.NewSynthesizer(sf, settings)
	if err != nil {
		return nil, fmt.Errorf("synthesizer: %w", err)
	}
	return &Synth{inner: inner}, nil
}

// Send feeds one channel message to the synthesizer. Messages outside
// the channel range are dropped; the synthesizer has no use for them.
func (s *Synth) Send(msg []byte) error {
	if len(msg) == 0 || msg[0] < 0x80 || msg[0] >= 0xF0 {
		return nil
	}
	var d1, d2 int32
	if len(msg) > 1 {
		d1 = int32(msg[1])
	}
	if len(msg) > 2 {
		d2 = int32(msg[2])
	}
	s.mu.Lock()
	s.inner.ProcessMidiMessage(int32(msg[0]&0x0F), int32(msg[0]&0xF0), d1, d2)
	s.mu.Unlock()
	return nil
}

// Process renders the next block of stereo samples.
func (s *Synth) Process(left, right []float32) {
	s.mu.Lock()
	s.inner.Render(left, right)
	s.mu.Unlock()
}

// Silence cuts every sounding voice immediately.
func (s *Synth) Silence() {
	s.mu.Lock()
	s.inner.NoteOffAll(true)
	s.mu.Unlock()
}
