// Package sequencer schedules preprocessed score events onto a MIDI output
// in real time. A fixed-quantum clock advances a fractional tick position by
// the current speed multiplier, dispatches every event that has come due,
// and lets registered callbacks observe or veto each one before it reaches
// the port.
package sequencer

import (
	"sort"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"

	"github.com/organpi/hymnplay-go/internal/score"
)

// Output is where channel messages go while a section plays. Hardware ports
// and the software synthesizer both satisfy it.
type Output interface {
	Send(msg []byte) error
}

// MIDI CC 123, All Notes Off.
const ccAllNotesOff = 123

const defaultQuantumUSec = 1000

// Options adjust scheduling granularity.
type Options struct {
	// QuantumUSec is the clock resolution in microseconds. The default is
	// one millisecond.
	QuantumUSec int64
}

// Sequencer walks the merged event stream of one score. All exported
// methods are safe from any goroutine, including from inside the callbacks:
// a transport command issued by a callback (stop, seek, play) invalidates
// the dispatch pass that invoked it, so no events leak from the old
// position after a jump.
type Sequencer struct {
	out     Output
	events  []score.Event
	ppq     uint16
	quantum int64

	mu          sync.Mutex
	usecPerTick int64
	speed       float64
	tickPos     float64
	posUsec     int64
	cursor      int
	playing     bool
	finished    bool
	gen         uint64
	sendErr     error

	onHeartbeat func()
	onEvent     func(raw []byte) bool
	onFinished  func()

	quit      chan struct{}
	closeOnce sync.Once
}

// New returns a stopped sequencer positioned at tick zero.
func New(sc *score.Score, out Output) *Sequencer {
	return NewWithOptions(sc, out, Options{})
}

func NewWithOptions(sc *score.Score, out Output, opts Options) *Sequencer {
	quantum := opts.QuantumUSec
	if quantum <= 0 {
		quantum = defaultQuantumUSec
	}
	return &Sequencer{
		out:         out,
		events:      sc.Merged(),
		ppq:         sc.PPQ,
		quantum:     quantum,
		usecPerTick: sc.USecPerTick(),
		speed:       1.0,
		quit:        make(chan struct{}),
	}
}

// Start launches the clock goroutine. Call it once; Close stops the clock
// for good.
func (s *Sequencer) Start() {
	go s.run()
}

// Close terminates the clock goroutine. The sequencer cannot be restarted.
func (s *Sequencer) Close() {
	s.closeOnce.Do(func() { close(s.quit) })
}

func (s *Sequencer) run() {
	tick := time.NewTicker(time.Duration(s.quantum) * time.Microsecond)
	defer tick.Stop()
	for {
		select {
		case <-s.quit:
			return
		case <-tick.C:
			s.Step(s.quantum)
		}
	}
}

// SetHeartbeatFunc registers fn to run once per clock quantum while a
// section is playing.
func (s *Sequencer) SetHeartbeatFunc(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onHeartbeat = fn
}

// SetEventFunc registers the per-event filter. It runs for every due event,
// channel message or meta; returning false suppresses the event.
func (s *Sequencer) SetEventFunc(fn func(raw []byte) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvent = fn
}

// SetFinishedFunc registers fn to run when a section completes, whether the
// stream ran out or Finish was called.
func (s *Sequencer) SetFinishedFunc(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFinished = fn
}

// Play begins or resumes dispatch at the current position.
func (s *Sequencer) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.playing = true
	s.finished = false
}

// Stop halts dispatch and keeps the position.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.playing = false
}

// Finish halts dispatch and reports the section complete. The finished
// callback fires once per section no matter how often Finish is called;
// Play arms it again.
func (s *Sequencer) Finish() {
	s.mu.Lock()
	s.gen++
	s.playing = false
	fire := !s.finished && s.onFinished != nil
	s.finished = true
	cb := s.onFinished
	s.mu.Unlock()

	if fire {
		cb()
	}
}

// GoToTick moves the playback cursor. Program changes and the surviving
// controllers ahead of the target are replayed so the console state matches
// what playing through would have produced.
func (s *Sequencer) GoToTick(tick uint32) {
	s.mu.Lock()
	s.gen++
	s.tickPos = float64(tick)
	target := sort.Search(len(s.events), func(i int) bool {
		return s.events[i].Tick >= tick
	})
	s.cursor = target
	var replay [][]byte
	for _, ev := range s.events[:target] {
		if isSetupMessage(ev.Raw) {
			replay = append(replay, ev.Raw)
		}
	}
	s.mu.Unlock()

	for _, raw := range replay {
		s.send(raw)
	}
}

// Rewind returns to the top of the score and restarts the position clock.
func (s *Sequencer) Rewind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.tickPos = 0
	s.posUsec = 0
	s.cursor = 0
}

// Speed returns the current tempo multiplier.
func (s *Sequencer) Speed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// SetSpeed sets the tempo multiplier. Non-positive values are ignored.
func (s *Sequencer) SetSpeed(v float64) {
	if v <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speed = v
}

// CurrentTimePos is the playback position in microseconds since the section
// clock last rewound.
func (s *Sequencer) CurrentTimePos() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.posUsec
}

// Err returns the first output write error, if any.
func (s *Sequencer) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendErr
}

// NotesOff silences every channel with an All Notes Off controller.
func (s *Sequencer) NotesOff() {
	for ch := 0; ch < 16; ch++ {
		s.send(midi.ControlChange(uint8(ch), ccAllNotesOff, 0))
	}
}

// Step advances the clock by one quantum. The run loop calls it from the
// ticker; it is exported so tests and alternative clocks can drive playback
// deterministically.
func (s *Sequencer) Step(quantumUSec int64) {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return
	}
	gen := s.gen
	s.posUsec += quantumUSec
	if s.usecPerTick > 0 {
		s.tickPos += s.speed * float64(quantumUSec) / float64(s.usecPerTick)
	}
	hb := s.onHeartbeat
	s.mu.Unlock()

	if hb != nil {
		hb()
	}
	s.dispatch(gen)
}

// dispatch sends every event due at the current tick position. The lock is
// released around the event callback because the callback may reenter the
// transport; the generation check at the top of each pass discards the rest
// of an invalidated batch.
func (s *Sequencer) dispatch(gen uint64) {
	for {
		s.mu.Lock()
		if !s.playing || s.gen != gen {
			s.mu.Unlock()
			return
		}
		if s.cursor >= len(s.events) {
			s.mu.Unlock()
			s.Finish()
			return
		}
		ev := s.events[s.cursor]
		if float64(ev.Tick) > s.tickPos {
			s.mu.Unlock()
			return
		}
		s.cursor++
		fn := s.onEvent
		s.mu.Unlock()

		if fn != nil && !fn(ev.Raw) {
			continue
		}
		s.emit(ev.Raw)
	}
}

// emit applies tempo metas to the clock and forwards channel messages to
// the output. Other metas are bookkeeping only and never leave the process.
func (s *Sequencer) emit(raw []byte) {
	if usec, ok := score.TempoUSec(raw); ok {
		s.mu.Lock()
		if s.ppq > 0 {
			s.usecPerTick = int64(usec) / int64(s.ppq)
		}
		s.mu.Unlock()
		return
	}
	if !score.IsChannelMessage(raw) {
		return
	}
	s.send(raw)
}

func (s *Sequencer) send(raw []byte) {
	if err := s.out.Send(raw); err != nil {
		s.mu.Lock()
		if s.sendErr == nil {
			s.sendErr = err
		}
		s.mu.Unlock()
	}
}

// isSetupMessage reports whether raw carries console state worth replaying
// across a seek: program changes and the organ-stop controllers that
// survived preprocessing.
func isSetupMessage(raw []byte) bool {
	if len(raw) == 0 {
		return false
	}
	switch raw[0] & 0xF0 {
	case 0xC0, 0xB0:
		return score.IsChannelMessage(raw)
	}
	return false
}
