// Package hymnplay performs hymns from preprocessed MIDI files: an optional
// introduction assembled from marked segments, a configured number of verses
// with pauses between them, gradual ritardando, and Da Capo al Fine repeats.
// The sequencing engine is pluggable; the package drives it through the
// Engine interface and reports progress through Watch.
package hymnplay

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	intdir "github.com/organpi/hymnplay-go/internal/director"
	intsync "github.com/organpi/hymnplay-go/internal/handshake"
	intscore "github.com/organpi/hymnplay-go/internal/score"
	intseq "github.com/organpi/hymnplay-go/internal/sequencer"
)

// PlaybackEvent carries performance progress from Watch().
type PlaybackEvent struct {
	Kind  int    // EventIntroStarted .. EventFinished
	Verse int    // 1-based verse number for EventVerseStarted
	Last  bool   // set on EventVerseStarted for the final verse
	Text  string // warning text for EventWarning
}

const (
	EventIntroStarted int = iota
	EventVerseStarted
	EventRitardando
	EventDaCapo
	EventFine
	EventStuckNote
	EventWarning
	EventFinished
)

// Output is the destination for channel messages: a hardware MIDI port or a
// software synthesizer.
type Output interface {
	Send(msg []byte) error
}

// Engine is the sequencing transport a performance drives. It plays sections
// of the loaded score, reports each one finished through the registered
// callback, and exposes the speed control the ritardando decay leans on.
// *sequencer.Sequencer implements it.
type Engine interface {
	Start()
	Close()

	Play()
	Stop()
	Finish()
	Rewind()
	GoToTick(tick uint32)
	NotesOff()

	Speed() float64
	SetSpeed(v float64)
	CurrentTimePos() int64

	SetHeartbeatFunc(fn func())
	SetEventFunc(fn func(raw []byte) bool)
	SetFinishedFunc(fn func())

	Err() error
}

var _ Engine = (*intseq.Sequencer)(nil)

const (
	usecPerMinute       = 60000000
	defaultPreludeSpeed = 0.90
)

// Option configures a performance before loading.
type Option func(*config)

type config struct {
	speed       float64
	tempoBPM    float64
	verses      int
	forceVerses bool
	playIntro   bool
	warnings    bool
	verseDelay  time.Duration
	hasDelay    bool
}

func defaultConfig() config {
	return config{speed: 1.0, playIntro: true}
}

// WithSpeed sets the base speed multiplier. 1.0 plays the hymn at its own
// pace; non-positive values are ignored.
func WithSpeed(mult float64) Option {
	return func(cfg *config) {
		if mult > 0 {
			cfg.speed = mult
		}
	}
}

// WithTempoBPM forces the performance tempo, overriding the tempo stored in
// the file.
func WithTempoBPM(bpm float64) Option {
	return func(cfg *config) {
		if bpm > 0 {
			cfg.tempoBPM = bpm
		}
	}
}

// WithVerses sets the verse count to play when the file itself names none.
// A count stored in the file wins.
func WithVerses(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.verses = n
		}
	}
}

// WithIntro enables or disables the introduction. Files without intro
// segments never play one regardless of this setting.
func WithIntro(enabled bool) Option {
	return func(cfg *config) { cfg.playIntro = enabled }
}

// WithWarnings turns on the stuck-note warning event.
func WithWarnings(enabled bool) Option {
	return func(cfg *config) { cfg.warnings = enabled }
}

// WithVerseDelay overrides the gap between verses. Without it the gap comes
// from the file's pause directive, defaulting to one quarter note of time.
func WithVerseDelay(d time.Duration) Option {
	return func(cfg *config) {
		if d >= 0 {
			cfg.verseDelay = d
			cfg.hasDelay = true
		}
	}
}

// WithPrelude switches to prelude/postlude mode: two verses, no
// introduction, played at mult speed (0.9 when mult is zero). The two-verse
// default beats a verse count stored in the file; a later WithVerses can
// still change it.
func WithPrelude(mult float64) Option {
	return func(cfg *config) {
		cfg.verses = 2
		cfg.forceVerses = true
		cfg.playIntro = false
		if mult > 0 {
			cfg.speed = mult
		} else {
			cfg.speed = defaultPreludeSpeed
		}
	}
}

// ErrInterrupted reports a performance cut short by Interrupt.
var ErrInterrupted = errors.New("performance interrupted")

// Player drives one loaded hymn through a complete performance.
type Player struct {
	cfg    config
	score  *intscore.Score
	engine Engine

	state *intdir.State
	dir   *intdir.Director
	rit   *intdir.Ritardando
	sync  *intsync.Synchronizer

	// baseSpeed is the configured multiplier; baseTempo maps the file tempo
	// onto the effective bpm. Their product is the engine speed every verse
	// starts from.
	baseSpeed float64
	baseTempo float64

	interrupted atomic.Bool

	eventChMu sync.Mutex
	eventCh   chan PlaybackEvent
}

// Load reads, filters and preprocesses the hymn at path and readies a
// performance that sends to out.
func Load(path string, out Output, opts ...Option) (*Player, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	sc, err := loadScore(path, cfg)
	if err != nil {
		return nil, err
	}

	eng := intseq.New(sc, out)
	p := newPlayer(sc, eng, cfg)
	eng.Start()
	return p, nil
}

// LoadScore reads and preprocesses the hymn at path without readying a
// performance, for offline uses such as rendering.
func LoadScore(path string, opts ...Option) (*intscore.Score, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return loadScore(path, cfg)
}

func loadScore(path string, cfg config) (*intscore.Score, error) {
	var overrideUSec int
	if cfg.tempoBPM > 0 {
		overrideUSec = int(usecPerMinute / cfg.tempoBPM)
	}
	return intscore.Load(path, intscore.Options{
		TempoOverrideUSec: overrideUSec,
		Verses:            cfg.verses,
		ForceVerses:       cfg.forceVerses,
	})
}

// newPlayer wires the engine callbacks and computes the base pacing. The
// engine clock is not started here.
func newPlayer(sc *intscore.Score, eng Engine, cfg config) *Player {
	if len(sc.Meta.Segments) == 0 {
		cfg.playIntro = false
	}

	p := &Player{
		cfg:       cfg,
		score:     sc,
		engine:    eng,
		state:     intdir.NewState(),
		sync:      intsync.New(),
		baseSpeed: cfg.speed,
		baseTempo: 1.0,
	}
	if sc.Meta.FileTempo > 0 {
		p.baseTempo = sc.Meta.BPM / sc.Meta.FileTempo
	}
	p.state.SetShowWarnings(cfg.warnings)

	p.dir = intdir.New(intdir.Options{
		Transport: eng,
		State:     p.state,
		Segments:  sc.Meta.Segments,
		StuckNote: sc.Meta.StuckNote,
		OnNotice:  p.onNotice,
	})
	p.rit = intdir.NewRitardando(p.state, eng)

	eng.SetHeartbeatFunc(p.rit.OnHeartbeat)
	eng.SetEventFunc(p.dir.OnEvent)
	eng.SetFinishedFunc(p.sync.Notify)
	eng.SetSpeed(p.baseTempo * p.baseSpeed)
	return p
}

// onNotice translates director observations into watchable events. It runs
// on the engine goroutine.
func (p *Player) onNotice(n intdir.Notice) {
	switch n {
	case intdir.NoticeRitardando:
		p.sendEvent(PlaybackEvent{Kind: EventRitardando})
	case intdir.NoticeStuckNote:
		p.sendEvent(PlaybackEvent{Kind: EventStuckNote})
	case intdir.NoticeDaCapo:
		p.sendEvent(PlaybackEvent{Kind: EventDaCapo})
	case intdir.NoticeFine:
		p.sendEvent(PlaybackEvent{Kind: EventFine})
	}
}

// Meta exposes everything preprocessing learned about the loaded hymn.
func (p *Player) Meta() *intscore.Metadata {
	return p.score.Meta
}

// BaseSpeed is the configured speed multiplier.
func (p *Player) BaseSpeed() float64 {
	return p.baseSpeed
}

// Verses is the number of verses the performance will play.
func (p *Player) Verses() int {
	return p.score.Meta.Verses
}

// PlaysIntro reports whether the performance opens with an introduction.
func (p *Player) PlaysIntro() bool {
	return p.cfg.playIntro
}

// Watch returns a channel carrying performance progress: intro and verse
// starts, ritardando onset, Da Capo al Fine activity, warnings, and the
// final EventFinished.
//
// The channel is buffered (cap 8); receive in a goroutine to avoid blocking
// the engine. Only the most recent Watch() channel receives events; call
// Watch before Perform.
func (p *Player) Watch() <-chan PlaybackEvent {
	ch := make(chan PlaybackEvent, 8)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

func (p *Player) sendEvent(ev PlaybackEvent) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full; drop event
		}
	}
}

// Interrupt aborts the performance. It is safe from any goroutine, only
// flips flags and wakes the blocked Perform call, which silences the engine
// and returns ErrInterrupted.
func (p *Player) Interrupt() {
	p.interrupted.Store(true)
	p.engine.Stop()
	p.sync.Notify()
}

// Close stops the engine clock. The player cannot be reused afterwards.
func (p *Player) Close() {
	p.engine.Close()
}
