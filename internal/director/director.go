package director

import "github.com/organpi/hymnplay-go/internal/score"

// Transport is the command surface the director drives while a section
// streams.
type Transport interface {
	Play()
	Stop()
	Finish()
	GoToTick(tick uint32)
	NotesOff()
}

// Notice identifies a playback observation the director reports upward.
type Notice int

const (
	// NoticeRitardando fires when a ritardando marker arms the decay.
	NoticeRitardando Notice = iota
	// NoticeStuckNote fires when the intro ends where notes may still be
	// sounding and an all-notes-off was issued.
	NoticeStuckNote
	// NoticeDaCapo fires when a D.C. al Fine marker cuts the last verse.
	NoticeDaCapo
	// NoticeFine fires when the Fine marker ends the repeated pass.
	NoticeFine
)

// Options configure a Director.
type Options struct {
	Transport Transport
	State     *State
	Segments  []score.IntroSegment
	StuckNote bool

	// OnNotice, when non-nil, receives observations as they happen on
	// the sequencer goroutine.
	OnNotice func(Notice)
}

// Director decides, for every event about to be emitted, whether it reaches
// the output and what transport commands the markers among them imply. It
// keeps a cursor into the introduction segments so successive intro-end
// markers chain the introductory phrases together.
type Director struct {
	transport Transport
	state     *State
	segments  []score.IntroSegment
	stuckNote bool
	onNotice  func(Notice)

	cursor int
}

// New returns a Director ready for an introduction pass.
func New(opts Options) *Director {
	return &Director{
		transport: opts.Transport,
		state:     opts.State,
		segments:  opts.Segments,
		stuckNote: opts.StuckNote,
		onNotice:  opts.OnNotice,
	}
}

// ResetIntroCursor points the director back at the first intro segment.
// Call it before each introduction pass.
func (d *Director) ResetIntroCursor() {
	d.cursor = 0
}

// OnEvent reports whether one streamed event may reach the output. It runs
// on the sequencer goroutine for every event, marker or not.
func (d *Director) OnEvent(raw []byte) bool {
	text, ok := score.MarkerText(raw)
	if !ok {
		return true
	}

	switch {
	case d.state.PlayingIntro() && len(d.segments) > 0 && text == score.MarkerIntroEnd:
		d.advanceIntro()

	case (d.state.PlayingIntro() || d.state.LastVerse()) && text == score.MarkerRitardando:
		d.state.SetRitardando(true)
		d.notice(NoticeRitardando)

	case d.state.LastVerse() && text == score.MarkerDaCapoAlFine:
		d.state.SetAlternateEnding(true)
		d.transport.Stop()
		d.transport.Finish()
		d.notice(NoticeDaCapo)
		return false

	case d.state.AlternateEnding() && text == score.MarkerFine:
		d.transport.Stop()
		d.transport.Finish()
		d.notice(NoticeFine)
		return false
	}
	return true
}

// advanceIntro jumps to the next introduction phrase, or ends the pass when
// the segments are exhausted. Stopping before the seek keeps the sequencer
// from emitting events at the old position while the cursor moves.
func (d *Director) advanceIntro() {
	d.cursor++
	if d.cursor < len(d.segments) {
		d.transport.Stop()
		d.transport.GoToTick(d.segments[d.cursor].Start)
		d.transport.Play()
		return
	}

	d.transport.Stop()
	d.transport.Finish()
	if d.stuckNote {
		d.transport.NotesOff()
		if d.state.ShowWarnings() {
			d.notice(NoticeStuckNote)
		}
	}
}

func (d *Director) notice(n Notice) {
	if d.onNotice != nil {
		d.onNotice(n)
	}
}
