// Package director interprets marker events during live playback: jumping
// between introduction phrases, arming the ritardando decay, and realizing
// Da Capo al Fine repeats. It also owns the shared flag state those
// decisions read and write.
package director

import "sync"

// State holds the flags shared between the performance loop and the
// sequencer callbacks. The callbacks run on the sequencer goroutine while
// the loop runs on its own, so access is mutex-guarded.
type State struct {
	mu           sync.Mutex
	playingIntro bool
	ritardando   bool
	lastVerse    bool
	alternateEnd bool
	showWarnings bool
}

// NewState returns a State with all flags clear.
func NewState() *State {
	return &State{}
}

// Reset clears the per-pass flags. The warnings preference spans the whole
// session and survives.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playingIntro = false
	s.ritardando = false
	s.lastVerse = false
	s.alternateEnd = false
}

func (s *State) PlayingIntro() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playingIntro
}

func (s *State) SetPlayingIntro(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playingIntro = v
}

func (s *State) Ritardando() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ritardando
}

func (s *State) SetRitardando(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ritardando = v
}

func (s *State) LastVerse() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastVerse
}

func (s *State) SetLastVerse(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastVerse = v
}

func (s *State) AlternateEnding() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alternateEnd
}

func (s *State) SetAlternateEnding(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alternateEnd = v
}

func (s *State) ShowWarnings() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.showWarnings
}

func (s *State) SetShowWarnings(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showWarnings = v
}
