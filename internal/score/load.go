package score

import (
	"fmt"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"
)

// Event is one surviving event: its absolute tick within its track and the
// raw message bytes as stored in the file.
type Event struct {
	Tick uint32
	Raw  []byte
}

// Score is a fully preprocessed hymn, ready to sequence.
type Score struct {
	Meta   *Metadata
	Tracks [][]Event
	PPQ    uint16
}

// Options configure a load.
type Options struct {
	// TempoOverrideUSec replaces the file tempo, in microseconds per
	// quarter note. 0 keeps the file's tempo.
	TempoOverrideUSec int

	// Verses is a command-line verse count. 0 means no override; a count
	// found in the file still wins unless ForceVerses is set.
	Verses      int
	ForceVerses bool
}

// Load reads the file at path, filters every event through a fresh
// preprocessor and returns the playable score with its extracted metadata.
func Load(path string, opts Options) (*Score, error) {
	sm, err := smf.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	mt, ok := sm.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, fmt.Errorf("load %s: unsupported time format %v", path, sm.TimeFormat)
	}
	ppq := mt.Resolution()

	pre := NewPreprocessor(opts.TempoOverrideUSec)
	tracks := make([][]Event, 0, len(sm.Tracks))
	for _, tr := range sm.Tracks {
		var abs uint32
		var kept []Event
		for _, ev := range tr {
			abs += ev.Delta
			raw := canonical(ev.Message)
			if pre.ProcessEvent(ev.Delta, raw) {
				kept = append(kept, Event{Tick: abs, Raw: raw})
			}
		}
		tracks = append(tracks, kept)
	}

	pre.SetVersesFromOptions(opts.Verses, opts.ForceVerses)
	meta := pre.Finalize(ppq)

	return &Score{Meta: meta, Tracks: tracks, PPQ: ppq}, nil
}

// canonical copies one stored message into the layout the rest of the
// package works with. Meta messages arrive from the reader as
// [0xFF, type, length, data...]; the length byte is dropped so helpers can
// index data directly. Channel and system messages are copied unchanged.
func canonical(msg []byte) []byte {
	if len(msg) >= 3 && msg[0] == statusMeta {
		out := make([]byte, 0, len(msg)-1)
		out = append(out, msg[0], msg[1])
		return append(out, msg[3:]...)
	}
	return append([]byte(nil), msg...)
}

// USecPerTick is the real-time width of one tick at the file tempo. Integer
// microseconds match the resolution of the sequencer clock.
func (s *Score) USecPerTick() int64 {
	if s.PPQ == 0 {
		return 0
	}
	return int64(s.Meta.USecPerQuarter) / int64(s.PPQ)
}

// Merged flattens all tracks into one tick-ordered stream. The merge is
// stable, so events at equal ticks keep their track order and first-track
// markers are seen before the notes they govern.
func (s *Score) Merged() []Event {
	n := 0
	for _, tr := range s.Tracks {
		n += len(tr)
	}
	all := make([]Event, 0, n)
	for _, tr := range s.Tracks {
		all = append(all, tr...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Tick < all[j].Tick })
	return all
}
