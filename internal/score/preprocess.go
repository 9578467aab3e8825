package score

import (
	"fmt"
	"math"
)

const (
	microsecondsPerMinute = 60000000
	defaultUSecPerQuarter = 500000
	defaultFileTempo      = 120
	quarterNoteDenom      = 4.0
)

// Preprocessor filters raw events during load and accumulates hymn metadata
// as a side effect. It sees every event of every track in file order,
// decides which events survive into the playable score, and extracts tempo,
// key, verse and introduction information from the rest.
type Preprocessor struct {
	meta Metadata

	// tempoOverrideUSec replaces the file tempo when positive, expressed
	// as microseconds per quarter note.
	tempoOverrideUSec int

	track       int
	trackTicks  uint32
	lastNoteOn  uint32
	lastNoteOff uint32
	firstTempo  bool
}

// NewPreprocessor returns a preprocessor ready for one full scan.
// tempoOverrideUSec is the command-line tempo in microseconds per quarter
// note; pass 0 to keep the file's tempo.
func NewPreprocessor(tempoOverrideUSec int) *Preprocessor {
	return &Preprocessor{
		tempoOverrideUSec: tempoOverrideUSec,
		firstTempo:        true,
	}
}

// ProcessEvent decides whether one raw event survives preprocessing. delta
// is the event's delta time and raw the complete message bytes. The tick
// clock advances for rejected events too, so filtering never disturbs the
// timing of what remains.
func (p *Preprocessor) ProcessEvent(delta uint32, raw []byte) bool {
	p.trackTicks += delta

	// SysEx never reaches the output. The performance has no use for it
	// and some consoles lock up on partial dumps.
	if isSysEx(raw) {
		return false
	}

	// Controllers are stripped except the NRPN and Data Entry pairs that
	// carry organ stop settings. Everything else fights the console's own
	// registration.
	if isControlChange(raw) {
		return keepControlChange(raw)
	}

	if IsMeta(raw) {
		if MetaType(raw) == metaLyrics {
			return false
		}
		if p.trackTicks == 0 {
			p.captureTimeSignature(raw)
			p.captureTempo(raw)
			if !p.captureKeySignature(raw) {
				return false
			}
			p.captureTitle(raw)
			if dir, ok := decodeDirective(raw); ok {
				p.applyDirective(dir)
				return false
			}
		}
	}

	// Intro brackets live in the first track only.
	if p.track == 0 {
		p.captureIntroMarker(raw)
	}

	if isNoteOn(raw) && raw[2] != 0 {
		p.lastNoteOn = p.trackTicks
	}
	if (isNoteOn(raw) && raw[2] == 0) || isNoteOff(raw) {
		p.lastNoteOff = p.trackTicks
	}

	if MetaType(raw) == metaEndOfTrack {
		p.endTrack()
	}
	return true
}

// SetVersesFromOptions applies a command-line verse count after the scan. A
// count extracted from the file wins unless force is set; force is how
// prelude playing pins its own count regardless of what the hymn says.
func (p *Preprocessor) SetVersesFromOptions(n int, force bool) {
	if n <= 0 {
		return
	}
	if force || p.meta.Verses == 0 {
		p.meta.Verses = n
	}
}

// Finalize fills in defaults after the full scan and returns the metadata:
// one verse when no count was found, one quarter note of pause when none was
// given, and the standard 120 bpm tempo when the file never stated one.
func (p *Preprocessor) Finalize(ppq uint16) *Metadata {
	if p.firstTempo {
		p.applyFirstTempo(0)
	}
	if p.meta.Verses == 0 {
		p.meta.Verses = 1
	}
	if !p.meta.PauseTicks.IsSet() {
		p.meta.PauseTicks.Set(int(ppq))
	}
	return &p.meta
}

func keepControlChange(raw []byte) bool {
	switch raw[1] {
	case ccNRPNMSB, ccNRPNLSB, ccDataEntryMSB, ccDataEntryLSB:
		return true
	}
	return false
}

func (p *Preprocessor) captureTimeSignature(raw []byte) {
	if MetaType(raw) != metaTimeSignature || len(raw) != 6 {
		return
	}
	p.meta.TimeSig = TimeSignature{
		Beats:          raw[2],
		DenominatorExp: raw[3],
		ClocksPerClick: raw[4],
		NotesPerQuar:   raw[5],
	}
	p.meta.HasTimeSig = true
}

func (p *Preprocessor) captureTempo(raw []byte) {
	usec, ok := TempoUSec(raw)
	if !ok {
		return
	}
	p.meta.USecPerQuarter = usec
	if p.firstTempo {
		p.applyFirstTempo(usec)
	}
}

// applyFirstTempo derives the displayed tempi from the first tempo event.
// The file tempo is quarter notes per minute scaled by the time signature
// denominator, so a 6/8 hymn shows its dotted-quarter pulse rather than the
// raw quarter rate.
func (p *Preprocessor) applyFirstTempo(usec uint32) {
	p.firstTempo = false

	denomScale := math.Pow(2, float64(p.meta.TimeSig.DenominatorExp)) / quarterNoteDenom
	if usec > 0 {
		qpm := microsecondsPerMinute / usec
		p.meta.USecPerQuarter = usec
		p.meta.FileTempo = float64(qpm) * denomScale
	} else {
		p.meta.USecPerQuarter = defaultUSecPerQuarter
		p.meta.FileTempo = defaultFileTempo
	}

	if p.tempoOverrideUSec > 0 {
		qpm := microsecondsPerMinute / uint32(p.tempoOverrideUSec)
		p.meta.BPM = float64(qpm) * denomScale
	} else {
		p.meta.BPM = p.meta.FileTempo
	}
}

// captureKeySignature returns false when the event must be discarded because
// its sharp/flat count has no name in the key table.
func (p *Preprocessor) captureKeySignature(raw []byte) bool {
	if MetaType(raw) != metaKeySignature || len(raw) < 4 {
		return true
	}
	sf := int8(raw[2])
	mi := raw[3]
	name, ok := keyName(sf, mi)
	if !ok {
		p.warnf("Key signature out of range (sf=%d, minor=%d)", sf, mi)
		return false
	}
	p.meta.KeyName = name
	return true
}

func (p *Preprocessor) captureTitle(raw []byte) {
	if p.track != 0 || p.meta.Title != "" {
		return
	}
	if MetaType(raw) != metaTrackName {
		return
	}
	p.meta.Title = MetaText(raw)
}

// applyDirective folds a decoded directive into the metadata. Malformed
// payloads are dropped without complaint; the field keeps its default.
func (p *Preprocessor) applyDirective(dir directive) {
	if !dir.malformed {
		switch dir.kind {
		case directiveVerses:
			if p.meta.Verses == 0 {
				p.meta.Verses = dir.verses
			}
		case directivePause:
			p.meta.PauseTicks.Set(int(dir.pauseTicks))
		}
	}
	if dir.deprecated {
		switch dir.kind {
		case directiveVerses:
			p.warnf("Deprecated Meta event for number of verses found")
		case directivePause:
			p.warnf("Deprecated Meta event for pause found")
		}
	}
}

func (p *Preprocessor) captureIntroMarker(raw []byte) {
	text, ok := MarkerText(raw)
	if !ok {
		return
	}
	switch text {
	case MarkerIntroBegin:
		p.meta.Segments = append(p.meta.Segments, IntroSegment{Start: p.trackTicks})
	case MarkerIntroEnd:
		if last := p.meta.LastSegment(); last != nil && last.End == 0 {
			last.End = p.trackTicks
		}
	}
}

// endTrack closes out one track's scan. When the final intro segment ends
// exactly where a track ends, at or after the last note-off, the intro jump
// would fire while a note is still sounding.
func (p *Preprocessor) endTrack() {
	p.track++
	if last := p.meta.LastSegment(); last != nil && p.trackTicks == last.End {
		if p.lastNoteOff >= last.End {
			p.meta.StuckNote = true
		}
	}
	p.trackTicks = 0
}

func (p *Preprocessor) warnf(format string, args ...any) {
	p.meta.Warnings = append(p.meta.Warnings, fmt.Sprintf(format, args...))
}
