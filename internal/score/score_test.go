package score

import (
	"strings"
	"testing"
)

func meta(typ byte, data ...byte) []byte {
	return append([]byte{0xFF, typ}, data...)
}

func marker(text string) []byte {
	return meta(0x06, []byte(text)...)
}

func tempoMeta(usec uint32) []byte {
	return meta(0x51, byte(usec>>16), byte(usec>>8), byte(usec))
}

func timeSigMeta(beats, denomExp, clocks, n32 byte) []byte {
	return meta(0x58, beats, denomExp, clocks, n32)
}

func keySigMeta(sf int8, mi byte) []byte {
	return meta(0x59, byte(sf), mi)
}

func noteOn(ch, key, vel byte) []byte { return []byte{0x90 | ch, key, vel} }

func noteOff(ch, key byte) []byte { return []byte{0x80 | ch, key, 0} }

func control(ch, ctrl, val byte) []byte { return []byte{0xB0 | ch, ctrl, val} }

var endOfTrack = meta(0x2F)

func TestProcessEventRejectsSysEx(t *testing.T) {
	p := NewPreprocessor(0)
	if p.ProcessEvent(0, []byte{0xF0, 0x43, 0x12, 0xF7}) {
		t.Fatalf("ProcessEvent(sysex) = true, want false")
	}
	if p.ProcessEvent(0, []byte{0xF7, 0x00}) {
		t.Fatalf("ProcessEvent(sysex continuation) = true, want false")
	}
}

func TestControlChangeWhitelist(t *testing.T) {
	tests := []struct {
		ctrl byte
		want bool
	}{
		{6, true},   // data entry MSB
		{38, true},  // data entry LSB
		{98, true},  // NRPN LSB
		{99, true},  // NRPN MSB
		{0, false},  // bank select
		{7, false},  // channel volume
		{32, false}, // bank select LSB
		{64, false}, // sustain
		{123, false},
	}
	for _, tt := range tests {
		p := NewPreprocessor(0)
		if got := p.ProcessEvent(0, control(0, tt.ctrl, 1)); got != tt.want {
			t.Errorf("ProcessEvent(cc %d) = %v, want %v", tt.ctrl, got, tt.want)
		}
	}
}

func TestLyricsRejected(t *testing.T) {
	p := NewPreprocessor(0)
	if p.ProcessEvent(0, meta(0x05, 'l', 'a')) {
		t.Fatalf("ProcessEvent(lyrics) = true, want false")
	}
	// Lyrics are stripped at any tick, not only at time zero.
	if p.ProcessEvent(960, meta(0x05, 'l', 'a')) {
		t.Fatalf("ProcessEvent(lyrics at tick 960) = true, want false")
	}
}

func TestFileTempoFromFirstTempoEvent(t *testing.T) {
	p := NewPreprocessor(0)
	p.ProcessEvent(0, timeSigMeta(4, 2, 24, 8))
	p.ProcessEvent(0, tempoMeta(500000))
	m := p.Finalize(960)

	if m.USecPerQuarter != 500000 {
		t.Fatalf("USecPerQuarter = %d, want 500000", m.USecPerQuarter)
	}
	if m.FileTempo != 120 {
		t.Fatalf("FileTempo = %v, want 120", m.FileTempo)
	}
	if m.BPM != 120 {
		t.Fatalf("BPM = %v, want 120", m.BPM)
	}
}

func TestFileTempoScalesWithDenominator(t *testing.T) {
	// 6/8 time: denominator exponent 3 doubles the displayed tempo.
	p := NewPreprocessor(0)
	p.ProcessEvent(0, timeSigMeta(6, 3, 24, 8))
	p.ProcessEvent(0, tempoMeta(500000))
	m := p.Finalize(960)

	if m.FileTempo != 240 {
		t.Fatalf("FileTempo = %v, want 240", m.FileTempo)
	}
}

func TestTempoOverride(t *testing.T) {
	p := NewPreprocessor(60000000 / 90)
	p.ProcessEvent(0, timeSigMeta(4, 2, 24, 8))
	p.ProcessEvent(0, tempoMeta(500000))
	m := p.Finalize(960)

	if m.FileTempo != 120 {
		t.Fatalf("FileTempo = %v, want 120", m.FileTempo)
	}
	if m.BPM != 90 {
		t.Fatalf("BPM = %v, want 90", m.BPM)
	}
}

func TestOnlyFirstTempoSetsTempi(t *testing.T) {
	p := NewPreprocessor(0)
	p.ProcessEvent(0, timeSigMeta(4, 2, 24, 8))
	p.ProcessEvent(0, tempoMeta(500000))
	p.ProcessEvent(0, tempoMeta(1000000))
	m := p.Finalize(960)

	if m.FileTempo != 120 {
		t.Fatalf("FileTempo = %v, want 120 from first tempo event", m.FileTempo)
	}
	// The raw microsecond value still tracks the latest event.
	if m.USecPerQuarter != 1000000 {
		t.Fatalf("USecPerQuarter = %d, want 1000000", m.USecPerQuarter)
	}
}

func TestZeroTempoFallsBackToDefault(t *testing.T) {
	p := NewPreprocessor(0)
	p.ProcessEvent(0, tempoMeta(0))
	m := p.Finalize(960)

	if m.USecPerQuarter != 500000 || m.FileTempo != 120 {
		t.Fatalf("defaults = (%d, %v), want (500000, 120)", m.USecPerQuarter, m.FileTempo)
	}
}

func TestKeySignatureNames(t *testing.T) {
	tests := []struct {
		sf   int8
		mi   byte
		want string
	}{
		{0, 0, "C"},
		{-1, 0, "F"},
		{-3, 0, "Eb"},
		{2, 0, "D"},
		{7, 0, "C#"},
		{0, 1, "A minor"},
		{1, 1, "E minor"},
		{-3, 1, "C minor"},
		{7, 1, "A# minor"},
		{-7, 1, "Ab minor"},
	}
	for _, tt := range tests {
		p := NewPreprocessor(0)
		if !p.ProcessEvent(0, keySigMeta(tt.sf, tt.mi)) {
			t.Errorf("ProcessEvent(key sf=%d mi=%d) = false, want true", tt.sf, tt.mi)
			continue
		}
		if got := p.Finalize(960).KeyName; got != tt.want {
			t.Errorf("KeyName(sf=%d, mi=%d) = %q, want %q", tt.sf, tt.mi, got, tt.want)
		}
	}
}

func TestKeySignatureOutOfRange(t *testing.T) {
	// Cb major computes to index -1 in the name table. The event must be
	// dropped with a warning instead of reading out of bounds.
	p := NewPreprocessor(0)
	if p.ProcessEvent(0, keySigMeta(-7, 0)) {
		t.Fatalf("ProcessEvent(key sf=-7 mi=0) = true, want false")
	}
	m := p.Finalize(960)
	if m.KeyName != "" {
		t.Fatalf("KeyName = %q, want empty", m.KeyName)
	}
	if len(m.Warnings) == 0 || !strings.Contains(m.Warnings[0], "out of range") {
		t.Fatalf("Warnings = %v, want out-of-range warning", m.Warnings)
	}
}

func TestVerseDirectiveForms(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"legacy", meta(0x10, '3')},
		{"private with length byte", meta(0x7F, 0x03, 0x7D, 0x01, '3')},
		{"private without length byte", meta(0x7F, 0x7D, 0x01, '3')},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPreprocessor(0)
			if p.ProcessEvent(0, tt.raw) {
				t.Fatalf("ProcessEvent(verse directive) = true, want false (consumed)")
			}
			if got := p.Finalize(960).Verses; got != 3 {
				t.Fatalf("Verses = %d, want 3", got)
			}
		})
	}
}

func TestVerseDirectiveFirstWins(t *testing.T) {
	p := NewPreprocessor(0)
	p.ProcessEvent(0, meta(0x7F, 0x7D, 0x01, '2'))
	p.ProcessEvent(0, meta(0x7F, 0x7D, 0x01, '5'))
	if got := p.Finalize(960).Verses; got != 2 {
		t.Fatalf("Verses = %d, want 2 (first directive wins)", got)
	}
}

func TestDeprecatedVerseDirectiveWarns(t *testing.T) {
	p := NewPreprocessor(0)
	p.ProcessEvent(0, meta(0x10, '4'))
	m := p.Finalize(960)
	if m.Verses != 4 {
		t.Fatalf("Verses = %d, want 4", m.Verses)
	}
	if len(m.Warnings) != 1 || !strings.Contains(m.Warnings[0], "Deprecated") {
		t.Fatalf("Warnings = %v, want one deprecation warning", m.Warnings)
	}
}

func TestPauseDirectiveForms(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want uint32
	}{
		{"legacy", meta(0x11, 0x01, 0x00), 256},
		{"private", meta(0x7F, 0x7D, 0x02, 0x03, 0xE8), 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPreprocessor(0)
			if p.ProcessEvent(0, tt.raw) {
				t.Fatalf("ProcessEvent(pause directive) = true, want false (consumed)")
			}
			got, set := p.Finalize(960).PauseTicks.Value()
			if !set || got != tt.want {
				t.Fatalf("PauseTicks = (%d, %v), want (%d, true)", got, set, tt.want)
			}
		})
	}
}

func TestMalformedVerseDirective(t *testing.T) {
	p := NewPreprocessor(0)
	if p.ProcessEvent(0, meta(0x10, 'x')) {
		t.Fatalf("ProcessEvent(malformed directive) = true, want false (consumed)")
	}
	m := p.Finalize(960)
	if m.Verses != 1 {
		t.Fatalf("Verses = %d, want default 1", m.Verses)
	}
	joined := strings.Join(m.Warnings, "; ")
	if !strings.Contains(joined, "Deprecated") {
		t.Fatalf("Warnings = %v, want deprecation warning", m.Warnings)
	}
}

func TestUnrelatedSequencerMetaForwarded(t *testing.T) {
	p := NewPreprocessor(0)
	if !p.ProcessEvent(0, meta(0x7F, 0x05, 0x41, 0x01, 0x02, 0x03, 0x04)) {
		t.Fatalf("ProcessEvent(foreign sequencer meta) = false, want true")
	}
}

func TestIntroSegments(t *testing.T) {
	p := NewPreprocessor(0)
	p.ProcessEvent(0, marker("["))
	p.ProcessEvent(960, marker("]"))
	p.ProcessEvent(0, marker("["))
	p.ProcessEvent(960, marker("]"))
	m := p.Finalize(960)

	want := []IntroSegment{{Start: 0, End: 960}, {Start: 960, End: 1920}}
	if len(m.Segments) != len(want) {
		t.Fatalf("len(Segments) = %d, want %d", len(m.Segments), len(want))
	}
	for i, seg := range m.Segments {
		if seg != want[i] {
			t.Fatalf("Segments[%d] = %+v, want %+v", i, seg, want[i])
		}
	}
}

func TestIntroMarkersFirstTrackOnly(t *testing.T) {
	p := NewPreprocessor(0)
	p.ProcessEvent(0, endOfTrack)
	p.ProcessEvent(0, marker("["))
	p.ProcessEvent(960, marker("]"))
	if got := len(p.Finalize(960).Segments); got != 0 {
		t.Fatalf("len(Segments) = %d, want 0 for markers outside track 0", got)
	}
}

func TestRejectedEventsStillAdvanceTicks(t *testing.T) {
	p := NewPreprocessor(0)
	p.ProcessEvent(0, marker("["))
	p.ProcessEvent(480, control(0, 7, 100)) // rejected, but 480 ticks pass
	p.ProcessEvent(480, marker("]"))
	m := p.Finalize(960)

	if len(m.Segments) != 1 || m.Segments[0].End != 960 {
		t.Fatalf("Segments = %+v, want one segment ending at 960", m.Segments)
	}
}

func TestStuckNoteDetected(t *testing.T) {
	p := NewPreprocessor(0)
	p.ProcessEvent(0, marker("["))
	p.ProcessEvent(0, noteOn(0, 60, 100))
	p.ProcessEvent(960, noteOff(0, 60))
	p.ProcessEvent(0, marker("]"))
	p.ProcessEvent(0, endOfTrack)
	if !p.Finalize(960).StuckNote {
		t.Fatalf("StuckNote = false, want true when segment ends with the track")
	}
}

func TestNoStuckNoteWhenNotesEndEarly(t *testing.T) {
	p := NewPreprocessor(0)
	p.ProcessEvent(0, marker("["))
	p.ProcessEvent(0, noteOn(0, 60, 100))
	p.ProcessEvent(900, noteOff(0, 60))
	p.ProcessEvent(60, marker("]"))
	p.ProcessEvent(0, endOfTrack)
	if p.Finalize(960).StuckNote {
		t.Fatalf("StuckNote = true, want false when the last note-off is before the segment end")
	}
}

func TestNoteOnVelocityZeroCountsAsNoteOff(t *testing.T) {
	p := NewPreprocessor(0)
	p.ProcessEvent(0, marker("["))
	p.ProcessEvent(0, noteOn(0, 60, 100))
	p.ProcessEvent(960, noteOn(0, 60, 0))
	p.ProcessEvent(0, marker("]"))
	p.ProcessEvent(0, endOfTrack)
	if !p.Finalize(960).StuckNote {
		t.Fatalf("StuckNote = false, want true for velocity-zero note-off at segment end")
	}
}

func TestTitleFromFirstTrack(t *testing.T) {
	p := NewPreprocessor(0)
	p.ProcessEvent(0, meta(0x03, 'A', 'b', 'i', 'd', 'e'))
	p.ProcessEvent(0, meta(0x03, 'O', 't', 'h', 'e', 'r'))
	p.ProcessEvent(0, endOfTrack)
	p.ProcessEvent(0, meta(0x03, 'O', 'r', 'g', 'a', 'n'))
	if got := p.Finalize(960).Title; got != "Abide" {
		t.Fatalf("Title = %q, want %q", got, "Abide")
	}
}

func TestFinalizeDefaults(t *testing.T) {
	p := NewPreprocessor(0)
	m := p.Finalize(960)

	if m.Verses != 1 {
		t.Fatalf("Verses = %d, want 1", m.Verses)
	}
	if got := m.PauseTicks.Or(0); got != 960 {
		t.Fatalf("PauseTicks = %d, want one quarter note (960)", got)
	}
	if m.USecPerQuarter != 500000 || m.FileTempo != 120 || m.BPM != 120 {
		t.Fatalf("tempo defaults = (%d, %v, %v), want (500000, 120, 120)", m.USecPerQuarter, m.FileTempo, m.BPM)
	}
}

func TestSetVersesFromOptions(t *testing.T) {
	tests := []struct {
		name      string
		fileCount int
		option    int
		force     bool
		want      int
	}{
		{"option fills absent count", 0, 4, false, 4},
		{"file count wins", 3, 4, false, 3},
		{"force overrides file count", 3, 2, true, 2},
		{"zero option ignored", 3, 0, true, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPreprocessor(0)
			if tt.fileCount > 0 {
				p.ProcessEvent(0, meta(0x7F, 0x7D, 0x01, byte('0'+tt.fileCount)))
			}
			p.SetVersesFromOptions(tt.option, tt.force)
			if got := p.Finalize(960).Verses; got != tt.want {
				t.Fatalf("Verses = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestUSecPerTick(t *testing.T) {
	s := &Score{Meta: &Metadata{USecPerQuarter: 500000}, PPQ: 960}
	if got := s.USecPerTick(); got != 520 {
		t.Fatalf("USecPerTick = %d, want 520", got)
	}
}

func TestMergedKeepsTrackOrderAtEqualTicks(t *testing.T) {
	s := &Score{
		Meta: &Metadata{},
		Tracks: [][]Event{
			{{Tick: 0, Raw: marker("[")}, {Tick: 960, Raw: marker("]")}},
			{{Tick: 0, Raw: noteOn(0, 60, 100)}, {Tick: 960, Raw: noteOff(0, 60)}},
		},
	}
	merged := s.Merged()
	if len(merged) != 4 {
		t.Fatalf("len(Merged) = %d, want 4", len(merged))
	}
	if _, ok := MarkerText(merged[0].Raw); !ok {
		t.Fatalf("Merged[0] = %v, want track 0 marker first at tick 0", merged[0].Raw)
	}
	if _, ok := MarkerText(merged[2].Raw); !ok {
		t.Fatalf("Merged[2] = %v, want track 0 marker first at tick 960", merged[2].Raw)
	}
	if merged[1].Tick != 0 || merged[3].Tick != 960 {
		t.Fatalf("Merged ticks = %d,%d, want 0,960", merged[1].Tick, merged[3].Tick)
	}
}
