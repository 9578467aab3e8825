package score

import "fmt"

// TimeSignature is the raw payload of a time signature meta event. The
// denominator is kept as the stored power-of-two exponent because the file
// tempo calculation needs the exponent, not the decoded note value.
type TimeSignature struct {
	Beats          uint8
	DenominatorExp uint8
	ClocksPerClick uint8
	NotesPerQuar   uint8
}

// IntroSegment is a half-open tick range [Start, End) bracketing the portion
// of the hymn played as the introduction. End is zero while the segment is
// still open.
type IntroSegment struct {
	Start uint32
	End   uint32
}

// Ticks is an optional non-negative tick count. The zero value is "not set",
// which is distinct from an explicit zero.
type Ticks struct {
	val uint32
	set bool
}

// Set stores v. Negative values are rejected.
func (t *Ticks) Set(v int) error {
	if v < 0 {
		return fmt.Errorf("tick count %d is negative", v)
	}
	t.val = uint32(v)
	t.set = true
	return nil
}

// Value returns the stored count and whether one was set.
func (t Ticks) Value() (uint32, bool) {
	return t.val, t.set
}

// IsSet reports whether a count was stored.
func (t Ticks) IsSet() bool {
	return t.set
}

// Or returns the stored count, or def when none was set.
func (t Ticks) Or(def uint32) uint32 {
	if t.set {
		return t.val
	}
	return def
}

// Metadata is everything the preprocessor learns about a hymn while
// filtering its events.
type Metadata struct {
	// Title is the track name of the first track, when one is present at
	// tick zero.
	Title string

	// KeyName is the human-readable key, e.g. "Eb" or "F# minor". Empty
	// when the file carries no key signature or an unusable one.
	KeyName string

	// TimeSig is the first time signature found at tick zero.
	TimeSig    TimeSignature
	HasTimeSig bool

	// USecPerQuarter is the tempo in effect at tick zero. FileTempo is
	// that tempo normalized by the time signature denominator, and BPM is
	// the tempo the performance actually runs at (FileTempo unless an
	// override was supplied).
	USecPerQuarter uint32
	FileTempo      float64
	BPM            float64

	// Verses is the number of verses to perform. Zero until a verse count
	// is extracted from the file or applied from an override.
	Verses int

	// PauseTicks is the gap inserted between verses.
	PauseTicks Ticks

	// Segments are the intro brackets found in the first track, in file
	// order.
	Segments []IntroSegment

	// StuckNote is set when the final intro segment closes at the very
	// end of a track with notes still sounding, so jumping out of the
	// intro would leave them ringing.
	StuckNote bool

	// Warnings collects non-fatal oddities found during preprocessing, in
	// the order they were seen.
	Warnings []string
}

// LastSegment returns the most recently opened intro segment, or nil when no
// segment was ever opened.
func (m *Metadata) LastSegment() *IntroSegment {
	if len(m.Segments) == 0 {
		return nil
	}
	return &m.Segments[len(m.Segments)-1]
}
