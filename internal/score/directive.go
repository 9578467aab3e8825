package score

// Hymn files carry verse counts and inter-verse pauses in proprietary meta
// events. Two encodings exist: deprecated standalone meta types 0x10/0x11,
// and the current form inside a sequencer-specific meta event under the
// private manufacturer id. Both are decoded here and never forwarded to the
// output.

const (
	privateID          = 0x7D
	privateVerses      = 0x01
	privatePauseVerses = 0x02
)

type directiveKind int

const (
	directiveVerses directiveKind = iota
	directivePause
)

// directive is one decoded instruction. malformed marks a directive whose
// payload was unusable; the event is still consumed.
type directive struct {
	kind       directiveKind
	verses     int
	pauseTicks uint16
	deprecated bool
	malformed  bool
}

// decodeDirective inspects a meta event. ok reports whether the event is a
// directive and must be discarded.
func decodeDirective(raw []byte) (dir directive, ok bool) {
	switch MetaType(raw) {
	case metaLegacyVerses:
		return decodeVerses(raw, 2, true), true
	case metaLegacyPause:
		return decodePause(raw, 2, true), true
	case metaSequencer:
		return decodeSequencerDirective(raw)
	}
	return directive{}, false
}

// decodeSequencerDirective parses [0xFF, 0x7F, <len?>, 0x7D, sub, data...].
// Some encoders keep the length byte, some strip it; the private id byte
// disambiguates. Sequencer events that are not hymn directives pass through
// untouched.
func decodeSequencerDirective(raw []byte) (directive, bool) {
	i := 2
	if i < len(raw) && raw[i] != privateID {
		i++
	}
	if i >= len(raw) || raw[i] != privateID {
		return directive{}, false
	}
	i++
	if i >= len(raw) {
		return directive{}, false
	}
	switch raw[i] {
	case privateVerses:
		return decodeVerses(raw, i+1, false), true
	case privatePauseVerses:
		return decodePause(raw, i+1, false), true
	}
	return directive{}, false
}

// decodeVerses reads a single ASCII digit at raw[i].
func decodeVerses(raw []byte, i int, deprecated bool) directive {
	d := directive{kind: directiveVerses, deprecated: deprecated}
	if i >= len(raw) || raw[i] < '0' || raw[i] > '9' {
		d.malformed = true
		return d
	}
	d.verses = int(raw[i] - '0')
	return d
}

// decodePause reads a big-endian 16-bit tick count at raw[i].
func decodePause(raw []byte, i int, deprecated bool) directive {
	d := directive{kind: directivePause, deprecated: deprecated}
	if i+1 >= len(raw) {
		d.malformed = true
		return d
	}
	d.pauseTicks = uint16(raw[i])<<8 | uint16(raw[i+1])
	return d
}
