package score

// Raw MIDI byte vocabulary. Events are kept in the canonical form the loader
// produces: channel messages are [status, data...], meta events are
// [0xFF, type, data...] with the stored length byte already stripped.

const (
	statusNoteOff       = 0x80
	statusNoteOn        = 0x90
	statusControlChange = 0xB0
	statusProgramChange = 0xC0
	statusSysEx         = 0xF0
	statusSysExEnd      = 0xF7
	statusMeta          = 0xFF
)

const (
	metaTrackName     = 0x03
	metaLyrics        = 0x05
	metaMarker        = 0x06
	metaEndOfTrack    = 0x2F
	metaTempo         = 0x51
	metaTimeSignature = 0x58
	metaKeySignature  = 0x59
	metaSequencer     = 0x7F

	// Proprietary meta types written by the deprecated hymn encoder.
	metaLegacyVerses = 0x10
	metaLegacyPause  = 0x11
)

// Controller numbers that survive preprocessing. NRPN and Data Entry pairs
// carry organ stop settings; everything else is stripped.
const (
	ccBankSelectMSB = 0
	ccDataEntryMSB  = 6
	ccChannelVolume = 7
	ccBankSelectLSB = 32
	ccDataEntryLSB  = 38
	ccNRPNLSB       = 98
	ccNRPNMSB       = 99
	ccAllNotesOff   = 123
)

// Marker text tokens interpreted during load and playback.
const (
	MarkerIntroBegin   = "["
	MarkerIntroEnd     = "]"
	MarkerRitardando   = `\`
	MarkerDaCapoAlFine = "D.C. al Fine"
	MarkerFine         = "Fine"
)

// IsMeta reports whether raw is a meta event.
func IsMeta(raw []byte) bool {
	return len(raw) >= 2 && raw[0] == statusMeta
}

// MetaType returns the meta type byte, or 0 if raw is not a meta event.
func MetaType(raw []byte) byte {
	if !IsMeta(raw) {
		return 0
	}
	return raw[1]
}

// MetaText returns the text payload of a meta event.
func MetaText(raw []byte) string {
	if !IsMeta(raw) {
		return ""
	}
	return string(raw[2:])
}

// MarkerText returns the text of a marker meta event and whether raw is one.
func MarkerText(raw []byte) (string, bool) {
	if MetaType(raw) != metaMarker {
		return "", false
	}
	return string(raw[2:]), true
}

// IsChannelMessage reports whether raw is a channel voice message, the only
// kind of message that is ever written to an output port.
func IsChannelMessage(raw []byte) bool {
	return len(raw) > 0 && raw[0] >= statusNoteOff && raw[0] < statusSysEx
}

func isSysEx(raw []byte) bool {
	return len(raw) > 0 && (raw[0] == statusSysEx || raw[0] == statusSysExEnd)
}

func isControlChange(raw []byte) bool {
	return len(raw) >= 2 && raw[0]&0xF0 == statusControlChange
}

func isNoteOn(raw []byte) bool {
	return len(raw) >= 3 && raw[0]&0xF0 == statusNoteOn
}

func isNoteOff(raw []byte) bool {
	return len(raw) >= 3 && raw[0]&0xF0 == statusNoteOff
}

// TempoUSec decodes the 24-bit big-endian microseconds-per-quarter payload of
// a tempo meta event.
func TempoUSec(raw []byte) (uint32, bool) {
	if MetaType(raw) != metaTempo || len(raw) < 5 {
		return 0, false
	}
	usec := uint32(raw[2])<<16 | uint32(raw[3])<<8 | uint32(raw[4])
	return usec, true
}
