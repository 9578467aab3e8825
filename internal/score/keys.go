package score

// keyNames maps a key signature's sharp/flat count to a display name. Major
// keys index at sf+6, minor keys at sf+9.
var keyNames = [...]string{
	"Gb", "Db", "Ab", "Eb", "Bb", "F", "C", "G", "D",
	"A", "E", "B", "F#", "C#", "G#", "D#", "A#", "e#",
}

// keyName resolves a key signature payload to a display name. mi is nonzero
// for minor keys. The computed index is range-checked: a file can carry any
// sf byte, and even the in-range sf=-7 major (Cb) falls off the table.
func keyName(sf int8, mi byte) (string, bool) {
	idx := int(sf) + 6
	suffix := ""
	if mi != 0 {
		idx = int(sf) + 9
		suffix = " minor"
	}
	if idx < 0 || idx >= len(keyNames) {
		return "", false
	}
	return keyNames[idx] + suffix, true
}
