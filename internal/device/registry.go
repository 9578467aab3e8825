package device

import "sort"

// Connection tunes how the player waits for a hardware port to appear
// and which port index it opens once enough ports are listed.
type Connection struct {
	TimeoutIterations int `mapstructure:"timeout_iterations"`
	PollSleepSeconds  int `mapstructure:"poll_sleep_seconds"`
	MinPortCount      int `mapstructure:"min_port_count"`
	OutputPortIndex   int `mapstructure:"output_port_index"`
}

// DefaultConnection polls every 2s for up to 300 tries, waits for two
// listed ports and opens port 1.
func DefaultConnection() Connection {
	return Connection{
		TimeoutIterations: 300,
		PollSleepSeconds:  2,
		MinPortCount:      2,
		OutputPortIndex:   1,
	}
}

// Registry maps device ids to profiles and picks the profile for an
// open port. A fresh registry carries the factory profiles; LoadConfig
// replaces them per id from midi_devices.yaml.
type Registry struct {
	profiles map[string]Profile
	conn     Connection
}

func NewRegistry() *Registry {
	return &Registry{profiles: builtins(), conn: DefaultConnection()}
}

// Profile returns the profile registered under id.
func (r *Registry) Profile(id string) (Profile, bool) {
	p, ok := r.profiles[id]
	return p, ok
}

// Connection reports the port discovery settings, either the defaults
// or the values from the last LoadConfig.
func (r *Registry) Connection() Connection { return r.conn }

// Match returns the profile whose detection prefix matches the port
// name. Profiles are tried in id order so matching is deterministic.
// When nothing matches, the profile without detection strings is the
// fallback; ok is false only when no such profile exists either.
func (r *Registry) Match(portName string) (Profile, bool) {
	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if r.profiles[id].Matches(portName) {
			return r.profiles[id], true
		}
	}
	for _, id := range ids {
		if len(r.profiles[id].Detect) == 0 {
			return r.profiles[id], true
		}
	}
	return Profile{}, false
}

// builtins returns the factory profiles. Ids match the device keys
// accepted in midi_devices.yaml, so a config entry under the same id
// replaces the factory profile wholesale.
func builtins() map[string]Profile {
	return map[string]Profile{
		"casio_ctx3000": {
			Name:   "Casio CTX-3000 series",
			Detect: []string{"CASIO USB-MIDI"},
			Channels: map[int]Channel{
				1: {BankMSB: 32, Program: 19, Description: "Pipe Organ 1"},
				2: {BankMSB: 32, Program: 19, Description: "Pipe Organ 1"},
				3: {BankMSB: 36, Program: 48, Volume: 127, Description: "Brass and Strings"},
			},
		},
		"yamaha_psr_ew425": {
			Name:   "Yamaha PSR-EW425 series",
			Detect: []string{"Digital Keyboard"},
			Channels: map[int]Channel{
				1: {BankLSB: 113, Program: 20, Description: "Chapel Organ"},
				2: {BankLSB: 113, Program: 20, Description: "Chapel Organ"},
				3: {BankLSB: 112, Program: 4, Volume: 127, Description: "Strings"},
			},
		},
		// The Protege has no USB port name of its own; it is the
		// fallback profile and is registered from the organ console.
		"allen_protege": {
			Name: "Allen Protege organ",
		},
	}
}
