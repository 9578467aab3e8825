// Package device recognizes connected MIDI instruments and sends the
// console registrations each model needs before playback.
package device

import (
	"fmt"
	"sort"

	midi "gitlab.com/gomidi/midi/v2"
)

// Port is the write side of an open MIDI connection.
type Port interface {
	Send(msg []byte) error
}

const (
	ccBankSelectMSB = 0
	ccChannelVolume = 7
	ccBankSelectLSB = 32
)

// Channel holds the registration for a single MIDI channel: which bank
// and program to select and an optional channel volume. Channel numbers
// in a Profile are 1-based, as printed on the console.
type Channel struct {
	BankMSB     uint8  `mapstructure:"bank_msb"`
	BankLSB     uint8  `mapstructure:"bank_lsb"`
	Program     uint8  `mapstructure:"program"`
	Volume      uint8  `mapstructure:"volume"`
	Description string `mapstructure:"description"`
}

// Profile describes one supported instrument model: the port-name
// prefixes that identify it and the per-channel registrations to send.
type Profile struct {
	Name     string          `mapstructure:"name"`
	Detect   []string        `mapstructure:"detection_strings"`
	Channels map[int]Channel `mapstructure:"channels"`
}

// Matches reports whether the port name starts with one of the
// profile's detection strings.
func (p Profile) Matches(portName string) bool {
	for _, prefix := range p.Detect {
		if prefix != "" && len(portName) >= len(prefix) && portName[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

// Configure sends the profile's registrations in ascending channel
// order. A channel that selects a bank always gets the MSB, zero
// included, so a console left in another bank lands where the stops
// expect; the LSB goes out only on consoles that use it. The program
// change is always sent. Channels outside 1..16 are rejected.
func (p Profile) Configure(out Port) error {
	nums := make([]int, 0, len(p.Channels))
	for n := range p.Channels {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	for _, n := range nums {
		if n < 1 || n > 16 {
			return fmt.Errorf("device %s: channel %d out of range", p.Name, n)
		}
		ch := uint8(n - 1)
		reg := p.Channels[n]
		if reg.BankMSB != 0 || reg.BankLSB != 0 {
			if err := out.Send(midi.ControlChange(ch, ccBankSelectMSB, reg.BankMSB)); err != nil {
				return err
			}
		}
		if reg.BankLSB != 0 {
			if err := out.Send(midi.ControlChange(ch, ccBankSelectLSB, reg.BankLSB)); err != nil {
				return err
			}
		}
		if err := out.Send(midi.ProgramChange(ch, reg.Program)); err != nil {
			return err
		}
		if reg.Volume != 0 {
			if err := out.Send(midi.ControlChange(ch, ccChannelVolume, reg.Volume)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Keyboard range swept by EmergencySilence, C2 through C7 on the three
// hymn channels.
const (
	sweepLowNote  = 36
	sweepHighNote = 96
	sweepChannels = 3
)

// EmergencySilence releases every key in the playing range with
// explicit velocity-zero note-ons. It stops at the first send error.
func EmergencySilence(out Port) error {
	for ch := uint8(0); ch < sweepChannels; ch++ {
		for note := uint8(sweepLowNote); note <= sweepHighNote; note++ {
			if err := out.Send(midi.NoteOn(ch, note, 0)); err != nil {
				return err
			}
		}
	}
	return nil
}
