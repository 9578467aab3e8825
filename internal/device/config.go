package device

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const configName = "midi_devices"

// LoadConfig merges device profiles from midi_devices.yaml into the
// registry. With an empty path the standard locations are searched:
// ~/.config/midiplay, /etc/midiplay, then the working directory. A
// file missing from the standard locations leaves the factory profiles
// in place; an explicit path must exist.
func (r *Registry) LoadConfig(path string) error {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "midiplay"))
		}
		v.AddConfigPath("/etc/midiplay")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("device config: %w", err)
	}

	if err := v.UnmarshalKey("connection", &r.conn); err != nil {
		return fmt.Errorf("device config %s: %w", v.ConfigFileUsed(), err)
	}

	loaded := make(map[string]Profile)
	if err := v.UnmarshalKey("devices", &loaded); err != nil {
		return fmt.Errorf("device config %s: %w", v.ConfigFileUsed(), err)
	}
	for id, p := range loaded {
		r.profiles[id] = p
	}
	return nil
}
