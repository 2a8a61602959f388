package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// ControllerConfig defines a saved grid controller
type ControllerConfig struct {
	PortName    string `json:"portName"`
	AutoConnect bool   `json:"autoConnect"`
}

// OutputConfig is the selected MIDI output port
type OutputConfig struct {
	PortName string `json:"portName,omitempty"`
}

// SyncConfig controls the tempo-sync adapter
type SyncConfig struct {
	Enabled bool `json:"enabled"`
	// FreezeOnStop freezes in-flight morphs while the external
	// transport is stopped instead of letting them run out.
	FreezeOnStop bool `json:"freezeOnStop"`
}

// EngineConfig holds timing parameters consumed by the engine
type EngineConfig struct {
	Tempo        float64 `json:"tempo,omitempty"`        // fallback BPM when not synced
	TicksPerBeat int     `json:"ticksPerBeat,omitempty"` // tick resolution
	// Quantize is the default beat boundary for quantized triggers
	Quantize float64 `json:"quantize,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Controllers []ControllerConfig `json:"controllers,omitempty"`
	Output      OutputConfig       `json:"output,omitempty"`
	Sync        SyncConfig         `json:"sync,omitempty"`
	Engine      EngineConfig       `json:"engine,omitempty"`
	LastProject string             `json:"lastProject,omitempty"`
	// Palette is an optional GIMP palette file overriding the built-in
	// color ramp.
	Palette string `json:"palette,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Controllers: []ControllerConfig{
			{
				PortName:    "Launchpad X LPX MIDI",
				AutoConnect: true,
			},
		},
		Engine: EngineConfig{
			Tempo:        120,
			TicksPerBeat: 24,
			Quantize:     1,
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "snapmorph"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	return &cfg, nil
}

// fillDefaults patches zero values left by older config files
func (c *Config) fillDefaults() {
	if c.Engine.Tempo == 0 {
		c.Engine.Tempo = 120
	}
	if c.Engine.TicksPerBeat == 0 {
		c.Engine.TicksPerBeat = 24
	}
	if c.Engine.Quantize == 0 {
		c.Engine.Quantize = 1
	}
}

// Save writes the config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// AutoConnectControllers returns controllers with autoConnect enabled
func (c *Config) AutoConnectControllers() []ControllerConfig {
	var result []ControllerConfig
	for _, ctrl := range c.Controllers {
		if ctrl.AutoConnect {
			result = append(result, ctrl)
		}
	}
	return result
}
