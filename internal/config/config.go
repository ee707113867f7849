// Package config provides configuration structures and defaults for the
// DTS to UFF converter tools
package config

// Config represents the complete conversion request configuration
type Config struct {
	Input  InputConfig  `yaml:"input" mapstructure:"input"`   // DTS source settings
	Output OutputConfig `yaml:"output" mapstructure:"output"` // UFF output settings
}

// InputConfig describes where the DTS export and the track names come from
type InputConfig struct {
	Dir        string `yaml:"dir" mapstructure:"dir"`                 // Folder containing the .dts descriptor and .chn files
	TracksFile string `yaml:"tracks_file" mapstructure:"tracks_file"` // Text file listing track names (newline or comma separated)
}

// OutputConfig describes the UFF file to produce
type OutputConfig struct {
	Path     string   `yaml:"path" mapstructure:"path"`         // Output .uff file path
	Encoding string   `yaml:"encoding" mapstructure:"encoding"` // Sample encoding: "ascii" or "binary"
	Append   bool     `yaml:"append" mapstructure:"append"`     // Append to an existing file instead of replacing it
	Slice    string   `yaml:"slice" mapstructure:"slice"`       // Optional "start:end" sample slice applied to every track
	Tracks   []string `yaml:"tracks" mapstructure:"tracks"`     // Optional subset of track names to write
	Workers  int      `yaml:"workers" mapstructure:"workers"`   // Concurrent track readers (writes stay ordered)
}

// DefaultConfig returns a configuration with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Input: InputConfig{
			Dir:        ".",          // Current directory by default
			TracksFile: "tracks.txt", // Conventional track list name
		},
		Output: OutputConfig{
			Path:     "output.uff", // Output file in the working directory
			Encoding: "ascii",      // ASCII sample encoding by default
			Append:   false,        // Replace the output file by default
			Slice:    "",           // Full sample range
			Tracks:   nil,          // All tracks
			Workers:  4,            // Modest read parallelism
		},
	}
}
