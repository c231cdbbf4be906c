// Package config handles shadertool configuration loading and management.
package config

import "fmt"

// Config holds all tool settings.
type Config struct {
	GL        GLConfig        `yaml:"gl"`
	Widgets   WidgetsConfig   `yaml:"widgets"`
	Resources ResourcesConfig `yaml:"resources"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// GLConfig holds the GLSL dialect stages are assembled for and the context
// used to check them.
type GLConfig struct {
	Version      int      `yaml:"glsl_version"`
	Profile      string   `yaml:"profile"`    // core, compatibility or es
	Extensions   []string `yaml:"extensions"` // enabled in every stage header
	ContextMajor int      `yaml:"context_major"`
	ContextMinor int      `yaml:"context_minor"`
}

// WidgetsConfig holds widget names handled by the host application.
type WidgetsConfig struct {
	Custom []string `yaml:"custom"`
}

// ResourcesConfig holds include and resource search directories.
type ResourcesConfig struct {
	SearchPaths []string `yaml:"search_paths"` // later paths win
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		GL: GLConfig{
			Version:      330,
			Profile:      "core",
			ContextMajor: 4,
			ContextMinor: 1,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

var profiles = map[string]bool{"": true, "core": true, "compatibility": true, "es": true}

// Validate reports settings no GL driver accepts.
func (c *Config) Validate() error {
	if c.GL.Version < 100 {
		return fmt.Errorf("glsl_version %d is not a GLSL version", c.GL.Version)
	}
	if !profiles[c.GL.Profile] {
		return fmt.Errorf("unknown GLSL profile %q", c.GL.Profile)
	}
	if c.GL.ContextMajor < 3 {
		return fmt.Errorf("GL context %d.%d cannot compile GLSL stages", c.GL.ContextMajor, c.GL.ContextMinor)
	}
	return nil
}
