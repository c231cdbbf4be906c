package config

import (
	"flag"
	"strings"
)

var (
	flagConfig  = flag.String("config", "", "Path to config file")
	flagDebug   = flag.Bool("debug", false, "Enable debug logging")
	flagGLSL    = flag.Int("glsl", 0, "GLSL version written to stage headers")
	flagProfile = flag.String("profile", "", "GLSL profile (core, compatibility, es)")
	flagSearch  = flag.String("search", "", "Comma-separated include and resource search paths")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagGLSL > 0 {
		cfg.GL.Version = *flagGLSL
	}
	if *flagProfile != "" {
		cfg.GL.Profile = *flagProfile
	}
	if *flagSearch != "" {
		for _, p := range strings.Split(*flagSearch, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.Resources.SearchPaths = append(cfg.Resources.SearchPaths, p)
			}
		}
	}
}
