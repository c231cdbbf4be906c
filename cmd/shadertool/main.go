// shadertool is a CLI utility for annotated multi-stage shader documents.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/shaderplate/internal/config"
	"github.com/Faultbox/shaderplate/internal/logger"
)

var errUsage = errors.New("bad usage")

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]
	s := newSession(cfg)

	switch command {
	case "info":
		err = cmdInfo(os.Stdout, s, args)
	case "assemble", "asm":
		err = cmdAssemble(os.Stdout, s, args)
	case "uniforms", "u":
		err = cmdUniforms(os.Stdout, s, args)
	case "map":
		err = cmdMap(os.Stdout, s, args)
	case "check":
		err = cmdCheck(os.Stdout, s, args)
	case "conf":
		err = cmdConf(os.Stdout, s, args)
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if errors.Is(err, errUsage) {
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		logger.Error("command failed", zap.String("command", command), zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`shadertool - annotated shader document utility

Usage:
  shadertool [flags] <command> [options]

Flags:
  -config <file>    Config file (default ./config.yaml or user config dir)
  -debug            Enable debug logging
  -glsl <version>   GLSL version for stage headers
  -profile <name>   GLSL profile (core, compatibility, es)
  -search <paths>   Comma-separated search paths for includes and resources

Commands:
  info <file>                          Show stages, buffers, includes and errors
  assemble [-buffer b] [-section s] [-config c] [-stage S] <file>
                                       Print the final text of each stage
  uniforms [-yaml] <file>              Print uniforms grouped by display section
  map [-buffer b] <file> <stage> <log> Translate a driver log to document lines
  check <file>                         Compile every stage in a hidden GL context
  conf [-load in] [-save out] <file>   Show, load or save persisted selections

Examples:
  shadertool assemble -stage fragment -config low scene.glsl
  shadertool -search ./lib uniforms -yaml scene.glsl
  shadertool map scene.glsl FRAGMENT driver.log`)
}
