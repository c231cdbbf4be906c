// Package glcompile compiles assembled stages with an OpenGL driver and
// maps the driver's info logs back to document lines.
package glcompile

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/shaderplate/internal/diagnostic"
	"github.com/Faultbox/shaderplate/internal/logger"
	"github.com/Faultbox/shaderplate/internal/shaderkey"
	"github.com/Faultbox/shaderplate/internal/unit"
)

// Driver compiles and links shader objects.
type Driver interface {
	Compile(stage shaderkey.Stage, source string) (id uint32, log string, ok bool)
	Link(ids []uint32) (log string, ok bool)
	Delete(ids []uint32)
}

// StageResult is the outcome of compiling one stage.
type StageResult struct {
	Stage       shaderkey.Stage
	Key         shaderkey.Key
	OK          bool
	Log         string
	Diagnostics []diagnostic.Diagnostic
}

// Report is the outcome of checking a program.
type Report struct {
	Stages  []StageResult
	Linked  bool
	LinkLog string
}

// OK reports whether every stage compiled and the program linked.
func (r Report) OK() bool {
	for _, s := range r.Stages {
		if !s.OK {
			return false
		}
	}
	return r.Linked
}

// Err combines the diagnostics of failed stages and the link log.
func (r Report) Err() error {
	var err error
	for _, s := range r.Stages {
		if s.OK {
			continue
		}
		if len(s.Diagnostics) == 0 {
			err = multierr.Append(err, fmt.Errorf("%s: compilation failed", s.Stage))
		}
		for _, d := range s.Diagnostics {
			err = multierr.Append(err, fmt.Errorf("%s: %s", s.Stage, d))
		}
	}
	if !r.Linked && r.LinkLog != "" {
		err = multierr.Append(err, fmt.Errorf("link: %s", r.LinkLog))
	}
	return err
}

// Checker compiles programs and maps their logs through a provenance
// source, usually the section tree the stages were assembled from.
type Checker struct {
	Driver     Driver
	Provenance diagnostic.Provenance
}

// Check compiles each stage and links those that compiled. Warnings in
// successful logs are mapped too. Compute stages are linked on their own.
func (c *Checker) Check(stages []unit.StageCode) Report {
	mapper := diagnostic.Mapper{Provenance: c.Provenance}
	clog := logger.Named("glcompile")

	var (
		report  Report
		ids     []uint32
		compute []uint32
		failed  bool
	)
	for _, sc := range stages {
		id, log, ok := c.Driver.Compile(sc.Stage, sc.Text())
		res := StageResult{
			Stage:       sc.Stage,
			Key:         sc.Key,
			OK:          ok,
			Log:         log,
			Diagnostics: mapper.Map(sc.Stage, log),
		}
		report.Stages = append(report.Stages, res)

		clog.Debug("stage compiled",
			zap.Stringer("stage", sc.Stage),
			zap.Bool("ok", ok),
			zap.Int("messages", len(res.Diagnostics)),
		)
		if !ok {
			failed = true
			continue
		}
		if sc.Stage == shaderkey.Compute {
			compute = append(compute, id)
		} else {
			ids = append(ids, id)
		}
	}
	defer c.Driver.Delete(append(ids, compute...))

	if failed {
		return report
	}

	report.Linked = true
	for _, group := range [][]uint32{ids, compute} {
		if len(group) == 0 {
			continue
		}
		log, ok := c.Driver.Link(group)
		if log != "" {
			report.LinkLog += log
		}
		if !ok {
			clog.Warn("link failed", zap.Int("shaders", len(group)))
		}
		report.Linked = report.Linked && ok
	}
	return report
}
