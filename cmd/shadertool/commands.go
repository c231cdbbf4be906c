package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/shaderplate/internal/assets"
	"github.com/Faultbox/shaderplate/internal/config"
	"github.com/Faultbox/shaderplate/internal/diagnostic"
	"github.com/Faultbox/shaderplate/internal/glcompile"
	"github.com/Faultbox/shaderplate/internal/logger"
	"github.com/Faultbox/shaderplate/internal/resource"
	"github.com/Faultbox/shaderplate/internal/shaderkey"
	"github.com/Faultbox/shaderplate/internal/uniform"
	"github.com/Faultbox/shaderplate/internal/unit"
)

// session wires the registry, the resource loader and the search roots of
// one invocation.
type session struct {
	cfg    *config.Config
	assets *assets.Manager
	loader *resource.Loader
	reg    *unit.Registry
}

func newSession(cfg *config.Config) *session {
	m := assets.NewManager()
	for _, p := range cfg.Resources.SearchPaths {
		if err := m.AddRoot(p); err != nil {
			logger.Warn("skipping search path", zap.String("path", p), zap.Error(err))
		}
	}
	loader := resource.NewLoader(m)
	opts := unit.Options{
		Caps: unit.GLCaps{
			Version:    cfg.GL.Version,
			Profile:    cfg.GL.Profile,
			Extensions: cfg.GL.Extensions,
		},
		CustomWidgets: cfg.Widgets.Custom,
		Resources:     loader,
	}
	return &session{
		cfg:    cfg,
		assets: m,
		loader: loader,
		reg:    unit.NewRegistry(opts, m),
	}
}

// open loads a document and reports its authoring errors on stderr. They do
// not stop the command.
func (s *session) open(path string) (*unit.Unit, error) {
	u, err := s.reg.Load(path)
	if err != nil {
		return nil, err
	}
	for _, e := range u.Errors() {
		fmt.Fprintf(os.Stderr, "%v\n", e)
	}
	return u, nil
}

func cmdInfo(w io.Writer, s *session, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	u, err := s.open(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "File:      %s\n", u.File())
	fmt.Fprintf(w, "Stages:    %s\n", joinStages(u.Stages("")))
	for _, b := range u.Buffers() {
		fmt.Fprintf(w, "Buffer:    %s (%s)\n", b, joinStages(u.Stages(b)))
	}
	sel := u.Selection()
	if names := sel.SectionNames(""); len(names) > 0 {
		fmt.Fprintf(w, "Sections:  %s (selected %s)\n", strings.Join(names, ", "), sel.SelectedSectionName(""))
	}
	for _, inc := range u.Includes() {
		fmt.Fprintf(w, "Include:   %s -> %s\n", inc.Name, inc.File)
	}
	fmt.Fprintf(w, "Uniforms:  %d\n", len(u.Bindings()))
	for _, n := range u.Notes() {
		fmt.Fprintf(w, "Note:      %s\n", n)
	}
	fmt.Fprintf(w, "Errors:    %d\n", len(u.Errors()))
	return nil
}

func cmdAssemble(w io.Writer, s *session, args []string) error {
	fs := flag.NewFlagSet("assemble", flag.ContinueOnError)
	buffer := fs.String("buffer", "", "Buffer to assemble (default: main image)")
	section := fs.String("section", "", "Shader section (default: selected)")
	cfgName := fs.String("config", "", "Stage config (default: selected)")
	stageName := fs.String("stage", "", "Single stage to print")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() < 1 {
		return errUsage
	}

	u, err := s.open(fs.Arg(0))
	if err != nil {
		return err
	}

	stages := u.Stages(*buffer)
	if *stageName != "" {
		st := shaderkey.ParseStage(*stageName)
		if !st.IsProgram() {
			return fmt.Errorf("unknown stage %q", *stageName)
		}
		stages = []shaderkey.Stage{st}
	}
	if len(stages) == 0 {
		return fmt.Errorf("%s defines no stages for buffer %q", u.File(), *buffer)
	}

	for _, st := range stages {
		code := u.AssembleStage(st, *buffer, *section, *cfgName)
		fmt.Fprintf(w, "// ---- %s %s ----\n", st, code.Key)
		io.WriteString(w, code.Text())
	}
	return nil
}

// uniformDoc is the exported form of one binding.
type uniformDoc struct {
	Name      string    `yaml:"name"`
	Type      string    `yaml:"type"`
	Widget    string    `yaml:"widget,omitempty"`
	Policy    string    `yaml:"policy"`
	Value     []float32 `yaml:"value,flow,omitempty"`
	Default   []float32 `yaml:"default,flow,omitempty"`
	Min       []float32 `yaml:"min,flow,omitempty"`
	Max       []float32 `yaml:"max,flow,omitempty"`
	Choices   []string  `yaml:"choices,flow,omitempty"`
	Resource  string    `yaml:"resource,omitempty"`
	Condition string    `yaml:"condition,omitempty"`
	Visible   bool      `yaml:"visible"`
	Locked    bool      `yaml:"locked,omitempty"`
	Constant  bool      `yaml:"constant,omitempty"`
}

type sectionDoc struct {
	Section  string       `yaml:"section"`
	Opened   bool         `yaml:"opened"`
	Uniforms []uniformDoc `yaml:"uniforms"`
}

func uniformDocs(u *unit.Unit) []sectionDoc {
	sections := u.Sections()
	var out []sectionDoc
	for _, name := range sections.Names() {
		doc := sectionDoc{Section: name, Opened: sections.Opened(name)}
		for _, b := range sections.Members(name) {
			doc.Uniforms = append(doc.Uniforms, newUniformDoc(b))
		}
		out = append(out, doc)
	}
	return out
}

func newUniformDoc(b *uniform.Binding) uniformDoc {
	d := uniformDoc{
		Name:     b.Name,
		Type:     b.Type,
		Widget:   b.Widget,
		Policy:   b.Policy.String(),
		Value:    b.Value,
		Default:  b.Default,
		Min:      b.Inf,
		Max:      b.Sup,
		Choices:  b.Choices,
		Resource: b.ResourcePath,
		Visible:  b.Visible(),
		Locked:   b.Locked,
		Constant: b.Constant,
	}
	if b.ArraySize > 0 {
		d.Type = fmt.Sprintf("%s[%d]", b.Type, b.ArraySize)
	}
	if c := b.Condition; c != nil && c.Target != nil {
		d.Condition = c.Target.Name
	}
	return d
}

func cmdUniforms(w io.Writer, s *session, args []string) error {
	fs := flag.NewFlagSet("uniforms", flag.ContinueOnError)
	asYAML := fs.Bool("yaml", false, "Print as YAML")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() < 1 {
		return errUsage
	}

	u, err := s.open(fs.Arg(0))
	if err != nil {
		return err
	}
	docs := uniformDocs(u)

	if *asYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(docs); err != nil {
			return fmt.Errorf("encoding uniforms: %w", err)
		}
		return enc.Close()
	}

	for _, sec := range docs {
		fmt.Fprintf(w, "[%s]\n", sec.Section)
		for _, d := range sec.Uniforms {
			hidden := ""
			if !d.Visible {
				hidden = " (hidden)"
			}
			fmt.Fprintf(w, "  %-24s %-10s %-10s %v%s\n", d.Name, d.Type, d.Policy, d.Value, hidden)
		}
	}
	return nil
}

func cmdMap(w io.Writer, s *session, args []string) error {
	fs := flag.NewFlagSet("map", flag.ContinueOnError)
	buffer := fs.String("buffer", "", "Buffer the log belongs to")
	section := fs.String("section", "", "Shader section (default: selected)")
	cfgName := fs.String("config", "", "Stage config (default: selected)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() < 3 {
		return errUsage
	}

	u, err := s.open(fs.Arg(0))
	if err != nil {
		return err
	}
	st := shaderkey.ParseStage(fs.Arg(1))
	if !st.IsProgram() {
		return fmt.Errorf("unknown stage %q", fs.Arg(1))
	}
	log, err := os.ReadFile(fs.Arg(2))
	if err != nil {
		return fmt.Errorf("reading log: %w", err)
	}

	// Assembling records which document line produced each generated line
	u.AssembleStage(st, *buffer, *section, *cfgName)

	m := diagnostic.Mapper{Provenance: u.Tree()}
	for _, d := range m.Map(st, string(log)) {
		fmt.Fprintln(w, d)
	}
	return nil
}

func cmdCheck(w io.Writer, s *session, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	u, err := s.open(args[0])
	if err != nil {
		return err
	}

	ctx, err := glcompile.NewContext(glcompile.ContextConfig{
		Major: s.cfg.GL.ContextMajor,
		Minor: s.cfg.GL.ContextMinor,
		Core:  s.cfg.GL.Profile != "compatibility",
	})
	if err != nil {
		return err
	}
	defer ctx.Close()

	checker := &glcompile.Checker{Driver: ctx, Provenance: u.Tree()}
	failed := 0
	for _, buf := range append([]string{""}, u.Buffers()...) {
		report := checker.Check(u.AssembleProgram(buf, ""))
		for _, res := range report.Stages {
			status := "ok"
			if !res.OK {
				status = "FAILED"
			}
			fmt.Fprintf(w, "%-12s %-20s %s\n", res.Stage, res.Key, status)
			for _, d := range res.Diagnostics {
				fmt.Fprintf(w, "  %s\n", d)
			}
		}
		if !report.OK() {
			failed++
			if report.LinkLog != "" {
				fmt.Fprintf(w, "  link: %s\n", strings.TrimSpace(report.LinkLog))
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d program(s) failed", failed)
	}
	return nil
}

func cmdConf(w io.Writer, s *session, args []string) error {
	fs := flag.NewFlagSet("conf", flag.ContinueOnError)
	load := fs.String("load", "", "Conf file to apply (\"auto\" for <file>.conf)")
	save := fs.String("save", "", "Write the conf to this path (\"auto\" for <file>.conf)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() < 1 {
		return errUsage
	}

	u, err := s.open(fs.Arg(0))
	if err != nil {
		return err
	}
	if *load != "" {
		if err := u.LoadConfFile(confPath(u, *load)); err != nil {
			return err
		}
	}
	if *save != "" {
		path := confPath(u, *save)
		if err := u.SaveConfFile(path); err != nil {
			return err
		}
		logger.Info("conf saved", zap.String("file", path))
		return nil
	}
	return u.SaveConf(w)
}

func confPath(u *unit.Unit, arg string) string {
	if arg == "auto" {
		return unit.ConfPath(u.File())
	}
	return arg
}

func joinStages(stages []shaderkey.Stage) string {
	names := make([]string, len(stages))
	for i, st := range stages {
		names[i] = st.String()
	}
	return strings.Join(names, " ")
}
