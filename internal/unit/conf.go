package unit

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/shaderplate/internal/logger"
	"github.com/Faultbox/shaderplate/internal/shaderkey"
)

const (
	confSection        = "Section"
	confSwitcher       = "SwitcherSelectedConfig"
	confUniformSection = "UniformSection"
	confUniformLocked  = "UniformLocked"
	confCommentPrefix  = "#"
	confFieldSeparator = ":"
	confFloatBits      = 32
)

var stageConfKeys = map[shaderkey.Stage]string{
	shaderkey.Vertex:      "VertexConfig",
	shaderkey.Geometry:    "GeomConfig",
	shaderkey.TessControl: "TessControlConfig",
	shaderkey.TessEval:    "TessEvalConfig",
	shaderkey.Fragment:    "FragmentConfig",
	shaderkey.Compute:     "ComputeConfig",
}

func stageForConfKey(key string) (shaderkey.Stage, bool) {
	for st, k := range stageConfKeys {
		if k == key {
			return st, true
		}
	}
	return shaderkey.Unknown, false
}

// SwitcherConfig returns the config chosen by an external config switcher.
func (u *Unit) SwitcherConfig() string {
	v, _ := u.Setting(confSwitcher)
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

// SetSwitcherConfig records the config chosen by an external switcher.
func (u *Unit) SetSwitcherConfig(name string) {
	sink{u}.AddSetting(confSwitcher, []string{name})
}

// SetSetting sets a global setting.
func (u *Unit) SetSetting(key string, values ...string) {
	sink{u}.AddSetting(key, values)
}

// SaveConf writes the selection state, the global settings and the uniform
// values. Uniforms that are never uploaded are left out.
func (u *Unit) SaveConf(w io.Writer) error {
	bw := bufio.NewWriter(w)
	line := func(fields ...string) {
		bw.WriteString(strings.Join(fields, confFieldSeparator))
		bw.WriteByte('\n')
	}

	for _, buf := range append([]string{""}, u.buffers...) {
		sec := u.selection.SelectedSectionName(buf)
		if sec == "" || (buf != "" && sec == u.selection.SelectedSectionName("")) {
			continue
		}
		line(withBuffer([]string{confSection, sec}, buf)...)
	}
	for _, buf := range append([]string{""}, u.buffers...) {
		for _, st := range shaderkey.ProgramStages {
			if len(u.selection.ConfigNames(st, buf, u.selection.SelectedSectionName(buf))) == 0 {
				continue
			}
			name := u.selection.SelectedConfigName(st, buf)
			line(withBuffer([]string{stageConfKeys[st], name}, buf)...)
		}
	}
	if s := u.SwitcherConfig(); s != "" {
		line(confSwitcher, s)
	}
	for _, k := range u.settingOrder {
		if k == confSwitcher {
			continue
		}
		line(append([]string{k}, u.settings[k]...)...)
	}

	for _, name := range u.sections.Names() {
		line(confUniformSection, name, boolField(u.sections.Opened(name)))
	}
	for _, b := range u.bindings.All() {
		if b.Locked {
			line(confUniformLocked, b.Name)
		}
	}
	for _, b := range u.bindings.All() {
		if !b.Uploadable || b.Info.IsSampler() || len(b.Value) == 0 {
			continue
		}
		fields := []string{b.Name}
		for _, v := range b.Value {
			fields = append(fields, strconv.FormatFloat(float64(v), 'g', -1, confFloatBits))
		}
		line(fields...)
	}
	return bw.Flush()
}

// LoadConf applies a conf written by SaveConf. Selection keys are applied
// first, then the unit is resolved again so uniform keys find the bindings
// of the restored selection.
func (u *Unit) LoadConf(r io.Reader) error {
	var rest [][]string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, confCommentPrefix) {
			continue
		}
		fields := strings.Split(text, confFieldSeparator)
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		key := fields[0]
		switch {
		case key == confSection && len(fields) >= 2:
			u.selection.SelectSectionName(bufferField(fields, 2), fields[1], false)
		case key == confSwitcher && len(fields) >= 2:
			u.SetSwitcherConfig(fields[1])
		default:
			if st, ok := stageForConfKey(key); ok && len(fields) >= 2 {
				u.selection.SelectConfigName(st, bufferField(fields, 2), fields[1], false)
				continue
			}
			rest = append(rest, fields)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading conf: %w", err)
	}

	u.Resolve()

	for _, fields := range rest {
		key := fields[0]
		switch {
		case key == confUniformSection && len(fields) >= 3:
			u.sections.SetOpened(fields[1], fields[2] == "1")
		case key == confUniformLocked && len(fields) >= 2:
			if b, ok := u.bindings.Get(fields[1]); ok {
				b.Locked = true
			}
		default:
			b, ok := u.bindings.Get(key)
			if !ok {
				u.SetSetting(key, fields[1:]...)
				continue
			}
			if len(fields)-1 != len(b.Value) {
				logger.Warn("conf value count mismatch",
					zap.String("file", u.file),
					zap.String("uniform", key),
					zap.Int("want", len(b.Value)),
					zap.Int("got", len(fields)-1),
				)
				continue
			}
			for i, f := range fields[1:] {
				v, err := strconv.ParseFloat(f, confFloatBits)
				if err != nil {
					return fmt.Errorf("uniform %s: bad value %q: %w", key, f, err)
				}
				b.Value[i] = float32(v)
			}
		}
	}
	return nil
}

// SaveConfFile writes the conf to path.
func (u *Unit) SaveConfFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating conf: %w", err)
	}
	if err := u.SaveConf(f); err != nil {
		f.Close()
		return fmt.Errorf("writing conf: %w", err)
	}
	return f.Close()
}

// LoadConfFile applies the conf at path.
func (u *Unit) LoadConfFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening conf: %w", err)
	}
	defer f.Close()
	return u.LoadConf(f)
}

// ConfPath returns the conf file that belongs to a document.
func ConfPath(file string) string {
	return file + ".conf"
}

func withBuffer(fields []string, buffer string) []string {
	if buffer != "" {
		fields = append(fields, buffer)
	}
	return fields
}

func bufferField(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
