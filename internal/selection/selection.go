// Package selection tracks the known and selected section and config names of
// a shader document, per stage and buffer.
package selection

import (
	"slices"

	"go.uber.org/zap"

	"github.com/Faultbox/shaderplate/internal/logger"
	"github.com/Faultbox/shaderplate/internal/shaderkey"
)

type configKey struct {
	stage   shaderkey.Stage
	buffer  string
	section string
}

// Store holds config and section names. Selections may be mirrored one level
// up to owner stores (documents including this one).
type Store struct {
	configs        map[configKey][]string
	selectedConfig map[configKey]string

	sections        map[string][]string
	selectedSection map[string]string

	owners []*Store
}

// New returns an empty store.
func New() *Store {
	return &Store{
		configs:         make(map[configKey][]string),
		selectedConfig:  make(map[configKey]string),
		sections:        make(map[string][]string),
		selectedSection: make(map[string]string),
	}
}

// AddOwner registers a store that receives propagated names and selections.
func (s *Store) AddOwner(owner *Store) {
	if owner == nil || owner == s || slices.Contains(s.owners, owner) {
		return
	}
	s.owners = append(s.owners, owner)
}

// RemoveOwner unregisters an owner store.
func (s *Store) RemoveOwner(owner *Store) {
	if i := slices.Index(s.owners, owner); i >= 0 {
		s.owners = slices.Delete(s.owners, i, i+1)
	}
}

// Owners returns the registered owner stores.
func (s *Store) Owners() []*Store {
	return slices.Clone(s.owners)
}

// AddConfigName registers a config name under (stage, buffer, section).
func (s *Store) AddConfigName(stage shaderkey.Stage, buffer, section, name string, propagate bool) {
	k := configKey{stage, buffer, section}
	if !slices.Contains(s.configs[k], name) {
		s.configs[k] = append(s.configs[k], name)
	}
	if propagate {
		for _, o := range s.owners {
			o.AddConfigName(stage, buffer, section, name, false)
		}
	}
}

// AddSectionName registers a section name for a buffer ("" is the root).
func (s *Store) AddSectionName(buffer, name string, propagate bool) {
	if !slices.Contains(s.sections[buffer], name) {
		s.sections[buffer] = append(s.sections[buffer], name)
	}
	if propagate {
		for _, o := range s.owners {
			o.AddSectionName(buffer, name, false)
		}
	}
}

// SelectSectionName selects a section for a buffer.
func (s *Store) SelectSectionName(buffer, name string, propagate bool) {
	s.selectedSection[buffer] = name
	logger.Debug("section selected", zap.String("buffer", buffer), zap.String("section", name))
	if propagate {
		for _, o := range s.owners {
			o.SelectSectionName(buffer, name, false)
		}
	}
}

// SelectConfigName selects a config for (stage, buffer) under the currently
// selected section of that buffer, so each section remembers its own choice.
func (s *Store) SelectConfigName(stage shaderkey.Stage, buffer, name string, propagate bool) {
	k := configKey{stage, buffer, s.SelectedSectionName(buffer)}
	s.selectedConfig[k] = name
	logger.Debug("config selected",
		zap.Stringer("stage", stage),
		zap.String("buffer", buffer),
		zap.String("section", k.section),
		zap.String("config", name),
	)
	if propagate {
		for _, o := range s.owners {
			o.SelectConfigName(stage, buffer, name, false)
		}
	}
}

// SectionNames returns the known sections of buffer, falling back to the root.
func (s *Store) SectionNames(buffer string) []string {
	if names, ok := s.sections[buffer]; ok && len(names) > 0 {
		return slices.Clone(names)
	}
	return slices.Clone(s.sections[""])
}

// SelectedSectionName returns the selected section of buffer. A remembered
// selection that is no longer a known section is ignored. Without a valid
// selection the first known section is selected and remembered.
func (s *Store) SelectedSectionName(buffer string) string {
	names := s.SectionNames(buffer)
	for _, b := range fallbacks(buffer) {
		name, ok := s.selectedSection[b]
		if ok && (len(names) == 0 || slices.Contains(names, name)) {
			return name
		}
	}
	if len(names) == 0 {
		return ""
	}
	s.selectedSection[buffer] = names[0]
	return names[0]
}

// ConfigNames returns the known configs of (stage, buffer, section) using
// the buffer then section fallback.
func (s *Store) ConfigNames(stage shaderkey.Stage, buffer, section string) []string {
	for _, k := range configFallbacks(stage, buffer, section) {
		if names, ok := s.configs[k]; ok && len(names) > 0 {
			return slices.Clone(names)
		}
	}
	return nil
}

// SelectedConfigName returns the selected config of (stage, buffer) for the
// currently selected section. Without a selection the first known config is
// selected and remembered.
func (s *Store) SelectedConfigName(stage shaderkey.Stage, buffer string) string {
	section := s.SelectedSectionName(buffer)
	names := s.ConfigNames(stage, buffer, section)
	for _, k := range configFallbacks(stage, buffer, section) {
		name, ok := s.selectedConfig[k]
		if ok && (len(names) == 0 || slices.Contains(names, name)) {
			return name
		}
	}
	if len(names) == 0 {
		return ""
	}
	s.selectedConfig[configKey{stage, buffer, section}] = names[0]
	return names[0]
}

// MergeInto registers every known section and config name of s on dst
// without touching its selections.
func (s *Store) MergeInto(dst *Store) {
	for buffer, names := range s.sections {
		for _, n := range names {
			dst.AddSectionName(buffer, n, false)
		}
	}
	for k, names := range s.configs {
		for _, n := range names {
			dst.AddConfigName(k.stage, k.buffer, k.section, n, false)
		}
	}
}

// Clear drops known names but keeps selections, so a reparse restores them.
func (s *Store) Clear() {
	s.configs = make(map[configKey][]string)
	s.sections = make(map[string][]string)
}

func fallbacks(buffer string) []string {
	if buffer == "" {
		return []string{""}
	}
	return []string{buffer, ""}
}

func configFallbacks(stage shaderkey.Stage, buffer, section string) []configKey {
	var out []configKey
	sections := []string{section}
	if section != "" {
		sections = append(sections, "")
	}
	for _, sec := range sections {
		for _, b := range fallbacks(buffer) {
			out = append(out, configKey{stage, b, sec})
		}
	}
	return out
}
