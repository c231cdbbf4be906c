package uniform

import (
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// DefaultSection is the display section of bindings that name none.
const DefaultSection = "default"

// SectionSpec is the parsed `(name:order:condition)` annotation.
type SectionSpec struct {
	Name      string
	Order     int
	HasOrder  bool
	Condition string
}

var orderToken = regexp.MustCompile(`^[-0-9]+$`)

// ParseSectionSpec parses colon separated, order independent tokens. The
// last token of each class wins.
func ParseSectionSpec(spec string) SectionSpec {
	out := SectionSpec{Name: DefaultSection}
	spec = strings.TrimSpace(spec)
	spec = strings.TrimSuffix(strings.TrimPrefix(spec, "("), ")")
	for _, tok := range strings.Split(spec, ":") {
		tok = strings.TrimSpace(tok)
		switch {
		case tok == "":
		case orderToken.MatchString(tok):
			if n, err := strconv.Atoi(tok); err == nil {
				out.Order = n
				out.HasOrder = true
			}
		case strings.ContainsAny(tok, "!<>="):
			out.Condition = tok
		default:
			out.Name = tok
		}
	}
	return out
}

type displaySection struct {
	name    string
	members []*Binding
	ordered bool
	opened  bool
}

// Sections groups bindings into named, ordered display buckets. A binding
// belongs to exactly one section.
type Sections struct {
	byName map[string]*displaySection
	names  []string
}

// NewSections returns an empty set of display sections.
func NewSections() *Sections {
	return &Sections{byName: make(map[string]*displaySection)}
}

// Insert places b in the section named by b.Section, removing it from any
// other section first. Inserting a member twice keeps one entry.
func (s *Sections) Insert(b *Binding) {
	name := b.Section
	if name == "" {
		name = DefaultSection
	}
	for _, n := range s.names {
		if n != name {
			s.remove(n, b)
		}
	}
	sec, ok := s.byName[name]
	if !ok {
		sec = &displaySection{name: name}
		s.byName[name] = sec
		s.names = append(s.names, name)
	}
	if !slices.Contains(sec.members, b) {
		sec.members = append(sec.members, b)
	}
	if b.HasOrder {
		sec.ordered = true
	}
	if sec.ordered {
		sort.SliceStable(sec.members, func(i, j int) bool {
			return sec.members[i].Order < sec.members[j].Order
		})
	}
}

func (s *Sections) remove(name string, b *Binding) {
	sec := s.byName[name]
	if i := slices.Index(sec.members, b); i >= 0 {
		sec.members = slices.Delete(sec.members, i, i+1)
	}
}

// Remove drops b from whatever section holds it.
func (s *Sections) Remove(b *Binding) {
	for _, n := range s.names {
		s.remove(n, b)
	}
}

// Names returns section names in first-insertion order, skipping empty ones.
func (s *Sections) Names() []string {
	out := make([]string, 0, len(s.names))
	for _, n := range s.names {
		if len(s.byName[n].members) > 0 {
			out = append(out, n)
		}
	}
	return out
}

// Members returns the bindings of a section in display order.
func (s *Sections) Members(name string) []*Binding {
	sec, ok := s.byName[name]
	if !ok {
		return nil
	}
	return slices.Clone(sec.members)
}

// SetOpened records the open state of a section; unknown sections are
// created so the state survives until their members are resolved.
func (s *Sections) SetOpened(name string, opened bool) {
	sec, ok := s.byName[name]
	if !ok {
		sec = &displaySection{name: name}
		s.byName[name] = sec
		s.names = append(s.names, name)
	}
	sec.opened = opened
}

// Opened reports the open state of a section.
func (s *Sections) Opened(name string) bool {
	sec, ok := s.byName[name]
	return ok && sec.opened
}

// Clear drops all members but keeps the open state of known sections.
func (s *Sections) Clear() {
	for _, sec := range s.byName {
		sec.members = nil
		sec.ordered = false
	}
}
