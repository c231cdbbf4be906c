// Package uniform holds the parsed uniform declarations of a shader document
// and resolves them into live bindings.
package uniform

import (
	"sort"

	"github.com/Faultbox/shaderplate/internal/shaderkey"
)

// Path is the four-level address of a declaration; an empty level is the
// wildcard for that axis.
type Path = shaderkey.Key

// Declaration is one parsed uniform declaration line. It is never mutated
// after the Section Tree produced it.
type Declaration struct {
	Name      string
	Type      string
	Array     string // raw array spec between brackets, "" when scalar
	ArraySize int

	// Widget is the first colon token of the type annotation, lower-cased.
	Widget string
	// Params are the remaining colon tokens, verbatim.
	Params []string
	// SectionSpec is the raw `(section:order:condition)` annotation.
	SectionSpec string

	Comment string
	File    string
	Line    int
	Path    Path

	// Virtual declarations are authored programmatically and have no tag in
	// the document text.
	Virtual  bool
	Exported bool
	NoUpload bool
}

type entryKey struct {
	path Path
	name string
}

// Store indexes declarations by path and name.
type Store struct {
	entries map[entryKey]*Declaration
	order   []entryKey
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[entryKey]*Declaration)}
}

// Add inserts or overwrites the declaration at path.
func (s *Store) Add(path Path, decl *Declaration) {
	k := entryKey{path: path, name: decl.Name}
	if _, ok := s.entries[k]; !ok {
		s.order = append(s.order, k)
	}
	d := *decl
	d.Path = path
	s.entries[k] = &d
}

// Lookup returns, per uniform name, the most specific declaration whose path
// serves the requested path. Ties keep the earliest added declaration.
func (s *Store) Lookup(req Path) map[string]*Declaration {
	out := make(map[string]*Declaration)
	best := make(map[string]int)
	for _, k := range s.order {
		score, ok := k.path.Match(req)
		if !ok {
			continue
		}
		if prev, seen := best[k.name]; seen && prev >= score {
			continue
		}
		best[k.name] = score
		out[k.name] = s.entries[k]
	}
	return out
}

// LookupSorted is Lookup ordered by source position (file, then line).
func (s *Store) LookupSorted(req Path) []*Declaration {
	m := s.Lookup(req)
	out := make([]*Declaration, 0, len(m))
	for _, d := range m {
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Virtual returns the virtual declarations stored under the empty path, in
// insertion order.
func (s *Store) Virtual() []*Declaration {
	var out []*Declaration
	for _, k := range s.order {
		if k.path == (Path{}) && s.entries[k].Virtual {
			out = append(out, s.entries[k])
		}
	}
	return out
}

// All returns every declaration in insertion order.
func (s *Store) All() []*Declaration {
	out := make([]*Declaration, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.entries[k])
	}
	return out
}

// Len returns the number of stored declarations.
func (s *Store) Len() int {
	return len(s.entries)
}

// Clear drops every declaration.
func (s *Store) Clear() {
	s.entries = make(map[entryKey]*Declaration)
	s.order = nil
}
