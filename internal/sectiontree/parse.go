package sectiontree

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Faultbox/shaderplate/internal/shaderkey"
	"github.com/Faultbox/shaderplate/internal/uniform"
)

var (
	tagParam    = regexp.MustCompile(`(?i)\b(BUFFER|SECTION|CONFIG)\s*\(([^)]*)\)`)
	includeLine = regexp.MustCompile(`^\s*#\s*include\s*["<]([^">]+)[">]`)
	uniformLine = regexp.MustCompile(
		`^\s*uniform\s*(?:\(([^)]*)\))?\s*((?:\w+\s+)*?\w+)\s*(?:\(([^)]*)\))?\s+(\w+)\s*(?:\[([^\]]*)\])?\s*;\s*(?://\s*(.*))?$`)
)

// ParseDeclaration parses one `uniform` line. It returns false for lines that
// are not single plain declarations (interface blocks, lists).
func ParseDeclaration(text string) (*uniform.Declaration, bool) {
	m := uniformLine.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	d := &uniform.Declaration{
		SectionSpec: strings.TrimSpace(m[1]),
		Type:        strings.TrimSpace(m[2]),
		Name:        m[4],
		Array:       strings.TrimSpace(m[5]),
		Comment:     strings.TrimSpace(m[6]),
	}
	if d.Array != "" {
		if n, err := strconv.Atoi(d.Array); err == nil {
			d.ArraySize = n
		}
	}
	if params := strings.TrimSpace(m[3]); params != "" {
		toks := strings.Split(params, ":")
		d.Widget = strings.ToLower(strings.TrimSpace(toks[0]))
		for _, tok := range toks[1:] {
			d.Params = append(d.Params, strings.TrimSpace(tok))
		}
	}
	return d, true
}

type header struct {
	word    string
	kind    shaderkey.Stage
	buffer  string
	section string
	config  string
	rest    string
}

// parseHeader reads a tag line such as `@FRAGMENT BUFFER(blur) CONFIG(low)`.
func parseHeader(line string) (header, bool) {
	if !strings.HasPrefix(line, "@") {
		return header{}, false
	}
	word := line[1:]
	end := strings.IndexFunc(word, func(r rune) bool {
		return !(r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z')
	})
	if end < 0 {
		end = len(word)
	}
	if end == 0 {
		return header{}, false
	}
	h := header{word: word[:end], kind: shaderkey.ParseStage(word[:end])}
	rest := word[end:]
	for _, m := range tagParam.FindAllStringSubmatch(rest, -1) {
		v := strings.TrimSpace(m[2])
		switch strings.ToUpper(m[1]) {
		case "BUFFER":
			h.buffer = v
		case "SECTION":
			h.section = v
		case "CONFIG":
			h.config = v
		}
	}
	h.rest = strings.TrimSpace(tagParam.ReplaceAllString(rest, ""))
	if h.kind == shaderkey.Section && h.section == "" {
		h.section = strings.Trim(h.rest, "() ")
	}
	return h, true
}

// splitSetting splits a `key:v1:v2` line.
func splitSetting(line string) (string, []string) {
	parts := strings.Split(line, ":")
	key := strings.TrimSpace(parts[0])
	var vals []string
	for _, p := range parts[1:] {
		vals = append(vals, strings.TrimSpace(p))
	}
	return key, vals
}
