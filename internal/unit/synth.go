package unit

import (
	"strings"

	"github.com/Faultbox/shaderplate/internal/uniform"
)

// FinalUniform is the synthesized declaration of one uniform for one stage.
type FinalUniform struct {
	Name string
	Code string
	Decl *uniform.Declaration
}

// DeclarationCode renders decl as a GLSL uniform declaration.
func DeclarationCode(decl *uniform.Declaration) string {
	code := "uniform " + decl.Type + " " + decl.Name
	if decl.Array != "" {
		code += "[" + decl.Array + "]"
	}
	return code + ";"
}

// Synthesize replaces uniform tags in text. The first tag of a name becomes
// its declaration, later ones the same declaration commented out, so the
// line count never changes. Tags of names missing from table stay as they
// are. inserted carries the names already declared by earlier text of the
// same stage.
func Synthesize(text string, table map[string]FinalUniform, inserted map[string]bool) string {
	if inserted == nil {
		inserted = make(map[string]bool)
	}
	var sb strings.Builder
	sb.Grow(len(text))
	for {
		name, start, end, ok := uniform.FindTag(text)
		if !ok {
			sb.WriteString(text)
			return sb.String()
		}
		sb.WriteString(text[:start])
		fu, known := table[name]
		switch {
		case !known:
			sb.WriteString(text[start:end])
		case inserted[name]:
			sb.WriteString("// " + fu.Code)
		default:
			inserted[name] = true
			sb.WriteString(fu.Code)
		}
		text = text[end:]
	}
}

// virtualTags returns one tag line per virtual declaration.
func virtualTags(decls []*uniform.Declaration) (string, int) {
	var sb strings.Builder
	for _, d := range decls {
		sb.WriteString(uniform.Tag(d.Name))
		sb.WriteByte('\n')
	}
	return sb.String(), len(decls)
}
