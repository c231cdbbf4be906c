package uniform

import "regexp"

const tagPrefix = "__UNIFORM__("

// Tag returns the marker line that stands for a uniform declaration in
// assembled text until the synthesizer replaces it.
func Tag(name string) string {
	return tagPrefix + name + ")"
}

var tagPattern = regexp.MustCompile(`__UNIFORM__\((\w+)\)`)

// FindTag returns the name and byte span of the first tag in line.
func FindTag(line string) (name string, start, end int, ok bool) {
	m := tagPattern.FindStringSubmatchIndex(line)
	if m == nil {
		return "", 0, 0, false
	}
	return line[m[2]:m[3]], m[0], m[1], true
}
