package uniform

import (
	"fmt"
	"strconv"
	"strings"
)

// parseChannels parses a comma separated list of numbers into n channels.
// A single value is broadcast to every channel.
func parseChannels(tok string, n int) ([]float32, error) {
	parts := strings.Split(tok, ",")
	if len(parts) != 1 && len(parts) != n {
		return nil, fmt.Errorf("expected 1 or %d values, got %d in %q", n, len(parts), tok)
	}
	out := make([]float32, n)
	for i := range out {
		p := parts[0]
		if len(parts) == n {
			p = parts[i]
		}
		v, err := parseNumber(p)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseNumber(s string) (float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("missing value")
	}
	switch strings.ToLower(s) {
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "f"), 32)
	if err != nil {
		return 0, fmt.Errorf("bad numeric literal %q", s)
	}
	return float32(v), nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "on", "yes":
		return true, nil
	case "false", "0", "off", "no":
		return false, nil
	}
	return false, fmt.Errorf("bad boolean literal %q", s)
}

func boolSlot(b bool) float32 {
	if b {
		return 1
	}
	return 0
}

// keyValue splits "key=value"; tokens without '=' return ok false.
func keyValue(tok string) (key, value string, ok bool) {
	i := strings.IndexByte(tok, '=')
	if i < 0 {
		return "", "", false
	}
	return strings.ToLower(strings.TrimSpace(tok[:i])), strings.TrimSpace(tok[i+1:]), true
}

func fill(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// repeat tiles vals count times.
func repeat(vals []float32, count int) []float32 {
	if count <= 1 {
		return vals
	}
	out := make([]float32, 0, len(vals)*count)
	for i := 0; i < count; i++ {
		out = append(out, vals...)
	}
	return out
}

func identity(comps int) []float32 {
	out := make([]float32, comps)
	dim := 2
	for dim*dim < comps {
		dim++
	}
	if dim*dim != comps {
		return out
	}
	for i := 0; i < dim; i++ {
		out[i*dim+i] = 1
	}
	return out
}
