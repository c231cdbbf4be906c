package uniform

import (
	"fmt"
	"slices"
	"strings"
)

// conditionOps is the operator scan order. Two-character forms come before
// their one-character prefixes so `a<=1` never splits on `<`.
var conditionOps = []string{"==", "!=", "<=", ">=", ">", "<"}

var flippedOp = map[string]string{
	"<": ">", ">": "<", "<=": ">=", ">=": "<=", "==": "==", "!=": "!=",
}

type conditionKind int

const (
	conditionBool conditionKind = iota
	conditionChoice
	conditionThreshold
)

// Condition is a resolved visibility predicate over another binding. It reads
// the target's live value on every evaluation.
type Condition struct {
	Expr   string
	Target *Binding
	Op     string

	kind      conditionKind
	boolValue bool
	choice    int
	threshold float32
}

// Visible evaluates the predicate.
func (c *Condition) Visible() bool {
	if c.Target == nil || len(c.Target.Value) == 0 {
		return true
	}
	v := c.Target.Value[0]
	switch c.kind {
	case conditionBool:
		eq := (v != 0) == c.boolValue
		if c.Op == "!=" {
			return !eq
		}
		return eq
	case conditionChoice:
		eq := int(v) == c.choice
		if c.Op == "!=" {
			return !eq
		}
		return eq
	case conditionThreshold:
		switch c.Op {
		case ">":
			return v > c.threshold
		case "<":
			return v < c.threshold
		case ">=":
			return v >= c.threshold
		case "<=":
			return v <= c.threshold
		}
	}
	return true
}

// ParseCondition resolves `var0 OP var1` where exactly one side names an
// existing binding and the other is a literal interpreted by the target's
// widget.
func ParseCondition(expr string, lookup func(name string) (*Binding, bool)) (*Condition, error) {
	expr = strings.TrimSpace(expr)
	op, idx := "", -1
	for _, o := range conditionOps {
		if i := strings.Index(expr, o); i >= 0 {
			op, idx = o, i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("condition %q has no operator", expr)
	}
	lhs := strings.TrimSpace(expr[:idx])
	rhs := strings.TrimSpace(expr[idx+len(op):])
	if lhs == "" || rhs == "" {
		return nil, fmt.Errorf("condition %q is missing an operand", expr)
	}

	lb, lok := lookup(lhs)
	rb, rok := lookup(rhs)
	var (
		target  *Binding
		literal string
	)
	switch {
	case lok && rok:
		return nil, fmt.Errorf("condition %q compares two uniforms", expr)
	case !lok && !rok:
		return nil, fmt.Errorf("condition %q references no known uniform", expr)
	case lok:
		target, literal = lb, rhs
	default:
		target, literal = rb, lhs
		op = flippedOp[op]
	}

	c := &Condition{Expr: expr, Target: target, Op: op}
	switch target.Policy {
	case PolicyCheckbox:
		if op != "==" && op != "!=" {
			return nil, fmt.Errorf("condition %q: checkbox %s only supports == and !=", expr, target.Name)
		}
		v, err := parseBool(literal)
		if err != nil {
			return nil, fmt.Errorf("condition %q: %w", expr, err)
		}
		c.kind = conditionBool
		c.boolValue = v
	case PolicyCombobox:
		if op != "==" && op != "!=" {
			return nil, fmt.Errorf("condition %q: combobox %s only supports == and !=", expr, target.Name)
		}
		i := slices.Index(target.Choices, literal)
		if i < 0 {
			return nil, fmt.Errorf("condition %q: %q is not a choice of %s", expr, literal, target.Name)
		}
		c.kind = conditionChoice
		c.choice = i
	case PolicySlider, PolicyTime, PolicyModel, PolicyInput, PolicyButton:
		if op == "==" || op == "!=" {
			return nil, fmt.Errorf("condition %q: numeric %s needs a relational operator", expr, target.Name)
		}
		v, err := parseNumber(literal)
		if err != nil {
			return nil, fmt.Errorf("condition %q: %w", expr, err)
		}
		c.kind = conditionThreshold
		c.threshold = v
	default:
		return nil, fmt.Errorf("condition %q: widget %q of %s cannot drive visibility", expr, target.Widget, target.Name)
	}
	return c, nil
}
