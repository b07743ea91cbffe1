package filter

import (
	"fmt"

	"nearbridge/internal/model"
)

// Operator is a leaf comparison operator.
type Operator string

const (
	OpEquals         Operator = "equals"
	OpNotEqual       Operator = "not_equal"
	OpGreaterThan    Operator = "greater_than"
	OpLessThan       Operator = "less_than"
	OpGreaterOrEqual Operator = "greater_or_equal"
	OpLessOrEqual    Operator = "less_or_equal"
	OpStartsWith     Operator = "starts_with"
	OpEndsWith       Operator = "ends_with"
	OpContains       Operator = "contains"
	OpArrayContains  Operator = "array_contains"
	OpHasKey         Operator = "has_key"
)

// ParseOperator validates an operator name from configuration.
func ParseOperator(raw string) (Operator, error) {
	switch Operator(raw) {
	case OpEquals, OpNotEqual, OpGreaterThan, OpLessThan, OpGreaterOrEqual,
		OpLessOrEqual, OpStartsWith, OpEndsWith, OpContains, OpArrayContains,
		OpHasKey:
		return Operator(raw), nil
	default:
		return "", fmt.Errorf("unknown operator %q", raw)
	}
}

// Condition is a closed predicate tree: exactly one of Leaf, And, or Or is
// set. It is immutable after construction.
type Condition struct {
	leaf     *Leaf
	children []Condition
	disjunct bool
}

// Leaf is a single comparison against a field path.
type Leaf struct {
	Path    Path
	Op      Operator
	Operand model.Value
}

// NewLeaf builds a leaf condition.
func NewLeaf(path Path, op Operator, operand model.Value) Condition {
	return Condition{leaf: &Leaf{Path: path, Op: op, Operand: operand}}
}

// And builds a conjunction. An empty And matches every record.
func And(children ...Condition) Condition {
	return Condition{children: children}
}

// Or builds a disjunction. An empty Or matches no record.
func Or(children ...Condition) Condition {
	return Condition{children: children, disjunct: true}
}

// ParseCondition converts the configuration tree shape into a Condition.
// The shape is one of:
//
//	{and: [node, ...]}
//	{or: [node, ...]}
//	{path: "a.b", op: "equals", value: <literal>}
func ParseCondition(raw map[string]interface{}) (Condition, error) {
	if children, ok := raw["and"]; ok {
		parsed, err := parseChildren(children)
		if err != nil {
			return Condition{}, fmt.Errorf("and: %w", err)
		}
		return And(parsed...), nil
	}
	if children, ok := raw["or"]; ok {
		parsed, err := parseChildren(children)
		if err != nil {
			return Condition{}, fmt.Errorf("or: %w", err)
		}
		return Or(parsed...), nil
	}

	rawPath, ok := raw["path"].(string)
	if !ok {
		return Condition{}, fmt.Errorf("condition node needs one of and/or/path")
	}
	path, err := ParsePath(rawPath)
	if err != nil {
		return Condition{}, err
	}

	rawOp, _ := raw["op"].(string)
	if rawOp == "" {
		rawOp, _ = raw["operator"].(string)
	}
	op, err := ParseOperator(rawOp)
	if err != nil {
		return Condition{}, err
	}

	operand, err := model.FromInterface(raw["value"])
	if err != nil {
		return Condition{}, fmt.Errorf("operand for %s: %w", rawPath, err)
	}

	return NewLeaf(path, op, operand), nil
}

func parseChildren(raw interface{}) ([]Condition, error) {
	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("children must be a list, got %T", raw)
	}
	parsed := make([]Condition, 0, len(items))
	for i, item := range items {
		node, ok := toStringMap(item)
		if !ok {
			return nil, fmt.Errorf("child %d must be a mapping, got %T", i, item)
		}
		child, err := ParseCondition(node)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, child)
	}
	return parsed, nil
}

// toStringMap normalizes the two mapping shapes YAML decoders produce.
func toStringMap(raw interface{}) (map[string]interface{}, bool) {
	switch typed := raw.(type) {
	case map[string]interface{}:
		return typed, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(typed))
		for key, val := range typed {
			name, ok := key.(string)
			if !ok {
				return nil, false
			}
			out[name] = val
		}
		return out, true
	default:
		return nil, false
	}
}
