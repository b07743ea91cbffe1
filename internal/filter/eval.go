package filter

import (
	"strings"

	"nearbridge/internal/model"
)

// Evaluate reports whether the record satisfies the condition. It is total:
// unresolvable paths and type mismatches evaluate to false, never an error.
// It reads only, so concurrent evaluation across records is safe.
func Evaluate(cond Condition, record model.Record) bool {
	if cond.leaf != nil {
		return evalLeaf(*cond.leaf, record)
	}
	if cond.disjunct {
		for _, child := range cond.children {
			if Evaluate(child, record) {
				return true
			}
		}
		return false
	}
	for _, child := range cond.children {
		if !Evaluate(child, record) {
			return false
		}
	}
	return true
}

func evalLeaf(leaf Leaf, record model.Record) bool {
	resolved, ok := leaf.Path.Resolve(record)
	if !ok {
		// Absence satisfies no operator, HasKey included.
		return false
	}

	switch leaf.Op {
	case OpEquals:
		return resolved.Equal(leaf.Operand)
	case OpNotEqual:
		return !resolved.Equal(leaf.Operand)
	case OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual:
		return evalOrdering(leaf.Op, resolved, leaf.Operand)
	case OpStartsWith, OpEndsWith, OpContains:
		return evalSubstring(leaf.Op, resolved, leaf.Operand)
	case OpArrayContains:
		arr, ok := resolved.AsArray()
		if !ok {
			return false
		}
		for _, item := range arr {
			if item.Equal(leaf.Operand) {
				return true
			}
		}
		return false
	case OpHasKey:
		obj, ok := resolved.AsObject()
		if !ok {
			return false
		}
		key, ok := leaf.Operand.AsString()
		if !ok {
			return false
		}
		_, present := obj[key]
		return present
	default:
		return false
	}
}

// evalOrdering requires both sides to be numeric; numeric strings are not
// coerced.
func evalOrdering(op Operator, resolved, operand model.Value) bool {
	left, ok := resolved.AsNumber()
	if !ok {
		return false
	}
	right, ok := operand.AsNumber()
	if !ok {
		return false
	}
	switch op {
	case OpGreaterThan:
		return left > right
	case OpLessThan:
		return left < right
	case OpGreaterOrEqual:
		return left >= right
	case OpLessOrEqual:
		return left <= right
	}
	return false
}

func evalSubstring(op Operator, resolved, operand model.Value) bool {
	haystack, ok := resolved.AsString()
	if !ok {
		return false
	}
	needle, ok := operand.AsString()
	if !ok {
		return false
	}
	switch op {
	case OpStartsWith:
		return strings.HasPrefix(haystack, needle)
	case OpEndsWith:
		return strings.HasSuffix(haystack, needle)
	case OpContains:
		return strings.Contains(haystack, needle)
	}
	return false
}
