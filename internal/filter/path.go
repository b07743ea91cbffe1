package filter

import (
	"fmt"
	"strconv"
	"strings"

	"nearbridge/internal/model"
)

// Path is a parsed field-access expression: dot-separated keys with optional
// [index] segments, e.g. "action.args", "topics[0]". The lone path "."
// resolves to the whole record.
type Path struct {
	raw      string
	segments []segment
}

type segment struct {
	key     string
	index   int
	isIndex bool
}

// ParsePath parses a path expression.
func ParsePath(raw string) (Path, error) {
	if raw == "" {
		return Path{}, fmt.Errorf("empty path")
	}
	if raw == "." {
		return Path{raw: raw}, nil
	}

	var segments []segment
	for _, part := range strings.Split(raw, ".") {
		if part == "" {
			return Path{}, fmt.Errorf("path %q has an empty segment", raw)
		}
		key := part
		var indexes []int
		for {
			open := strings.IndexByte(key, '[')
			if open < 0 {
				break
			}
			closing := strings.IndexByte(key[open:], ']')
			if closing < 0 {
				return Path{}, fmt.Errorf("path %q has an unclosed index", raw)
			}
			idx, err := strconv.Atoi(key[open+1 : open+closing])
			if err != nil || idx < 0 {
				return Path{}, fmt.Errorf("path %q has an invalid index", raw)
			}
			indexes = append(indexes, idx)
			key = key[:open] + key[open+closing+1:]
		}
		if key != "" {
			segments = append(segments, segment{key: key})
		} else if len(indexes) == 0 {
			return Path{}, fmt.Errorf("path %q has an empty segment", raw)
		}
		for _, idx := range indexes {
			segments = append(segments, segment{index: idx, isIndex: true})
		}
	}
	return Path{raw: raw, segments: segments}, nil
}

func (p Path) String() string { return p.raw }

// Resolve walks the record's field tree. The second return is false when the
// path does not resolve (missing key, index out of range, traversal through a
// non-container). Resolution failure is not an error: callers treat the value
// as absent.
func (p Path) Resolve(record model.Record) (model.Value, bool) {
	current := record.Fields()
	for _, seg := range p.segments {
		if seg.isIndex {
			arr, ok := current.AsArray()
			if !ok || seg.index >= len(arr) {
				return model.Value{}, false
			}
			current = arr[seg.index]
			continue
		}
		obj, ok := current.AsObject()
		if !ok {
			return model.Value{}, false
		}
		current, ok = obj[seg.key]
		if !ok {
			return model.Value{}, false
		}
	}
	return current, true
}
