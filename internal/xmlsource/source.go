// Package xmlsource turns the Personio XML feed into a nested map that the
// mapper can walk, and normalizes repeated elements into list form.
package xmlsource

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/clbanning/mxj/v2"

	"github.com/amishk599/personiojobs/internal/model"
)

// Source is a decoded XML document without its root element. Text-only
// elements are strings, repeated elements are []any, nested elements are
// map[string]any.
type Source map[string]any

// Parse decodes payload into a Source. The document element is stripped so
// its children become the top-level keys.
func Parse(payload []byte) (Source, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, &model.MalformedInputError{Payload: payload, Err: errors.New("empty document")}
	}

	m, err := mxj.NewMapXml(payload)
	if err != nil {
		return nil, &model.MalformedInputError{Payload: payload, Err: err}
	}

	for _, root := range m {
		switch v := root.(type) {
		case map[string]any:
			return Source(v), nil
		case string:
			if strings.TrimSpace(v) == "" {
				return Source{}, nil
			}
			return nil, &model.MalformedInputError{Payload: payload, Err: errors.New("document element has no child elements")}
		default:
			return nil, &model.MalformedInputError{Payload: payload, Err: fmt.Errorf("unexpected document element %T", v)}
		}
	}
	return Source{}, nil
}

// NormalizeListAt returns a deep copy of s in which the value at the
// dot-delimited path is a list. A "*" segment applies the rest of the path
// to every element of the list found there. A single mapping is wrapped in
// a one-element list, a missing or empty value becomes an empty list.
func (s Source) NormalizeListAt(path string) (Source, error) {
	clone := deepCopy(map[string]any(s)).(map[string]any)

	out, err := normalize(clone, strings.Split(path, "."), nil)
	if err != nil {
		return nil, err
	}
	return Source(out.(map[string]any)), nil
}

func normalize(value any, segments, walked []string) (any, error) {
	if len(segments) == 0 {
		return asList(value, walked)
	}

	segment := segments[0]
	here := append(walked[:len(walked):len(walked)], segment)

	if segment == "" {
		return nil, &model.InvalidPathError{Path: strings.Join(here, "."), Reason: "empty path segment"}
	}

	if segment == "*" {
		list, ok := value.([]any)
		if !ok {
			return nil, &model.InvalidPathError{
				Path:   strings.Join(walked, "."),
				Reason: fmt.Sprintf("expected list, got %s", describe(value)),
			}
		}
		for i, el := range list {
			v, err := normalize(el, segments[1:], here)
			if err != nil {
				return nil, err
			}
			list[i] = v
		}
		return list, nil
	}

	m, ok := value.(map[string]any)
	if !ok {
		if !isEmpty(value) {
			return nil, &model.InvalidPathError{
				Path:   strings.Join(walked, "."),
				Reason: fmt.Sprintf("expected mapping, got %s", describe(value)),
			}
		}
		m = make(map[string]any)
	}

	child, err := normalize(m[segment], segments[1:], here)
	if err != nil {
		return nil, err
	}
	m[segment] = child
	return m, nil
}

func asList(value any, walked []string) (any, error) {
	switch v := value.(type) {
	case []any:
		return v, nil
	case map[string]any:
		return []any{v}, nil
	}
	if isEmpty(value) {
		return []any{}, nil
	}
	return nil, &model.InvalidPathError{
		Path:   strings.Join(walked, "."),
		Reason: fmt.Sprintf("expected array, got %s", describe(value)),
	}
}

// isEmpty treats a missing key and an empty element (<a/>) alike.
func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	s, ok := value.(string)
	return ok && strings.TrimSpace(s) == ""
}

func describe(value any) string {
	switch value.(type) {
	case nil:
		return "nothing"
	case string:
		return "text"
	case []any:
		return "list"
	case map[string]any:
		return "mapping"
	default:
		return fmt.Sprintf("%T", value)
	}
}

func deepCopy(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, el := range v {
			out[k] = deepCopy(el)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, el := range v {
			out[i] = deepCopy(el)
		}
		return out
	default:
		return v
	}
}
