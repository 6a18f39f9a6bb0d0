package xmlsource

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/amishk599/personiojobs/internal/model"
)

func TestParse_StripsRootElement(t *testing.T) {
	xml := `<?xml version="1.0" encoding="UTF-8"?>
<root>
    <foo>
        <baz>1</baz>
    </foo>
</root>`

	src, err := Parse([]byte(xml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Source{"foo": map[string]any{"baz": "1"}}
	if !reflect.DeepEqual(src, want) {
		t.Errorf("got %#v, want %#v", src, want)
	}
}

func TestParse_MalformedInput(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"empty", ""},
		{"whitespace", "  \n"},
		{"unclosed", "<root><foo>"},
		{"mismatched", "<root><a></b></root>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.payload))
			var malformed *model.MalformedInputError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected MalformedInputError, got %v", err)
			}
			if string(malformed.Payload) != tt.payload {
				t.Errorf("payload not carried: %q", malformed.Payload)
			}
		})
	}
}

func TestParse_EmptyRoot(t *testing.T) {
	src, err := Parse([]byte(`<workzag-jobs></workzag-jobs>`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(src) != 0 {
		t.Errorf("expected empty source, got %#v", src)
	}
}

func TestNormalizeListAt_WrapsSingleMapping(t *testing.T) {
	src := Source{"foo": map[string]any{"baz": "1"}}

	got, err := src.NormalizeListAt("foo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Source{"foo": []any{map[string]any{"baz": "1"}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
	// receiver is untouched
	if _, ok := src["foo"].(map[string]any); !ok {
		t.Error("NormalizeListAt modified the receiver")
	}
}

func TestNormalizeListAt_KeepsList(t *testing.T) {
	list := []any{map[string]any{"id": "1"}, map[string]any{"id": "2"}}
	src := Source{"position": list}

	got, err := src.NormalizeListAt("position")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got["position"], list) {
		t.Errorf("list changed: %#v", got["position"])
	}
}

func TestNormalizeListAt_MissingAndEmptyBecomeEmptyList(t *testing.T) {
	tests := []struct {
		name string
		src  Source
		path string
	}{
		{"missing key", Source{}, "position"},
		{"empty element", Source{"position": ""}, "position"},
		{"missing intermediate", Source{}, "a.b.c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.src.NormalizeListAt(tt.path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var v any = map[string]any(got)
			for _, key := range strings.Split(tt.path, ".") {
				v = v.(map[string]any)[key]
			}
			if l, ok := v.([]any); !ok || len(l) != 0 {
				t.Errorf("expected empty list, got %#v", v)
			}
		})
	}
}

func TestNormalizeListAt_Wildcard(t *testing.T) {
	src := Source{
		"position": []any{
			map[string]any{"jobDescriptions": map[string]any{
				"jobDescription": map[string]any{"name": "a", "value": "b"},
			}},
			map[string]any{"jobDescriptions": map[string]any{
				"jobDescription": []any{
					map[string]any{"name": "c", "value": "d"},
					map[string]any{"name": "e", "value": "f"},
				},
			}},
			map[string]any{"jobDescriptions": ""},
		},
	}

	got, err := src.NormalizeListAt("position.*.jobDescriptions.jobDescription")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	positions := got["position"].([]any)
	wantLens := []int{1, 2, 0}
	for i, p := range positions {
		descs := p.(map[string]any)["jobDescriptions"].(map[string]any)["jobDescription"].([]any)
		if len(descs) != wantLens[i] {
			t.Errorf("position %d: got %d descriptions, want %d", i, len(descs), wantLens[i])
		}
	}
}

func TestNormalizeListAt_InvalidPaths(t *testing.T) {
	tests := []struct {
		name     string
		src      Source
		path     string
		wantPath string
	}{
		{"empty segment", Source{"foo": map[string]any{}}, "foo.", "foo."},
		{"empty path", Source{}, "", ""},
		{"wildcard on mapping", Source{"foo": map[string]any{"a": "b"}}, "foo.*.bar", "foo"},
		{"scalar intermediate", Source{"foo": "text"}, "foo.bar", "foo"},
		{"scalar final", Source{"foo": map[string]any{"bar": "text"}}, "foo.bar", "foo.bar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.src.NormalizeListAt(tt.path)
			var pathErr *model.InvalidPathError
			if !errors.As(err, &pathErr) {
				t.Fatalf("expected InvalidPathError, got %v", err)
			}
			if pathErr.Path != tt.wantPath {
				t.Errorf("path = %q, want %q", pathErr.Path, tt.wantPath)
			}
		})
	}
}

func TestParseAndNormalize_SingleVsMultiple(t *testing.T) {
	single := `<workzag-jobs><position><id>1</id></position></workzag-jobs>`
	multiple := `<workzag-jobs><position><id>1</id></position><position><id>2</id></position></workzag-jobs>`

	for name, payload := range map[string]string{"single": single, "multiple": multiple} {
		src, err := Parse([]byte(payload))
		if err != nil {
			t.Fatalf("%s: parse: %v", name, err)
		}
		src, err = src.NormalizeListAt("position")
		if err != nil {
			t.Fatalf("%s: normalize: %v", name, err)
		}
		if _, ok := src["position"].([]any); !ok {
			t.Errorf("%s: position is %T, want []any", name, src["position"])
		}
	}
}
