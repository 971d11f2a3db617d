package inference

import (
	"encoding/json"
	"testing"
)

func TestClassifyOutputShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind OutputKind
		ref  string
	}{
		{name: "null literal", raw: `null`, kind: OutputNull},
		{name: "absent field", raw: ``, kind: OutputNull},
		{name: "empty string", raw: `""`, kind: OutputNull},
		{name: "bare string", raw: `"https://cdn.example.com/out.png"`, kind: OutputString, ref: "https://cdn.example.com/out.png"},
		{name: "url object", raw: `{"url":"https://cdn.example.com/out.png"}`, kind: OutputURLObject, ref: "https://cdn.example.com/out.png"},
		{name: "path object", raw: `{"path":"results/out.png"}`, kind: OutputPathObject, ref: "results/out.png"},
		{name: "url wins over path", raw: `{"url":"https://a/x.png","path":"b/y.png"}`, kind: OutputURLObject, ref: "https://a/x.png"},
		{name: "object with neither key", raw: `{"image":"https://a/x.png"}`, kind: OutputUnknown},
		{name: "url key with non-string value", raw: `{"url":42}`, kind: OutputUnknown},
		{name: "url key empty falls through to path", raw: `{"url":"  ","path":"b/y.png"}`, kind: OutputPathObject, ref: "b/y.png"},
		{name: "number", raw: `42`, kind: OutputUnknown},
		{name: "array", raw: `["https://a/x.png"]`, kind: OutputUnknown},
		{name: "boolean", raw: `true`, kind: OutputUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyOutput(json.RawMessage(tc.raw))
			if got.Kind != tc.kind {
				t.Fatalf("kind = %s, want %s", got.Kind, tc.kind)
			}
			if got.Ref != tc.ref {
				t.Fatalf("ref = %q, want %q", got.Ref, tc.ref)
			}
		})
	}
}
