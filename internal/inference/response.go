package inference

import (
	"encoding/json"
	"strings"
)

// OutputKind tags the shape of the backend's loosely-typed output field.
// The backend has been observed returning a bare URL string, an object with a
// "url" key, an object with a "path" key, or null on internal failure.
type OutputKind int

const (
	OutputNull OutputKind = iota
	OutputString
	OutputURLObject
	OutputPathObject
	OutputUnknown
)

func (k OutputKind) String() string {
	switch k {
	case OutputNull:
		return "null"
	case OutputString:
		return "string"
	case OutputURLObject:
		return "url_object"
	case OutputPathObject:
		return "path_object"
	default:
		return "unknown"
	}
}

// OutputRef is the classified output reference. Ref is only meaningful for
// the String, URLObject and PathObject kinds.
type OutputRef struct {
	Kind OutputKind
	Ref  string
}

// classifyOutput decides, exhaustively, what shape the raw output field has.
// All probing of the payload lives here; callers switch on the kind and never
// inspect the raw JSON themselves.
func classifyOutput(raw json.RawMessage) OutputRef {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return OutputRef{Kind: OutputNull}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s = strings.TrimSpace(s); s == "" {
			return OutputRef{Kind: OutputNull}
		}
		return OutputRef{Kind: OutputString, Ref: s}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return OutputRef{Kind: OutputUnknown}
	}
	if ref, ok := stringField(obj, "url"); ok {
		return OutputRef{Kind: OutputURLObject, Ref: ref}
	}
	if ref, ok := stringField(obj, "path"); ok {
		return OutputRef{Kind: OutputPathObject, Ref: ref}
	}
	return OutputRef{Kind: OutputUnknown}
}

func stringField(obj map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := obj[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}
