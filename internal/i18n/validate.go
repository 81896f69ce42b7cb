package i18n

import (
	"fmt"
	"sort"
)

// Validation failure reasons.
const (
	ReasonMissing    = "missing key"
	ReasonUnexpected = "unexpected key"
	ReasonType       = "type mismatch"
	ReasonLocale     = "unsupported locale"
)

// ValidationError reports the first offending key of a message bundle.
type ValidationError struct {
	Locale string
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("messages %s: %s", e.Locale, e.Reason)
	}
	return fmt.Sprintf("messages %s: %s %q", e.Locale, e.Reason, e.Path)
}

// validateBundle walks schema and candidate together. With partial set,
// namespaces may be absent at the top level and directly under "pages" and
// "components"; anything present is checked strictly.
func validateBundle(locale string, schema, candidate Messages, partial bool) (Messages, error) {
	if !IsSupported(locale) {
		return nil, &ValidationError{Locale: locale, Reason: ReasonLocale}
	}
	v := validator{locale: locale, partial: partial}
	out, err := v.object("", schema, candidate, 0)
	if err != nil {
		return nil, err
	}
	return Messages(out), nil
}

type validator struct {
	locale  string
	partial bool
}

func (v validator) fail(path, reason string) error {
	return &ValidationError{Locale: v.locale, Path: path, Reason: reason}
}

// optional reports whether a key at this position may be missing.
func (v validator) optional(prefix string, depth int) bool {
	if !v.partial {
		return false
	}
	return depth == 0 || (depth == 1 && (prefix == KindPages || prefix == KindComponents))
}

func (v validator) object(prefix string, schema, candidate map[string]any, depth int) (map[string]any, error) {
	// Sorted so the reported path is deterministic.
	for _, key := range sortedKeys(candidate) {
		if _, ok := schema[key]; !ok {
			return nil, v.fail(join(prefix, key), ReasonUnexpected)
		}
	}

	out := make(map[string]any, len(candidate))
	for _, key := range sortedKeys(schema) {
		path := join(prefix, key)
		got, ok := candidate[key]
		if !ok {
			if v.optional(prefix, depth) {
				continue
			}
			return nil, v.fail(path, ReasonMissing)
		}
		copied, err := v.value(path, schema[key], got, depth+1)
		if err != nil {
			return nil, err
		}
		out[key] = copied
	}
	return out, nil
}

func (v validator) value(path string, schema, candidate any, depth int) (any, error) {
	switch want := schema.(type) {
	case map[string]any:
		got, ok := asObject(candidate)
		if !ok {
			return nil, v.fail(path, ReasonType)
		}
		return v.object(path, want, got, depth)
	case []any:
		got, ok := candidate.([]any)
		if !ok {
			return nil, v.fail(path, ReasonType)
		}
		out := make([]any, len(got))
		for i, item := range got {
			if _, ok := item.(string); !ok {
				return nil, v.fail(fmt.Sprintf("%s[%d]", path, i), ReasonType)
			}
			out[i] = item
		}
		return out, nil
	case string:
		if _, ok := candidate.(string); !ok {
			return nil, v.fail(path, ReasonType)
		}
		return candidate, nil
	default:
		if fmt.Sprintf("%T", want) != fmt.Sprintf("%T", candidate) {
			return nil, v.fail(path, ReasonType)
		}
		return candidate, nil
	}
}

func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Messages:
		return m, true
	default:
		return nil, false
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
