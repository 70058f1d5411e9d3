package workflow

// merge returns a new map holding base with override applied on top. Nested
// maps merge recursively; any other override value replaces the base value,
// including zero values. Neither input is modified.
func merge(base, override map[string]any) map[string]any {
	if base == nil && override == nil {
		return nil
	}

	out := copyMap(base)
	if out == nil {
		out = make(map[string]any, len(override))
	}

	for key, value := range override {
		nested, ok := value.(map[string]any)
		if !ok {
			out[key] = copyValue(value)

			continue
		}

		if existing, ok := out[key].(map[string]any); ok {
			out[key] = merge(existing, nested)
		} else {
			out[key] = copyMap(nested)
		}
	}

	return out
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	out := make(map[string]any, len(m))
	for key, value := range m {
		out[key] = copyValue(value)
	}

	return out
}

func copyValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		return copyMap(value)
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = copyValue(item)
		}

		return out
	default:
		return v
	}
}
