// Package conditions evaluates workflow and trigger conditions against an
// execution context.
package conditions

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/dukex/flowcore/pkg/models"
)

// Resolve walks data following the dotted path. The second return value is
// false when any segment is missing.
func Resolve(data map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	var current any = data

	for _, segment := range strings.Split(path, ".") {
		next, ok := lookup(current, segment)
		if !ok {
			return nil, false
		}

		current = next
	}

	return current, true
}

func lookup(value any, key string) (any, bool) {
	switch v := value.(type) {
	case map[string]any:
		out, ok := v[key]

		return out, ok
	case nil:
		return nil, false
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}

	out := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
	if !out.IsValid() {
		return nil, false
	}

	return out.Interface(), true
}

// Evaluate reports whether a single condition holds over data.
func Evaluate(condition models.Condition, data map[string]any) (bool, error) {
	if condition.Expression != "" {
		return defaultExpressions.Evaluate(condition.Expression, data)
	}

	actual, found := Resolve(data, condition.Field)

	switch condition.Operator {
	case models.OperatorEquals:
		return found && equal(actual, condition.Value), nil
	case models.OperatorNotEquals:
		return !found || !equal(actual, condition.Value), nil
	case models.OperatorContains:
		if !found {
			return false, nil
		}

		return strings.Contains(stringify(actual), stringify(condition.Value)), nil
	case models.OperatorGreaterThan:
		if !found {
			return false, nil
		}

		cmp, ok := compare(actual, condition.Value)

		return ok && cmp > 0, nil
	case models.OperatorLessThan:
		if !found {
			return false, nil
		}

		cmp, ok := compare(actual, condition.Value)

		return ok && cmp < 0, nil
	default:
		return false, models.NewConfigurationError("evaluate condition", "unsupported operator %q", condition.Operator)
	}
}

// EvaluateAll is conjunctive; an empty list holds vacuously.
func EvaluateAll(conditions []models.Condition, data map[string]any) (bool, error) {
	for i, condition := range conditions {
		ok, err := Evaluate(condition, data)
		if err != nil {
			return false, fmt.Errorf("condition %d: %w", i, err)
		}

		if !ok {
			return false, nil
		}
	}

	return true, nil
}

// Validate checks a condition without evaluating it.
func Validate(condition models.Condition) error {
	if condition.Expression != "" {
		return defaultExpressions.Compile(condition.Expression)
	}

	if condition.Field == "" {
		return models.NewValidationError("validate condition", "field is required")
	}

	switch condition.Operator {
	case models.OperatorEquals, models.OperatorNotEquals, models.OperatorContains,
		models.OperatorGreaterThan, models.OperatorLessThan:
		return nil
	default:
		return models.NewConfigurationError("validate condition", "unsupported operator %q", condition.Operator)
	}
}

func equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)

		return ok && fa == fb
	}

	if a == nil || b == nil {
		return a == nil && b == nil
	}

	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}

	if ta.Comparable() {
		return a == b
	}

	return reflect.DeepEqual(a, b)
}

// compare orders numbers, strings and times. ok is false for any other pairing.
func compare(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}

		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		default:
			return 0, true
		}
	}

	switch va := a.(type) {
	case string:
		vb, ok := b.(string)
		if !ok {
			return 0, false
		}

		return strings.Compare(va, vb), true
	case time.Time:
		vb, ok := b.(time.Time)
		if !ok {
			return 0, false
		}

		return va.Compare(vb), true
	}

	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func stringify(v any) string {
	if v == nil {
		return ""
	}

	if s, ok := v.(string); ok {
		return s
	}

	return fmt.Sprint(v)
}
