package usecase

import (
	"reflect"
	"strings"

	"github.com/BuggPlayer/homeservice-iam/internal/core/domain"
)

// conditionsHold reports whether every condition on a grant holds against the
// supplied context. Conditions are AND-combined; an empty list always holds.
func conditionsHold(conditions []domain.Condition, accessCtx domain.AccessContext) bool {
	for _, condition := range conditions {
		value, defined := accessCtx.Lookup(condition.Field)
		if !evaluateCondition(value, defined, condition.Operator, condition.Value) {
			return false
		}
	}
	return true
}

// evaluateCondition applies a single operator. An undefined field value fails
// every operator except not_equals and not_in, which it satisfies; unknown
// operators fail closed.
func evaluateCondition(value any, defined bool, operator domain.ConditionOperator, expected any) bool {
	switch operator {
	case domain.OpEquals:
		return defined && valuesEqual(value, expected)
	case domain.OpNotEquals:
		return !defined || !valuesEqual(value, expected)
	case domain.OpIn:
		return defined && listContains(expected, value)
	case domain.OpNotIn:
		return !defined || !listContains(expected, value)
	case domain.OpContains:
		str, sub, ok := stringPair(value, defined, expected)
		return ok && strings.Contains(str, sub)
	case domain.OpStartsWith:
		str, prefix, ok := stringPair(value, defined, expected)
		return ok && strings.HasPrefix(str, prefix)
	case domain.OpEndsWith:
		str, suffix, ok := stringPair(value, defined, expected)
		return ok && strings.HasSuffix(str, suffix)
	default:
		return false
	}
}

// valuesEqual compares a context value against a stored condition value.
// Condition values arrive through JSON so numbers are compared numerically
// regardless of the concrete Go type on either side.
func valuesEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return reflect.DeepEqual(a, b)
	}
}

func listContains(list any, value any) bool {
	items := reflect.ValueOf(list)
	if !items.IsValid() || (items.Kind() != reflect.Slice && items.Kind() != reflect.Array) {
		return false
	}
	for i := 0; i < items.Len(); i++ {
		if valuesEqual(value, items.Index(i).Interface()) {
			return true
		}
	}
	return false
}

func stringPair(value any, defined bool, expected any) (string, string, bool) {
	if !defined {
		return "", "", false
	}
	str, ok := value.(string)
	if !ok {
		return "", "", false
	}
	exp, ok := expected.(string)
	if !ok {
		return "", "", false
	}
	return str, exp, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
