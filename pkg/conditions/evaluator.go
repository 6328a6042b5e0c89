// Package conditions evaluates transition guard conditions against a snapshot of
// application facts.
package conditions

import (
	"github.com/dukex/admitio/pkg/models"
)

// FailedCondition describes one condition that did not pass, annotated with the
// actual value observed so callers can render field-level detail.
type FailedCondition struct {
	Field    string          `json:"field"`
	Operator models.Operator `json:"operator"`
	Expected any             `json:"expected"`
	Actual   any             `json:"actual,omitempty"`
	Present  bool            `json:"present"`
}

// Evaluate reports whether every condition passes against the facts. A field absent
// from the snapshot never satisfies its condition; an empty condition list passes
// trivially.
func Evaluate(conds []models.Condition, facts models.FactSnapshot) bool {
	for _, cond := range conds {
		if !satisfied(cond, facts) {
			return false
		}
	}

	return true
}

// MissingRequirements returns the subset of conditions that failed against the
// facts, in condition order.
func MissingRequirements(conds []models.Condition, facts models.FactSnapshot) []FailedCondition {
	missing := make([]FailedCondition, 0)

	for _, cond := range conds {
		if satisfied(cond, facts) {
			continue
		}

		actual, present := facts[cond.Field]
		missing = append(missing, FailedCondition{
			Field:    cond.Field,
			Operator: cond.Operator,
			Expected: cond.Value,
			Actual:   actual,
			Present:  present,
		})
	}

	return missing
}

func satisfied(cond models.Condition, facts models.FactSnapshot) bool {
	actual, present := facts[cond.Field]
	if !present {
		return false
	}

	return compare(actual, cond.Operator, cond.Value)
}

// compare applies the operator with semantics matching the expected value's type:
// numbers compare numerically, booleans by identity, strings lexically and only for
// equality operators. Incomparable pairs never satisfy.
func compare(actual any, op models.Operator, expected any) bool {
	if expectedNum, ok := toFloat(expected); ok {
		actualNum, ok := toFloat(actual)
		if !ok {
			return false
		}

		return compareFloats(actualNum, op, expectedNum)
	}

	if expectedBool, ok := expected.(bool); ok {
		actualBool, ok := actual.(bool)
		if !ok {
			return false
		}

		switch op {
		case models.OpEqual:
			return actualBool == expectedBool
		case models.OpNotEqual:
			return actualBool != expectedBool
		default:
			return false
		}
	}

	if expectedStr, ok := expected.(string); ok {
		actualStr, ok := actual.(string)
		if !ok {
			return false
		}

		switch op {
		case models.OpEqual:
			return actualStr == expectedStr
		case models.OpNotEqual:
			return actualStr != expectedStr
		default:
			return false
		}
	}

	return false
}

func compareFloats(actual float64, op models.Operator, expected float64) bool {
	switch op {
	case models.OpEqual:
		return actual == expected
	case models.OpNotEqual:
		return actual != expected
	case models.OpGreater:
		return actual > expected
	case models.OpGreaterOrEqual:
		return actual >= expected
	case models.OpLess:
		return actual < expected
	case models.OpLessOrEqual:
		return actual <= expected
	default:
		return false
	}
}

// toFloat normalizes the numeric types that reach us from JSON decoding and Go
// callers alike.
func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
