// Package conditions provides generic predicate evaluation over entity
// payloads for workflow triggers.
package conditions

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gearboxhq/gearbox/pkg/models"
)

// ErrConditionEvaluation indicates malformed rule data. Callers catch it per
// workflow so one bad configuration cannot block sibling workflows.
var ErrConditionEvaluation = errors.New("condition evaluation failed")

// NestedField walks a dotted path through nested maps. When a path segment
// resolves to a non-empty slice, only the first element is followed; this is
// deliberate and relied on by existing workflow configurations. The second
// return is false when any segment is missing.
func NestedField(entity map[string]any, path string) (any, bool) {
	if entity == nil || path == "" {
		return nil, false
	}

	var current any = entity

	for _, segment := range strings.Split(path, ".") {
		if list, ok := current.([]any); ok {
			if len(list) == 0 {
				return nil, false
			}

			current = list[0]
		}

		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}

	if list, ok := current.([]any); ok {
		if len(list) == 0 {
			return nil, false
		}

		current = list[0]
	}

	return current, true
}

// Check applies a single operator to a field value. Unknown operators
// evaluate to false rather than erroring, matching how workflow editors
// may save configs ahead of engine upgrades.
func Check(value any, operator models.Operator, expected string) bool {
	switch operator {
	case models.OperatorEquals:
		return stringify(value) == expected
	case models.OperatorNotEquals:
		return stringify(value) != expected
	case models.OperatorContains:
		return strings.Contains(strings.ToLower(stringify(value)), strings.ToLower(expected))
	case models.OperatorNotContains:
		return !strings.Contains(strings.ToLower(stringify(value)), strings.ToLower(expected))
	case models.OperatorGreaterThan:
		left, right, ok := numericPair(value, expected)

		return ok && left > right
	case models.OperatorLessThan:
		left, right, ok := numericPair(value, expected)

		return ok && left < right
	case models.OperatorGreaterThanOrEqual:
		left, right, ok := numericPair(value, expected)

		return ok && left >= right
	case models.OperatorLessThanOrEqual:
		left, right, ok := numericPair(value, expected)

		return ok && left <= right
	case models.OperatorIsTrue:
		return isTruthy(value)
	case models.OperatorIsFalse:
		return !isTruthy(value)
	case models.OperatorIsEmpty:
		return isEmpty(value)
	case models.OperatorIsNotEmpty:
		return !isEmpty(value)
	case models.OperatorIn:
		return inList(value, expected)
	case models.OperatorNotIn:
		return !inList(value, expected)
	default:
		return false
	}
}

// Evaluate folds the ordered condition list into a single boolean. The first
// condition seeds the accumulator; each subsequent condition combines with
// the accumulator using its own logic operator. The fold is strictly
// left-to-right with no grouping or precedence; existing workflows depend on
// this exact semantics.
func Evaluate(entity map[string]any, list []models.Condition) (bool, error) {
	if len(list) == 0 {
		return true, nil
	}

	result := false

	for i, condition := range list {
		if condition.Field == "" || condition.Operator == "" {
			return false, fmt.Errorf("%w: condition %d is missing field or operator", ErrConditionEvaluation, i)
		}

		value, _ := NestedField(entity, condition.Field)
		matched := Check(value, condition.Operator, condition.Value)

		if i == 0 {
			result = matched

			continue
		}

		switch condition.Logic {
		case models.LogicOr:
			result = result || matched
		case models.LogicAnd, "":
			result = result && matched
		default:
			return false, fmt.Errorf("%w: condition %d has unknown logic %q", ErrConditionEvaluation, i, condition.Logic)
		}
	}

	return result, nil
}

func stringify(value any) string {
	if value == nil {
		return ""
	}

	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", value)
	}
}

func numericPair(value any, expected string) (float64, float64, bool) {
	left, ok := toFloat(value)
	if !ok {
		return 0, 0, false
	}

	right, err := strconv.ParseFloat(strings.TrimSpace(expected), 64)
	if err != nil {
		return 0, 0, false
	}

	return left, right, true
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)

		return parsed, err == nil
	default:
		return 0, false
	}
}

func isTruthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return false
	}
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}

func inList(value any, expected string) bool {
	needle := stringify(value)

	for _, item := range strings.Split(expected, ",") {
		if strings.TrimSpace(item) == needle {
			return true
		}
	}

	return false
}
