package models

// ConditionLogic joins a condition with the running evaluation result.
type ConditionLogic string

const (
	LogicAnd ConditionLogic = "AND"
	LogicOr  ConditionLogic = "OR"
)

// Operator is a predicate applied to a single entity field.
type Operator string

const (
	OperatorEquals             Operator = "equals"
	OperatorNotEquals          Operator = "not_equals"
	OperatorContains           Operator = "contains"
	OperatorNotContains        Operator = "not_contains"
	OperatorGreaterThan        Operator = "greater_than"
	OperatorLessThan           Operator = "less_than"
	OperatorGreaterThanOrEqual Operator = "greater_than_or_equal"
	OperatorLessThanOrEqual    Operator = "less_than_or_equal"
	OperatorIsTrue             Operator = "is_true"
	OperatorIsFalse            Operator = "is_false"
	OperatorIsEmpty            Operator = "is_empty"
	OperatorIsNotEmpty         Operator = "is_not_empty"
	OperatorIn                 Operator = "in"
	OperatorNotIn              Operator = "not_in"
)

// Condition is one entry of a workflow's ordered condition list. Conditions
// are folded left to right: the first entry seeds the accumulator, every
// subsequent entry combines with the accumulator using its own Logic.
type Condition struct {
	Field    string         `json:"field"    validate:"required"`
	Operator Operator       `json:"operator" validate:"required"`
	Value    string         `json:"value"`
	Logic    ConditionLogic `json:"logic,omitempty"`
}
