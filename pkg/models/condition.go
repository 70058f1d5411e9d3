package models

// Operator compares a resolved field against a literal.
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorNotEquals   Operator = "notEquals"
	OperatorContains    Operator = "contains"
	OperatorGreaterThan Operator = "greaterThan"
	OperatorLessThan    Operator = "lessThan"
)

// Condition is evaluated against an execution context. Field is a dotted
// path. When Expression is set the condition is an expr-lang boolean
// expression and Field, Operator and Value are ignored.
type Condition struct {
	Field      string   `json:"field,omitempty"      yaml:"field,omitempty"`
	Operator   Operator `json:"operator,omitempty"   yaml:"operator,omitempty"`
	Value      any      `json:"value,omitempty"      yaml:"value,omitempty"`
	Expression string   `json:"expression,omitempty" yaml:"expression,omitempty"`
}
