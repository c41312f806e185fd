// Package guard bounds how long an agent run may go on.
package guard

import "fmt"

// Policy defines the limits of one agent run.
type Policy struct {
	// MaxIterations caps completion requests per run. Zero means unbounded.
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`
}

// DefaultPolicy leaves the run unbounded.
var DefaultPolicy = Policy{}

// Violation represents a specific breach of policy.
type Violation struct {
	Rule    string
	Message string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("guard violation (%s): %s", v.Rule, v.Message)
}

// Guard enforces the policy.
type Guard struct {
	policy Policy
}

func New(p Policy) *Guard {
	return &Guard{policy: p}
}

// Policy returns the guard's current policy configuration.
func (g *Guard) Policy() Policy {
	return g.policy
}

// CheckBudget reports a violation when the next request, numbered
// iteration (1-based), would exceed the budget.
func (g *Guard) CheckBudget(iteration int) *Violation {
	if g == nil || g.policy.MaxIterations <= 0 {
		return nil
	}
	if iteration > g.policy.MaxIterations {
		return &Violation{
			Rule:    "max_iterations",
			Message: fmt.Sprintf("iteration limit of %d reached", g.policy.MaxIterations),
		}
	}
	return nil
}
