package rules

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Condition is a boolean expr expression over Env, compiled once at
// profile load. Profiles use conditions as extra production prerequisites
// and upgrade gates.
type Condition struct {
	Src     string
	program *vm.Program
}

// Compile type-checks src against Env. An empty source compiles to a
// condition that always holds.
func Compile(src string) (*Condition, error) {
	c := &Condition{Src: src}
	if src == "" {
		return c, nil
	}
	prog, err := expr.Compile(src, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile condition %q: %w", src, err)
	}
	c.program = prog
	return c, nil
}

// Eval runs the condition. A nil condition holds.
func (c *Condition) Eval(env Env) (bool, error) {
	if c == nil || c.program == nil {
		return true, nil
	}
	out, err := vm.Run(c.program, env)
	if err != nil {
		return false, fmt.Errorf("eval condition %q: %w", c.Src, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

// Score is a numeric expr expression over Env, used to rank factions.
type Score struct {
	Src     string
	program *vm.Program
}

// DefaultCriterion ranks a faction by the sum of its resource balances.
const DefaultCriterion = "ResourceSum()"

// CompileScore type-checks src against Env; an empty source falls back to
// DefaultCriterion.
func CompileScore(src string) (*Score, error) {
	if src == "" {
		src = DefaultCriterion
	}
	prog, err := expr.Compile(src, expr.Env(Env{}), expr.AsFloat64())
	if err != nil {
		return nil, fmt.Errorf("compile score %q: %w", src, err)
	}
	return &Score{Src: src, program: prog}, nil
}

func (s *Score) Eval(env Env) (float64, error) {
	out, err := vm.Run(s.program, env)
	if err != nil {
		return 0, fmt.Errorf("eval score %q: %w", s.Src, err)
	}
	v, _ := out.(float64)
	return v, nil
}
