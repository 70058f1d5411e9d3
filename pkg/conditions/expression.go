package conditions

import (
	"sync"

	"github.com/dukex/flowcore/pkg/models"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

var defaultExpressions = newExpressionCache()

// expressionCache compiles expr-lang programs once and reuses them across
// goroutines.
type expressionCache struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

func newExpressionCache() *expressionCache {
	return &expressionCache{cache: make(map[string]*vm.Program)}
}

func (e *expressionCache) Compile(expression string) error {
	_, err := e.program(expression)

	return err
}

func (e *expressionCache) Evaluate(expression string, data map[string]any) (bool, error) {
	prg, err := e.program(expression)
	if err != nil {
		return false, err
	}

	env := data
	if env == nil {
		env = map[string]any{}
	}

	out, err := vm.Run(prg, env)
	if err != nil {
		// Missing fields surface as runtime errors; treat them like an unresolved path.
		return false, nil //nolint:nilerr
	}

	result, ok := out.(bool)
	if !ok {
		return false, models.NewConfigurationError("evaluate expression", "expression %q did not produce a boolean", expression)
	}

	return result, nil
}

func (e *expressionCache) program(expression string) (*vm.Program, error) {
	e.mu.RLock()
	prg, ok := e.cache[expression]
	e.mu.RUnlock()

	if ok {
		return prg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if prg, ok := e.cache[expression]; ok {
		return prg, nil
	}

	prg, err := expr.Compile(expression, expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, models.NewConfigurationError("compile expression", "invalid expression %q: %v", expression, err)
	}

	e.cache[expression] = prg

	return prg, nil
}
