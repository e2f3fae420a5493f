package expression

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
	"github.com/tombee/quill/pkg/errors"
)

// allowedBinary lists the binary operators accepted in conditions.
var allowedBinary = map[string]bool{
	"==": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true,
	"&&": true, "||": true, "and": true, "or": true,
	"in": true, "contains": true, "startsWith": true, "endsWith": true, "matches": true,
	"+": true, "-": true, "*": true, "/": true, "%": true,
	"??": true,
}

// allowedUnary lists the unary operators accepted in conditions.
var allowedUnary = map[string]bool{
	"!": true, "not": true, "-": true, "+": true,
}

// Evaluator evaluates condition expressions against a variable environment.
// It caches compiled expressions for improved performance on repeated evaluations.
// An Evaluator is safe for concurrent use.
type Evaluator struct {
	cache map[string]*vm.Program
	mu    sync.RWMutex
}

// New creates a new expression evaluator.
func New() *Evaluator {
	return &Evaluator{
		cache: make(map[string]*vm.Program),
	}
}

// Evaluate substitutes placeholders in expression from env, then evaluates
// the result with env as the variable scope. An empty expression is true.
func (e *Evaluator) Evaluate(expression string, env map[string]any) (bool, error) {
	if expression == "" {
		return true, nil
	}

	substituted, err := Substitute(expression, env)
	if err != nil {
		return false, err
	}

	// Inlined placeholder values make the source unique per call, so only
	// placeholder-free expressions are cached.
	program, err := e.compile(substituted, substituted == expression)
	if err != nil {
		return false, err
	}

	if env == nil {
		env = map[string]any{}
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return false, &errors.ValidationError{
			Field:      "condition",
			Message:    fmt.Sprintf("expression evaluation failed: %s", err.Error()),
			Suggestion: "verify that the variables used in the condition exist and have comparable types",
		}
	}

	b, ok := result.(bool)
	if !ok {
		return false, &errors.ValidationError{
			Field:   "condition",
			Message: fmt.Sprintf("expression must return boolean, got %T (%v)", result, result),
		}
	}
	return b, nil
}

// Check reports whether expression is syntactically valid and stays inside
// the allowed grammar. Placeholders are treated as opaque values.
func (e *Evaluator) Check(expression string) error {
	if expression == "" {
		return nil
	}
	_, err := e.compile(placeholderPattern.ReplaceAllString(expression, "placeholder"), false)
	return err
}

// compile parses, checks and compiles an expression. The program is cached
// when cache is set.
func (e *Evaluator) compile(expression string, cache bool) (*vm.Program, error) {
	e.mu.RLock()
	if prog, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return prog, nil
	}
	e.mu.RUnlock()

	tree, err := parser.Parse(expression)
	if err != nil {
		return nil, &errors.ValidationError{
			Field:      "condition",
			Message:    fmt.Sprintf("failed to parse expression: %s", err.Error()),
			Suggestion: "check expression syntax",
		}
	}

	guard := &grammarGuard{}
	ast.Walk(&tree.Node, guard)
	if guard.err != nil {
		return nil, &errors.ValidationError{
			Field:      "condition",
			Message:    guard.err.Error(),
			Suggestion: "conditions may only compare variables and literals with boolean operators",
		}
	}

	prog, err := expr.Compile(expression,
		expr.AllowUndefinedVariables(),
		expr.DisableAllBuiltins(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, &errors.ValidationError{
			Field:      "condition",
			Message:    fmt.Sprintf("failed to compile expression: %s", err.Error()),
			Suggestion: "check expression syntax and ensure it yields a boolean",
		}
	}

	if cache {
		e.mu.Lock()
		e.cache[expression] = prog
		e.mu.Unlock()
	}

	return prog, nil
}

// ClearCache clears the expression cache.
func (e *Evaluator) ClearCache() {
	e.mu.Lock()
	e.cache = make(map[string]*vm.Program)
	e.mu.Unlock()
}

// CacheSize returns the number of cached expressions.
func (e *Evaluator) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}

// grammarGuard walks a syntax tree and records the first node outside the
// condition grammar.
type grammarGuard struct {
	err error
}

func (g *grammarGuard) Visit(node *ast.Node) {
	if g.err != nil {
		return
	}
	switch n := (*node).(type) {
	case *ast.NilNode, *ast.IdentifierNode, *ast.IntegerNode, *ast.FloatNode,
		*ast.BoolNode, *ast.StringNode, *ast.ConstantNode, *ast.MemberNode,
		*ast.ChainNode, *ast.ArrayNode, *ast.ConditionalNode:
	case *ast.UnaryNode:
		if !allowedUnary[n.Operator] {
			g.err = fmt.Errorf("operator %q is not allowed in conditions", n.Operator)
		}
	case *ast.BinaryNode:
		if !allowedBinary[n.Operator] {
			g.err = fmt.Errorf("operator %q is not allowed in conditions", n.Operator)
		}
	case *ast.CallNode, *ast.BuiltinNode:
		g.err = fmt.Errorf("function calls are not allowed in conditions")
	default:
		g.err = fmt.Errorf("unsupported construct in condition: %T", n)
	}
}
