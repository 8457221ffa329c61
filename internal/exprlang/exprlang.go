// Package exprlang evaluates the PRINT concatenation grammar — quoted
// string literals and bare variable names joined by "+" — and
// pre-validates user-submitted instruction text, using
// go.starlark.net/starlark as the embedded expression engine rather
// than a hand-rolled tokenizer/parser.
package exprlang

import (
	"fmt"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Evaluate runs a PRINT concatenation expression, binding each entry
// of vars as its decimal string representation so "+" performs pure
// string concatenation under Starlark's semantics — matching the
// grammar's "substituting variable values as decimal strings" rule
// without needing Starlark's own int/str coercion.
func Evaluate(expr string, vars map[string]uint16) (string, error) {
	thread := &starlark.Thread{Name: "print"}
	env := make(starlark.StringDict, len(vars))
	for name, value := range vars {
		env[name] = starlark.String(fmt.Sprintf("%d", value))
	}

	val, err := starlark.Eval(thread, "print-expr", expr, env)
	if err != nil {
		return "", fmt.Errorf("exprlang: evaluate %q: %w", expr, err)
	}

	s, ok := starlark.AsString(val)
	if !ok {
		return "", fmt.Errorf("exprlang: expression %q did not evaluate to a string", expr)
	}
	return s, nil
}

// ValidatePrintExpr checks that expr parses as a syntactically valid
// Starlark expression without evaluating it — variables are not bound
// yet when screen -c validates a program, so this only catches
// malformed grammar ("foo +", unbalanced quotes), not undefined names.
func ValidatePrintExpr(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return fmt.Errorf("exprlang: empty PRINT expression")
	}
	if _, err := syntax.ParseExpr("print-expr", expr, 0); err != nil {
		return fmt.Errorf("exprlang: invalid PRINT expression %q: %w", expr, err)
	}
	return nil
}

// opcodes is the set of recognized instruction mnemonics. It includes
// FOR, which internal/kernel nonetheless rejects in screen -c program
// text.
var opcodes = map[string]bool{
	"PRINT": true, "DECLARE": true, "ADD": true, "SUBTRACT": true,
	"READ": true, "WRITE": true, "SLEEP": true, "FOR": true,
}

// ValidateOpcode reports whether name is a recognized ISA mnemonic,
// used by internal/kernel when parsing screen -c text ahead of
// building the PCB's Instruction list.
func ValidateOpcode(name string) bool {
	return opcodes[strings.ToUpper(name)]
}
