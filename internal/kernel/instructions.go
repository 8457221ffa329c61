package kernel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/csopesy-go/emuos/internal/exprlang"
	"github.com/csopesy-go/emuos/internal/process"
)

const (
	minScreenCInstructions = 1
	maxScreenCInstructions = 50
)

// parseInstructions parses a screen -c program's semicolon-separated
// statement text into a typed Instruction list. Recognized statements:
// PRINT <expr> | DECLARE <var> <u16> | ADD|SUBTRACT <dst> <a> <b> |
// READ <var> <addr> | WRITE <addr> <var> | SLEEP <u8>, 1-50 statements
// total. Every failure surfaces wrapped in ErrInvalidArgument.
func parseInstructions(text string) ([]process.Instruction, error) {
	var instrs []process.Instruction
	for _, raw := range strings.Split(text, ";") {
		stmt := strings.TrimSpace(raw)
		if stmt == "" {
			continue
		}
		ins, err := parseStatement(stmt)
		if err != nil {
			return nil, err
		}
		instrs = append(instrs, ins)
	}
	if len(instrs) < minScreenCInstructions || len(instrs) > maxScreenCInstructions {
		return nil, fmt.Errorf("%w: instruction count must be in [%d, %d], got %d", ErrInvalidArgument, minScreenCInstructions, maxScreenCInstructions, len(instrs))
	}
	return instrs, nil
}

func parseStatement(stmt string) (process.Instruction, error) {
	tokens := strings.Fields(stmt)
	if len(tokens) == 0 {
		return process.Instruction{}, fmt.Errorf("%w: empty statement", ErrInvalidArgument)
	}
	op := strings.ToUpper(tokens[0])
	if !exprlang.ValidateOpcode(op) || op == "FOR" {
		return process.Instruction{}, fmt.Errorf("%w: unrecognized instruction %q", ErrInvalidArgument, tokens[0])
	}

	switch op {
	case "PRINT":
		expr := strings.TrimSpace(strings.TrimPrefix(stmt, tokens[0]))
		if err := exprlang.ValidatePrintExpr(expr); err != nil {
			return process.Instruction{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		return process.Instruction{Kind: process.Print, Arg1: expr}, nil

	case "DECLARE":
		if len(tokens) != 3 {
			return process.Instruction{}, fmt.Errorf("%w: usage: DECLARE <var> <u16>", ErrInvalidArgument)
		}
		v, err := parseU16(tokens[2])
		if err != nil {
			return process.Instruction{}, err
		}
		return process.Instruction{Kind: process.Declare, Arg1: tokens[1], Val1: v}, nil

	case "ADD", "SUBTRACT":
		if len(tokens) != 4 {
			return process.Instruction{}, fmt.Errorf("%w: usage: %s <dst> <a> <b>", ErrInvalidArgument, op)
		}
		ins := process.Instruction{Arg1: tokens[1]}
		if op == "ADD" {
			ins.Kind = process.Add
		} else {
			ins.Kind = process.Sub
		}
		// Both operands are always variable references here, even when
		// the token looks like a decimal literal; an undeclared name
		// reads back as 0 rather than being treated as a literal.
		ins.Arg2 = tokens[2]
		ins.Arg3 = tokens[3]
		return ins, nil

	case "READ":
		if len(tokens) != 3 {
			return process.Instruction{}, fmt.Errorf("%w: usage: READ <var> <addr>", ErrInvalidArgument)
		}
		return process.Instruction{Kind: process.ReadMem, Arg1: tokens[1], Arg2: tokens[2]}, nil

	case "WRITE":
		if len(tokens) != 3 {
			return process.Instruction{}, fmt.Errorf("%w: usage: WRITE <addr> <var>", ErrInvalidArgument)
		}
		return process.Instruction{Kind: process.WriteMem, Arg1: tokens[1], Arg2: tokens[2]}, nil

	case "SLEEP":
		if len(tokens) != 2 {
			return process.Instruction{}, fmt.Errorf("%w: usage: SLEEP <u8>", ErrInvalidArgument)
		}
		v, err := strconv.ParseUint(tokens[1], 10, 8)
		if err != nil {
			return process.Instruction{}, fmt.Errorf("%w: SLEEP value must be a u8: %v", ErrInvalidArgument, err)
		}
		return process.Instruction{Kind: process.Sleep, Val1: uint16(v)}, nil

	default:
		return process.Instruction{}, fmt.Errorf("%w: unhandled opcode %q", ErrInvalidArgument, op)
	}
}

func parseU16(tok string) (uint16, error) {
	n, err := strconv.ParseUint(tok, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: expected a u16, got %q: %v", ErrInvalidArgument, tok, err)
	}
	return uint16(n), nil
}
