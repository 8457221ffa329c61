// Package process implements the PCB/Instruction data model: the tagged
// instruction variant, loop flattening, the symbol-table/byte-memory
// protocol, and the live/finished process table.
//
// Instruction mirrors the original emulator's single flat struct with
// arg1/arg2/arg3/val1/val2/isLiteral fields rather than a Go interface
// hierarchy, per the design note that polymorphic dispatch here is a
// plain switch over a tag, not a class hierarchy.
package process

// Kind tags the variant an Instruction holds.
type Kind int

const (
	Print Kind = iota
	Declare
	Add
	Sub
	Sleep
	For
	ReadMem
	WriteMem
)

func (k Kind) String() string {
	switch k {
	case Print:
		return "PRINT"
	case Declare:
		return "DECLARE"
	case Add:
		return "ADD"
	case Sub:
		return "SUBTRACT"
	case Sleep:
		return "SLEEP"
	case For:
		return "FOR"
	case ReadMem:
		return "READ"
	case WriteMem:
		return "WRITE"
	default:
		return "UNKNOWN"
	}
}

// Instruction is a tagged variant over the eight ISA opcodes. Only the
// fields relevant to Kind are meaningful; this mirrors original_source's
// process.h Instruction struct (arg1..arg3, val1/val2, isLiteral1/2,
// instrSet) translated into Go-idiomatic names.
type Instruction struct {
	Kind Kind

	// Print: Arg1 holds either the literal text for a random-generated
	// process ("Hello world from <name>!" [+ " Value from: " + var]) or
	// the raw concatenation expression text for a user-defined process,
	// evaluated by internal/exprlang at execution time.
	Arg1 string

	// Declare: Arg1 = variable name, Val1 = value.
	// Add/Sub: Arg1 = destination variable name (always a variable).
	//   Operand 1 is Arg2 (variable name) unless IsLiteral1, in which case
	//   it is Val1. Operand 2 is Arg3/Val2/IsLiteral2 symmetrically.
	// ReadMem: Arg1 = destination variable name, Arg2 = address expression
	//   ("0x..." hex or decimal).
	// WriteMem: Arg1 = address expression, Arg2 = source variable name.
	Arg2 string
	Arg3 string

	Val1 uint16
	Val2 uint16

	IsLiteral1 bool
	IsLiteral2 bool

	// For: Body holds the loop body, Val1 holds the iteration count.
	Body []Instruction
}

// Operand1 and Operand2 resolve operand 1 or 2 of an Add/Sub
// instruction: the literal Val1/Val2 when IsLiteral1/IsLiteral2 is set,
// otherwise the variable named by Arg2/Arg3 read through read. The
// literal/variable split is recorded on the instruction itself, so
// these helpers are the same regardless of storage path.
func (ins Instruction) Operand1(read func(name string) uint16) uint16 {
	if ins.IsLiteral1 {
		return ins.Val1
	}
	return read(ins.Arg2)
}

func (ins Instruction) Operand2(read func(name string) uint16) uint16 {
	if ins.IsLiteral2 {
		return ins.Val2
	}
	return read(ins.Arg3)
}
