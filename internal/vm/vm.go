// Package vm implements the Adeo virtual machine: a straight-line
// fetch/decode/execute loop over a flat quadruple stream, with no
// intermediate bytecode of its own.
package vm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"adeo/internal/directory"
	"adeo/internal/errors"
	"adeo/internal/memory"
	"adeo/internal/objectfile"
	"adeo/internal/quad"
)

// frame is one saved activation: the instruction pointer to resume at
// and the caller's own function memory, restored on ENDFUNC/ENDPROG.
type frame struct {
	ip  int
	mem *memory.Manager
}

// VM holds all of the interpreter's mutable state. Global and constant
// memory persist for the whole run; functionMem is swapped out on every
// GOSUB and restored on every ENDFUNC/ENDPROG, exactly like a real call
// stack, but sized per call by the function's own resource quintuple
// rather than a uniform frame.
type VM struct {
	global      *memory.Manager
	constants   *memory.Manager
	functionMem *memory.Manager // the currently executing activation's temporal memory
	pendingMem  *memory.Manager // allocated by ERA, installed by GOSUB
	functions   *directory.DirectoryVM
	quads       *quad.List

	callStack   []frame
	returnValue interface{}

	out *bufio.Writer
	in  *bufio.Reader
}

// New builds a VM ready to run img, printing to stdout and reading from
// stdin.
func New(img *objectfile.Image) *VM {
	return NewWithIO(img, os.Stdout, os.Stdin)
}

// NewWithIO builds a VM with explicit I/O streams, for tests that need
// to capture output or script input.
func NewWithIO(img *objectfile.Image, out io.Writer, in io.Reader) *VM {
	return &VM{
		global:      img.Global,
		constants:   img.Constants,
		functionMem: memory.NewManager(memory.Function),
		functions:   img.Functions,
		quads:       img.Quads,
		out:         bufio.NewWriter(out),
		in:          bufio.NewReader(in),
	}
}

// managerFor routes an address to the manager that owns its scope.
func (vm *VM) managerFor(addr int) *memory.Manager {
	switch memory.ScopeOf(addr) {
	case memory.Global:
		return vm.global
	case memory.Constant:
		return vm.constants
	default:
		return vm.functionMem
	}
}

// field is one resolved (manager, address) pair, after the VM's one
// level of automatic pointer dereference has been applied.
type field struct {
	mgr  *memory.Manager
	addr int
	ok   bool // false if the quadruple left this field unused (NoAddress)
}

// resolve looks up addr's owning manager and, unless skipDeref is set
// (used for the PTR operator's own destination, which must receive the
// pointer write itself rather than chase through it), follows one level
// of pointer indirection: if the address's own declared type is Ptr,
// the cell's stored value is itself an address to resolve against.
func (vm *VM) resolve(addr int, skipDeref bool) (field, *errors.RuntimeError) {
	if addr == quad.NoAddress {
		return field{}, nil
	}
	mgr := vm.managerFor(addr)
	if !skipDeref && memory.TypeOf(addr) == memory.Ptr {
		target, ok := mgr.Get(addr)
		if !ok {
			return field{}, uninitialized(addr)
		}
		t := target.(int)
		return field{mgr: vm.managerFor(t), addr: t, ok: true}, nil
	}
	return field{mgr: mgr, addr: addr, ok: true}, nil
}

func uninitialized(addr int) *errors.RuntimeError {
	return errors.NewRuntimeError(errors.VariableNotInitialized,
		fmt.Sprintf("the variable at address %d was not initialized", addr))
}

func (f field) get() (interface{}, *errors.RuntimeError) {
	v, ok := f.mgr.Get(f.addr)
	if !ok {
		return nil, uninitialized(f.addr)
	}
	return v, nil
}

// Run executes quadruples from instruction 0 until ENDPROG unwinds the
// call stack completely, returning the last value assigned anywhere in
// the program (Adeo has no explicit program-level return; callers that
// want a result, e.g. tests, get the final assignment).
func (vm *VM) Run() (interface{}, *errors.RuntimeError) {
	defer vm.out.Flush()
	ip := 0
	for {
		if ip < 0 || ip >= vm.quads.Len() {
			return nil, errors.NewRuntimeError(errors.UnsupportedOperation, "instruction pointer ran off the end of the program")
		}
		q := vm.quads.Get(ip)
		nextIP := ip + 1

		switch q.Operator {
		case quad.OpAssign:
			val, rerr := vm.readSimple(q.Left)
			if rerr != nil {
				return nil, rerr
			}
			dst, rerr := vm.resolve(q.Result, false)
			if rerr != nil {
				return nil, rerr
			}
			dst.mgr.Set(dst.addr, val)
			vm.returnValue = val

		case quad.OpAdd, quad.OpSub, quad.OpMul, quad.OpDiv:
			lv, rv, rerr := vm.readPair(q.Left, q.Right)
			if rerr != nil {
				return nil, rerr
			}
			result, rerr := arith(q.Operator, lv, rv)
			if rerr != nil {
				return nil, rerr
			}
			dst, rerr := vm.resolve(q.Result, false)
			if rerr != nil {
				return nil, rerr
			}
			dst.mgr.Set(dst.addr, result)

		case quad.OpLt, quad.OpLe, quad.OpGt, quad.OpGe, quad.OpEq, quad.OpNe:
			lv, rv, rerr := vm.readPair(q.Left, q.Right)
			if rerr != nil {
				return nil, rerr
			}
			result, rerr := compare(q.Operator, lv, rv)
			if rerr != nil {
				return nil, rerr
			}
			dst, rerr := vm.resolve(q.Result, false)
			if rerr != nil {
				return nil, rerr
			}
			dst.mgr.Set(dst.addr, result)

		case quad.OpAnd, quad.OpOr:
			lv, rv, rerr := vm.readPair(q.Left, q.Right)
			if rerr != nil {
				return nil, rerr
			}
			lb, lok := lv.(bool)
			rb, rok := rv.(bool)
			if !lok || !rok {
				return nil, errors.NewRuntimeError(errors.UnsupportedOperation, "logical operator applied to a non-boolean value")
			}
			var result bool
			if q.Operator == quad.OpAnd {
				result = lb && rb
			} else {
				result = lb || rb
			}
			dst, rerr := vm.resolve(q.Result, false)
			if rerr != nil {
				return nil, rerr
			}
			dst.mgr.Set(dst.addr, result)

		case quad.OpPrint:
			val, rerr := vm.readSimple(q.Result)
			if rerr != nil {
				return nil, rerr
			}
			fmt.Fprint(vm.out, unescapeForPrint(fmt.Sprintf("%v", val)))

		case quad.OpRead:
			dst, rerr := vm.resolve(q.Result, false)
			if rerr != nil {
				return nil, rerr
			}
			line, err := vm.in.ReadString('\n')
			if err != nil && line == "" {
				return nil, errors.NewRuntimeError(errors.InputTypeMismatch, "no input available to read")
			}
			value, rerr := parseReadValue(memory.TypeOf(dst.addr), strings.TrimRight(line, "\r\n"))
			if rerr != nil {
				return nil, rerr
			}
			dst.mgr.Set(dst.addr, value)

		case quad.OpGoto:
			target, rerr := vm.readSimple(q.Result)
			if rerr != nil {
				return nil, rerr
			}
			nextIP = target.(int)

		case quad.OpGotoF:
			cond, rerr := vm.readSimple(q.Left)
			if rerr != nil {
				return nil, rerr
			}
			target, rerr := vm.readSimple(q.Result)
			if rerr != nil {
				return nil, rerr
			}
			if !cond.(bool) {
				nextIP = target.(int)
			}

		case quad.OpVer:
			idx, rerr := vm.readSimple(q.Left)
			if rerr != nil {
				return nil, rerr
			}
			lower, rerr := vm.readSimple(q.Right)
			if rerr != nil {
				return nil, rerr
			}
			upper, rerr := vm.readSimple(q.Result)
			if rerr != nil {
				return nil, rerr
			}
			i, lo, hi := idx.(int), lower.(int), upper.(int)
			if i < lo || i >= hi {
				return nil, errors.NewRuntimeError(errors.ArrayIndexOutOfBounds,
					fmt.Sprintf("the index %d is outside of the valid range", i))
			}

		case quad.OpPtr:
			target, rerr := vm.readSimple(q.Left)
			if rerr != nil {
				return nil, rerr
			}
			dst, rerr := vm.resolve(q.Result, true)
			if rerr != nil {
				return nil, rerr
			}
			dst.mgr.AddPtr(dst.addr, target.(int))

		case quad.OpEra:
			name, rerr := vm.functionName(q.Result)
			if rerr != nil {
				return nil, rerr
			}
			fn, ok := vm.functions.Get(name)
			if !ok {
				return nil, errors.NewRuntimeError(errors.UndeclaredIdentifier, fmt.Sprintf("the function %q does not exist", name))
			}
			vm.pendingMem = memory.NewManagerWithResources(memory.Function, fn.Resources)

		case quad.OpParam:
			val, rerr := vm.readSimple(q.Left)
			if rerr != nil {
				return nil, rerr
			}
			if vm.pendingMem == nil {
				return nil, errors.NewRuntimeError(errors.UnsupportedOperation, "parameter passed with no pending activation")
			}
			vm.pendingMem.Set(q.Result, val)

		case quad.OpGosub:
			name, rerr := vm.functionName(q.Result)
			if rerr != nil {
				return nil, rerr
			}
			fn, ok := vm.functions.Get(name)
			if !ok {
				return nil, errors.NewRuntimeError(errors.UndeclaredIdentifier, fmt.Sprintf("the function %q does not exist", name))
			}
			if vm.pendingMem == nil {
				return nil, errors.NewRuntimeError(errors.UnsupportedOperation, fmt.Sprintf("call to %q with no pending activation", name))
			}
			vm.callStack = append(vm.callStack, frame{ip: nextIP, mem: vm.functionMem})
			vm.functionMem = vm.pendingMem
			vm.pendingMem = nil
			nextIP = fn.InitialQuad

		case quad.OpEndFunc, quad.OpEndProg:
			vm.functionMem.Clear()
			if len(vm.callStack) == 0 {
				return nil, errors.NewRuntimeError(errors.UnsupportedOperation, "return from an empty call stack")
			}
			top := vm.callStack[len(vm.callStack)-1]
			vm.callStack = vm.callStack[:len(vm.callStack)-1]
			vm.functionMem = top.mem
			nextIP = top.ip
			if len(vm.callStack) == 0 {
				return vm.returnValue, nil
			}

		default:
			return nil, errors.NewRuntimeError(errors.UnsupportedOperation, fmt.Sprintf("unknown operator %q", q.Operator))
		}

		ip = nextIP
	}
}

// readSimple resolves and reads one quadruple field, applying the
// pointer auto-dereference.
func (vm *VM) readSimple(addr int) (interface{}, *errors.RuntimeError) {
	f, rerr := vm.resolve(addr, false)
	if rerr != nil {
		return nil, rerr
	}
	return f.get()
}

func (vm *VM) readPair(left, right int) (interface{}, interface{}, *errors.RuntimeError) {
	lv, rerr := vm.readSimple(left)
	if rerr != nil {
		return nil, nil, rerr
	}
	rv, rerr := vm.readSimple(right)
	if rerr != nil {
		return nil, nil, rerr
	}
	return lv, rv, nil
}

// functionName reads a call target's name out of global memory, where
// the compiler always constant-pools function names regardless of
// which scope the calling quadruple's other fields live in.
func (vm *VM) functionName(addr int) (string, *errors.RuntimeError) {
	v, ok := vm.global.Get(addr)
	if !ok {
		return "", uninitialized(addr)
	}
	name, ok := v.(string)
	if !ok {
		return "", errors.NewRuntimeError(errors.UnsupportedOperation, "call target is not a function name")
	}
	return name, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), false
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// arith evaluates +, -, *, / over numeric operands. Division always
// produces a float64, matching true division; the destination cell's
// own coercion truncates it back to int if the result type is int.
func arith(op quad.Op, lv, rv interface{}) (interface{}, *errors.RuntimeError) {
	if op == quad.OpAdd {
		if ls, ok := lv.(string); ok {
			if rs, ok := rv.(string); ok {
				return ls + rs, nil
			}
		}
	}

	lf, lIsFloat := toFloat(lv)
	rf, rIsFloat := toFloat(rv)

	if op == quad.OpDiv {
		if rf == 0 {
			return nil, errors.NewRuntimeError(errors.ArithmeticException, "cannot divide a number by zero")
		}
		return lf / rf, nil
	}

	if lIsFloat || rIsFloat {
		switch op {
		case quad.OpAdd:
			return lf + rf, nil
		case quad.OpSub:
			return lf - rf, nil
		case quad.OpMul:
			return lf * rf, nil
		}
	}
	li, lok := lv.(int)
	ri, rok := rv.(int)
	if !lok || !rok {
		return nil, errors.NewRuntimeError(errors.UnsupportedOperation, "arithmetic operator applied to a non-numeric value")
	}
	switch op {
	case quad.OpAdd:
		return li + ri, nil
	case quad.OpSub:
		return li - ri, nil
	case quad.OpMul:
		return li * ri, nil
	}
	return nil, errors.NewRuntimeError(errors.UnsupportedOperation, fmt.Sprintf("unknown arithmetic operator %q", op))
}

// compare evaluates the relational and equality operators. Numeric
// operands are widened to float64 before comparing, so int/float
// comparisons behave exactly like int/float arithmetic.
func compare(op quad.Op, lv, rv interface{}) (bool, *errors.RuntimeError) {
	if _, lok := toNumeric(lv); lok {
		if _, rok := toNumeric(rv); rok {
			lf, _ := toFloat(lv)
			rf, _ := toFloat(rv)
			return numericCompare(op, lf, rf)
		}
	}
	if ls, ok := lv.(string); ok {
		if rs, ok := rv.(string); ok {
			return stringCompare(op, ls, rs)
		}
	}
	if lb, ok := lv.(bool); ok {
		if rb, ok := rv.(bool); ok {
			switch op {
			case quad.OpEq:
				return lb == rb, nil
			case quad.OpNe:
				return lb != rb, nil
			}
		}
	}
	return false, errors.NewRuntimeError(errors.UnsupportedOperation, "operands do not support this comparison")
}

func toNumeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func numericCompare(op quad.Op, lf, rf float64) (bool, *errors.RuntimeError) {
	switch op {
	case quad.OpLt:
		return lf < rf, nil
	case quad.OpLe:
		return lf <= rf, nil
	case quad.OpGt:
		return lf > rf, nil
	case quad.OpGe:
		return lf >= rf, nil
	case quad.OpEq:
		return lf == rf, nil
	case quad.OpNe:
		return lf != rf, nil
	}
	return false, errors.NewRuntimeError(errors.UnsupportedOperation, fmt.Sprintf("unknown comparison operator %q", op))
}

func stringCompare(op quad.Op, ls, rs string) (bool, *errors.RuntimeError) {
	switch op {
	case quad.OpLt:
		return ls < rs, nil
	case quad.OpLe:
		return ls <= rs, nil
	case quad.OpGt:
		return ls > rs, nil
	case quad.OpGe:
		return ls >= rs, nil
	case quad.OpEq:
		return ls == rs, nil
	case quad.OpNe:
		return ls != rs, nil
	}
	return false, errors.NewRuntimeError(errors.UnsupportedOperation, fmt.Sprintf("unknown comparison operator %q", op))
}

// parseReadValue converts one line of input text to the destination
// cell's declared type, the way Manager.Set's own silent coercion
// cannot: a malformed read must surface INPUT_TYPE_MISMATCH rather than
// silently storing a zero value.
func parseReadValue(t memory.Type, text string) (interface{}, *errors.RuntimeError) {
	switch t {
	case memory.Int:
		n, err := strconv.Atoi(text)
		if err != nil {
			return nil, errors.NewRuntimeError(errors.InputTypeMismatch, "the input cannot be stored in the variable because it is not of the same type")
		}
		return n, nil
	case memory.Float:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, errors.NewRuntimeError(errors.InputTypeMismatch, "the input cannot be stored in the variable because it is not of the same type")
		}
		return f, nil
	case memory.Bool:
		switch text {
		case "true":
			return true, nil
		case "false":
			return false, nil
		default:
			return nil, errors.NewRuntimeError(errors.InputTypeMismatch, "the input cannot be stored in the variable because it is not of the same type")
		}
	default:
		return text, nil
	}
}

// unescapeForPrint decodes the handful of backslash escapes Adeo string
// literals carry unprocessed from the lexer through to print time.
func unescapeForPrint(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'n':
				sb.WriteByte('\n')
				i++
				continue
			case 't':
				sb.WriteByte('\t')
				i++
				continue
			case '"':
				sb.WriteByte('"')
				i++
				continue
			case '\\':
				sb.WriteByte('\\')
				i++
				continue
			}
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
