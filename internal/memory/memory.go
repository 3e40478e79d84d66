// Package memory implements Adeo's typed segmented memory model: every
// address is simultaneously a storage index and a (scope, type) tag,
// recoverable by pure integer division.
package memory

import (
	"fmt"
	"strconv"
)

// Type is one of Adeo's four user-visible primitive types plus the
// compiler/VM-internal ptr type used for array indirection.
type Type int

const (
	Int Type = iota
	Float
	String
	Bool
	Ptr
)

// numTypeKinds is the number of primitive+ptr type kinds (5): the number
// of consecutive pages each scope reserves to encode type from address.
const numTypeKinds = 5

func (t Type) String() string {
	switch t {
	case Int:
		return "int"
	case Float:
		return "float"
	case String:
		return "string"
	case Bool:
		return "bool"
	case Ptr:
		return "ptr"
	default:
		return "unknown"
	}
}

// TypeFromName maps a source-level type name to a Type; "ptr" is not a
// user-visible spelling and is intentionally excluded.
func TypeFromName(name string) (Type, bool) {
	switch name {
	case "int":
		return Int, true
	case "float":
		return Float, true
	case "string":
		return String, true
	case "bool":
		return Bool, true
	default:
		return 0, false
	}
}

// Scope identifies which of the three base address ranges an address falls
// in: Global, Constant, or the per-activation Function/temporal range.
type Scope int

const (
	Global Scope = iota
	Constant
	Function
)

func (s Scope) String() string {
	switch s {
	case Global:
		return "global"
	case Constant:
		return "constant"
	case Function:
		return "function"
	default:
		return "unknown"
	}
}

// Page is the per-type sub-space size. Five consecutive pages per scope
// encode the type of every address in that scope.
const Page = 1000

// scopeBase is the first address of each scope's five-page block.
func scopeBase(s Scope) int {
	return int(s) * numTypeKinds * Page
}

// Addr packs scope, type and index into a single non-negative integer: the
// address space partition is a total, injective function from address to
// (scope, type, index), and every quadruple field is uniformly "an
// address" regardless of which memory manager ultimately owns it.
func Addr(s Scope, t Type, index int) int {
	return scopeBase(s) + int(t)*Page + index
}

// ScopeOf recovers the scope from an address by pure integer division.
func ScopeOf(address int) Scope {
	return Scope(address / (numTypeKinds * Page))
}

// TypeOf recovers the type from an address by pure integer division.
func TypeOf(address int) Type {
	within := address % (numTypeKinds * Page)
	return Type(within / Page)
}

// IndexOf recovers the slot index within its (scope, type) sub-space.
func IndexOf(address int) int {
	return address % Page
}

// Cell is a polymorphic value slot. A nil Value means uninitialized.
type Cell struct {
	Value interface{}
	set   bool
}

func (c Cell) IsSet() bool { return c.set }

// typeSpace holds one type's slice of cells for one scope.
type typeSpace struct {
	cells []Cell
}

// Manager owns the five typed sub-spaces for one scope (Global, Constant,
// or one Function activation's temporal memory).
type Manager struct {
	scope  Scope
	spaces [numTypeKinds]typeSpace
}

func NewManager(scope Scope) *Manager {
	return &Manager{scope: scope}
}

// NewManagerWithResources preallocates each sub-space to the given
// resource-quintuple size, used by the VM when entering a call: ERA
// allocates exactly the footprint recorded for the callee.
func NewManagerWithResources(scope Scope, resources [5]int) *Manager {
	m := &Manager{scope: scope}
	for t := Type(0); t < numTypeKinds; t++ {
		m.spaces[t].cells = make([]Cell, resources[t])
	}
	return m
}

func (m *Manager) Scope() Scope { return m.scope }

// ErrCapacityExceeded is a fatal compile error: a sub-space would grow
// past one page.
type ErrCapacityExceeded struct {
	Type Type
}

func (e *ErrCapacityExceeded) Error() string {
	return fmt.Sprintf("maximum space for type %s was exceeded", e.Type)
}

// Reserve appends `size` uninitialized cells to the type's sub-space and
// returns the address of the first.
func (m *Manager) Reserve(t Type, size int) (int, error) {
	space := &m.spaces[t]
	if len(space.cells)+size > Page {
		return 0, &ErrCapacityExceeded{Type: t}
	}
	index := len(space.cells)
	for i := 0; i < size; i++ {
		space.cells = append(space.cells, Cell{})
	}
	return Addr(m.scope, t, index), nil
}

// typeOfValue classifies a raw Go value the way the constant pool does:
// bools (including the literal strings "true"/"false") before numerics
// before generic strings.
func typeOfValue(v interface{}) (Type, error) {
	switch val := v.(type) {
	case bool:
		return Bool, nil
	case int:
		return Int, nil
	case float64:
		return Float, nil
	case string:
		if val == "true" || val == "false" {
			return Bool, nil
		}
		return String, nil
	default:
		return 0, fmt.Errorf("value %v has no memory type", v)
	}
}

// FindOrInsert returns the address of an existing cell with an equal value,
// or appends a new one. Used for constant pooling (literals, jump targets,
// array bounds): idempotent by construction, since a second call with an
// equal value finds the first call's cell.
func (m *Manager) FindOrInsert(value interface{}) (int, error) {
	t, err := typeOfValue(value)
	if err != nil {
		return 0, err
	}
	space := &m.spaces[t]
	for i, cell := range space.cells {
		if cell.set && cell.Value == coerce(t, value) {
			return Addr(m.scope, t, i), nil
		}
	}
	addr, err := m.Reserve(t, 1)
	if err != nil {
		return 0, err
	}
	m.Set(addr, value)
	return addr, nil
}

// Get reads the cell at address. The returned bool is false if the cell
// has never been written (the uninitialized sentinel).
func (m *Manager) Get(address int) (interface{}, bool) {
	t := TypeOf(address)
	idx := IndexOf(address)
	space := &m.spaces[t]
	if idx < 0 || idx >= len(space.cells) {
		return nil, false
	}
	cell := space.cells[idx]
	return cell.Value, cell.set
}

// coerce converts a raw value to a cell's declared type: booleans accept
// "true"/"false" strings, numerics parse strings.
func coerce(t Type, value interface{}) interface{} {
	switch t {
	case Bool:
		switch v := value.(type) {
		case bool:
			return v
		case string:
			return v == "true"
		}
	case Int:
		switch v := value.(type) {
		case int:
			return v
		case float64:
			return int(v)
		case string:
			n, _ := strconv.Atoi(v)
			return n
		}
	case Float:
		switch v := value.(type) {
		case float64:
			return v
		case int:
			return float64(v)
		case string:
			f, _ := strconv.ParseFloat(v, 64)
			return f
		}
	case String:
		switch v := value.(type) {
		case string:
			return v
		default:
			return fmt.Sprintf("%v", v)
		}
	case Ptr:
		if v, ok := value.(int); ok {
			return v
		}
	}
	return value
}

// Set writes a value into the cell at address, coercing it to the cell's
// declared type. The one level of pointer auto-dereference that makes
// "writing through a pointer" a compound operation is resolved by the VM
// before it calls Set — a ptr slot's own target address is written with
// AddPtr instead.
func (m *Manager) Set(address int, value interface{}) {
	t := TypeOf(address)
	idx := IndexOf(address)
	space := &m.spaces[t]
	space.cells[idx] = Cell{Value: coerce(t, value), set: true}
}

// AddPtr writes a target address into a ptr slot directly, with no
// dereference.
func (m *Manager) AddPtr(address int, target int) {
	t := TypeOf(address)
	idx := IndexOf(address)
	m.spaces[t].cells[idx] = Cell{Value: target, set: true}
}

// Resources returns the current sub-space lengths, in (int, float,
// string, bool, ptr) order — a function's resource quintuple.
func (m *Manager) Resources() [5]int {
	var r [5]int
	for t := Type(0); t < numTypeKinds; t++ {
		r[t] = len(m.spaces[t].cells)
	}
	return r
}

// Clear truncates all sub-spaces to length zero. Used on function exit:
// the temporal page is cleared whole rather than freeing cells
// individually.
func (m *Manager) Clear() {
	for t := Type(0); t < numTypeKinds; t++ {
		m.spaces[t].cells = m.spaces[t].cells[:0]
	}
}

// Cells exposes a type's populated cells in address order, for the
// object-file codec's Global/Constants sections.
func (m *Manager) Cells(t Type) []Cell {
	return m.spaces[t].cells
}

// BaseAddr returns the first address of a type's sub-space in this
// manager's scope.
func (m *Manager) BaseAddr(t Type) int {
	return Addr(m.scope, t, 0)
}
