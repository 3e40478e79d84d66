// Package context implements Adeo's lexical scope stack: a LIFO of
// Contexts resolved top-to-bottom, each tied to the memory manager that
// owns its variables' addresses.
package context

import (
	"adeo/internal/memory"
	"adeo/internal/symtab"
)

// Kind is the scope kind of one Context frame.
type Kind int

const (
	KindGlobal Kind = iota
	KindFunction
	KindLocal
	KindLoop
	KindClass
)

// Context is one lexical scope frame: a scope kind, the memory manager
// that owns its variables' addresses, and the variable table itself.
type Context struct {
	Kind   Kind
	Memory *memory.Manager
	Table  *symtab.Table
}

func New(kind Kind, mem *memory.Manager) *Context {
	return &Context{Kind: kind, Memory: mem, Table: symtab.NewTable()}
}

// Declare adds a variable to this context: it reserves space in the
// context's own memory manager (global/class contexts own global
// addresses, function/local/loop contexts own temporal addresses) and
// registers the variable in the context's table.
func (c *Context) Declare(name string, t memory.Type, array *symtab.ArrayDescriptor) (*symtab.Variable, error) {
	size := 1
	if array != nil {
		size = array.Size
	}
	addr, err := c.Memory.Reserve(t, size)
	if err != nil {
		return nil, err
	}
	v := &symtab.Variable{Name: name, Type: t, Address: addr, Array: array}
	if err := c.Table.Add(v); err != nil {
		return nil, err
	}
	return v, nil
}

// DeclareClassInstance registers a class-typed variable. It reserves no
// memory: the caller declares each of the instance's flattened
// "instance.attr" entries separately with Declare, which gives every
// instance its own attribute cells, so this only adds the bookkeeping
// entry for the instance name itself to the table.
func (c *Context) DeclareClassInstance(name, className string, addr int) (*symtab.Variable, error) {
	v := &symtab.Variable{Name: name, Address: addr, Class: className}
	if err := c.Table.Add(v); err != nil {
		return nil, err
	}
	return v, nil
}

func (c *Context) Exists(name string) bool { return c.Table.Exists(name) }

func (c *Context) Get(name string) (*symtab.Variable, bool) { return c.Table.Get(name) }

// Stack is a LIFO of Contexts; resolution walks top to bottom and the
// first hit wins.
type Stack struct {
	frames []*Context
}

func NewStack() *Stack { return &Stack{} }

func (s *Stack) Push(c *Context) { s.frames = append(s.frames, c) }

func (s *Stack) Pop() *Context {
	n := len(s.frames)
	c := s.frames[n-1]
	s.frames = s.frames[:n-1]
	return c
}

func (s *Stack) Top() *Context {
	return s.frames[len(s.frames)-1]
}

// CheckExists reports whether name is declared in any frame.
func (s *Stack) CheckExists(name string) bool {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].Exists(name) {
			return true
		}
	}
	return false
}

// GetVariable returns the topmost matching variable.
func (s *Stack) GetVariable(name string) (*symtab.Variable, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if v, ok := s.frames[i].Get(name); ok {
			return v, true
		}
	}
	return nil, false
}

// ContainingContext returns the topmost frame that declares name — used to
// find both sides of an object-to-object assignment.
func (s *Stack) ContainingContext(name string) *Context {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].Exists(name) {
			return s.frames[i]
		}
	}
	return nil
}

// InLoop reports whether any frame currently on the stack is a loop body,
// used to validate break/continue-style control (Adeo has none today, but
// the check mirrors the while/for codegen's own loop-frame bookkeeping).
func (s *Stack) InLoop() bool {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].Kind == KindLoop {
			return true
		}
	}
	return false
}

// InFunction reports whether a Function frame is currently open, and
// returns it — used to validate `return`.
func (s *Stack) InFunction() (*Context, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].Kind == KindFunction {
			return s.frames[i], true
		}
	}
	return nil, false
}
