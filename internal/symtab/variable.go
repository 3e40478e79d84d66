// Package symtab holds per-scope variable records and array shape
// metadata: VariableTable, Variable, and ArrayDescriptor.
package symtab

import (
	"fmt"
	"strings"

	"adeo/internal/memory"
)

// Dimension is one axis of an array. Upper is the declared bound; R is the
// size-prefix product (R[k] = R[k-1] * Upper[k], R[-1] is the element
// count); M is the stride for this dimension, computed by Finalize.
type Dimension struct {
	Upper int
	R     int
	M     int
}

// ArrayDescriptor is an ordered sequence of dimensions for one array
// variable. Indexing codegen assumes a finalized descriptor.
type ArrayDescriptor struct {
	Dimensions []Dimension
	Size       int
	finalized  bool
}

// AddDimension appends a new dimension; Upper must be a positive constant.
func (a *ArrayDescriptor) AddDimension(upper int) error {
	if upper <= 0 {
		return fmt.Errorf("array dimension must be a positive integer, got %d", upper)
	}
	var r int
	if len(a.Dimensions) == 0 {
		r = upper
	} else {
		r = a.Dimensions[len(a.Dimensions)-1].R * upper
	}
	a.Dimensions = append(a.Dimensions, Dimension{Upper: upper, R: r})
	return nil
}

// Finalize computes each dimension's stride from the size-prefix products.
// Must be called once, after all dimensions are registered, before any
// indexing code is generated against this descriptor.
func (a *ArrayDescriptor) Finalize() {
	if len(a.Dimensions) == 0 {
		return
	}
	a.Size = a.Dimensions[len(a.Dimensions)-1].R
	for i := range a.Dimensions {
		if i == 0 {
			a.Dimensions[i].M = a.Size / a.Dimensions[i].Upper
		} else {
			a.Dimensions[i].M = a.Dimensions[i-1].M / a.Dimensions[i].Upper
		}
	}
	a.finalized = true
}

func (a *ArrayDescriptor) Finalized() bool { return a.finalized }

// Variable is a (name, type, address) record, optionally describing an
// array's shape. Created by the parser on declaration; its lifetime
// equals its enclosing context.
type Variable struct {
	Name    string
	Type    memory.Type
	Address int
	Array   *ArrayDescriptor // nil for simple and object variables
	Class   string           // non-empty when Type denotes a class instance
}

// Table is an insertion-ordered mapping from name to Variable.
type Table struct {
	order  []string
	byName map[string]*Variable
}

func NewTable() *Table {
	return &Table{byName: make(map[string]*Variable)}
}

// Add registers a new variable. Redeclaration within the same table is a
// compile error, surfaced to the caller as a plain error; the compiler
// wraps it into a REDECLARATION_ERROR.
func (t *Table) Add(v *Variable) error {
	if _, exists := t.byName[v.Name]; exists {
		return fmt.Errorf("a variable named %q already exists in this scope", v.Name)
	}
	t.byName[v.Name] = v
	t.order = append(t.order, v.Name)
	return nil
}

func (t *Table) Get(name string) (*Variable, bool) {
	v, ok := t.byName[name]
	return v, ok
}

func (t *Table) Exists(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// AttributeAddresses returns, in declaration order, the addresses of all
// variables whose names begin with prefix — used to compile whole-object
// assignment between two instances of the same class.
func (t *Table) AttributeAddresses(prefix string) []int {
	var addrs []int
	for _, name := range t.order {
		if strings.HasPrefix(name, prefix) {
			addrs = append(addrs, t.byName[name].Address)
		}
	}
	return addrs
}

// Names returns variable names in declaration order.
func (t *Table) Names() []string {
	return append([]string(nil), t.order...)
}
