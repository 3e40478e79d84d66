// Package semantic implements Adeo's semantic cube: a total function from
// (left type, operator, right type) to a result type, or Mismatch.
package semantic

import "adeo/internal/memory"

// Mismatch is returned by Cube.Result when an operator/operand
// combination has no entry in the table.
const Mismatch = memory.Type(-1)

type key struct {
	left  memory.Type
	op    string
	right memory.Type
}

// Cube is the binary-operation result-type table.
type Cube struct {
	table map[key]memory.Type
}

// New builds the full cube: arithmetic on numeric pairs (with int/float
// promotion), string concatenation via '+', relational comparisons on
// matching numerics, equality on matching simple types, logical ops on
// bool pairs, and assignment compatibility (including int->float
// promotion).
func New() *Cube {
	c := &Cube{table: make(map[key]memory.Type)}

	arith := []string{"+", "-", "*", "/"}
	for _, op := range arith {
		c.set(memory.Int, op, memory.Int, memory.Int)
		c.set(memory.Int, op, memory.Float, memory.Float)
		c.set(memory.Float, op, memory.Int, memory.Float)
		c.set(memory.Float, op, memory.Float, memory.Float)
	}
	c.set(memory.String, "+", memory.String, memory.String)

	rel := []string{"<", "<=", ">", ">="}
	for _, op := range rel {
		c.set(memory.Int, op, memory.Int, memory.Bool)
		c.set(memory.Float, op, memory.Float, memory.Bool)
	}

	for _, t := range []memory.Type{memory.Int, memory.Float, memory.String, memory.Bool} {
		c.set(t, "==", t, memory.Bool)
		c.set(t, "!=", t, memory.Bool)
	}

	c.set(memory.Bool, "&&", memory.Bool, memory.Bool)
	c.set(memory.Bool, "||", memory.Bool, memory.Bool)

	for _, t := range []memory.Type{memory.Int, memory.Float, memory.String, memory.Bool} {
		c.set(t, "=", t, t)
	}
	c.set(memory.Float, "=", memory.Int, memory.Float)

	return c
}

func (c *Cube) set(left memory.Type, op string, right memory.Type, result memory.Type) {
	c.table[key{left, op, right}] = result
}

// Result returns the result type of applying op to operands of the given
// types, or Mismatch if the combination is not defined.
func (c *Cube) Result(left memory.Type, op string, right memory.Type) memory.Type {
	if result, ok := c.table[key{left, op, right}]; ok {
		return result
	}
	return Mismatch
}
