package context

import (
	"testing"

	"github.com/stretchr/testify/require"

	"adeo/internal/memory"
	"adeo/internal/symtab"
)

func TestDeclareReservesMemoryAndRegistersVariable(t *testing.T) {
	mem := memory.NewManager(memory.Global)
	c := New(KindGlobal, mem)
	v, err := c.Declare("x", memory.Int, nil)
	require.NoError(t, err)
	require.Equal(t, memory.Int, memory.TypeOf(v.Address))
	require.True(t, c.Exists("x"))
}

func TestDeclareArrayReservesFullSize(t *testing.T) {
	mem := memory.NewManager(memory.Function)
	c := New(KindFunction, mem)
	arr := &symtab.ArrayDescriptor{}
	require.NoError(t, arr.AddDimension(3))
	arr.Finalize()
	_, err := c.Declare("a", memory.Int, arr)
	require.NoError(t, err)
	require.Equal(t, [5]int{3, 0, 0, 0, 0}, mem.Resources())
}

func TestStackResolvesTopmostFrameFirst(t *testing.T) {
	s := NewStack()
	outer := New(KindGlobal, memory.NewManager(memory.Global))
	_, err := outer.Declare("x", memory.Int, nil)
	require.NoError(t, err)
	s.Push(outer)

	inner := New(KindLocal, memory.NewManager(memory.Function))
	_, err = inner.Declare("x", memory.Float, nil)
	require.NoError(t, err)
	s.Push(inner)

	v, ok := s.GetVariable("x")
	require.True(t, ok)
	require.Equal(t, memory.Float, v.Type, "the innermost declaration shadows the outer one")

	require.Same(t, inner, s.ContainingContext("x"))
}

func TestInFunctionFindsNearestFunctionFrame(t *testing.T) {
	s := NewStack()
	s.Push(New(KindGlobal, memory.NewManager(memory.Global)))
	fn := New(KindFunction, memory.NewManager(memory.Function))
	s.Push(fn)
	s.Push(New(KindLoop, memory.NewManager(memory.Function)))

	got, ok := s.InFunction()
	require.True(t, ok)
	require.Same(t, fn, got)
	require.True(t, s.InLoop())
}

func TestPopRemovesTopFrame(t *testing.T) {
	s := NewStack()
	a := New(KindGlobal, memory.NewManager(memory.Global))
	b := New(KindLocal, memory.NewManager(memory.Function))
	s.Push(a)
	s.Push(b)
	require.Same(t, b, s.Pop())
	require.Same(t, a, s.Top())
}
