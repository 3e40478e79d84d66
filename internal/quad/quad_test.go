package quad

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmitReturnsSequentialInstructionPointers(t *testing.T) {
	l := NewList()
	i0 := l.Emit(New(OpAdd, 0, 1, 2))
	i1 := l.Emit(New(OpSub, 2, 3, 4))
	require.Equal(t, 0, i0)
	require.Equal(t, 1, i1)
	require.Equal(t, 2, l.Len())
}

func TestSetPatchesAnEmittedQuad(t *testing.T) {
	l := NewList()
	idx := l.Emit(New(OpGotoF, 0, NoAddress, NoAddress))
	l.Set(idx, New(OpGotoF, 0, NoAddress, 99))
	require.Equal(t, 99, l.Get(idx).Result)
}

func TestAllPreservesEmissionOrder(t *testing.T) {
	l := NewList()
	l.Emit(New(OpAdd, 0, 1, 2))
	l.Emit(New(OpPrint, NoAddress, NoAddress, 2))
	all := l.All()
	require.Len(t, all, 2)
	require.Equal(t, OpAdd, all[0].Operator)
	require.Equal(t, OpPrint, all[1].Operator)
}
