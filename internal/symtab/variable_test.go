package symtab

import (
	"testing"

	"github.com/stretchr/testify/require"

	"adeo/internal/memory"
)

func TestTableAddAndGet(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Add(&Variable{Name: "x", Type: memory.Int, Address: 0}))
	v, ok := tbl.Get("x")
	require.True(t, ok)
	require.Equal(t, memory.Int, v.Type)
}

func TestTableRejectsRedeclaration(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Add(&Variable{Name: "x", Type: memory.Int}))
	require.Error(t, tbl.Add(&Variable{Name: "x", Type: memory.Float}))
}

func TestTableAttributeAddressesFollowsDeclarationOrder(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Add(&Variable{Name: "p.x", Type: memory.Int, Address: 10}))
	require.NoError(t, tbl.Add(&Variable{Name: "p.y", Type: memory.Int, Address: 11}))
	require.NoError(t, tbl.Add(&Variable{Name: "q.x", Type: memory.Int, Address: 20}))

	require.Equal(t, []int{10, 11}, tbl.AttributeAddresses("p."))
	require.Equal(t, []int{20}, tbl.AttributeAddresses("q."))
}

func TestArrayDescriptorFinalizeComputesStrides(t *testing.T) {
	a := &ArrayDescriptor{}
	require.NoError(t, a.AddDimension(3))
	require.NoError(t, a.AddDimension(4))
	a.Finalize()

	require.True(t, a.Finalized())
	require.Equal(t, 12, a.Size)
	require.Equal(t, 4, a.Dimensions[0].M)
	require.Equal(t, 1, a.Dimensions[1].M)
}

func TestArrayDescriptorRejectsNonPositiveDimension(t *testing.T) {
	a := &ArrayDescriptor{}
	require.Error(t, a.AddDimension(0))
	require.Error(t, a.AddDimension(-1))
}
