package objectfile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"adeo/internal/compiler"
	"adeo/internal/memory"
)

// image is a comparable snapshot of everything a serialize/parse round
// trip must preserve: the constants pool's address-to-value mapping, the
// function directory's initial-IP and resource tuples (keyed by the
// names known at compile time), and the quadruple sequence.
type image struct {
	Constants map[int]interface{}
	Global    map[int]interface{}
	Functions map[string]funcSnapshot
	Quads     []quadSnapshot
}

type funcSnapshot struct {
	InitialQuad int
	Resources   [5]int
}

type quadSnapshot struct {
	Op                  string
	Left, Right, Result int
}

func snapshotManager(m *memory.Manager) map[int]interface{} {
	out := map[int]interface{}{}
	for _, t := range allTypes {
		base := m.BaseAddr(t)
		for i, cell := range m.Cells(t) {
			if cell.IsSet() {
				out[base+i] = cell.Value
			}
		}
	}
	return out
}

func snapshotQuads(all []quadSnapshotSource) []quadSnapshot {
	var quads []quadSnapshot
	for _, q := range all {
		quads = append(quads, quadSnapshot{Op: q.Op, Left: q.Left, Right: q.Right, Result: q.Result})
	}
	return quads
}

// quadSnapshotSource adapts both compiler.Output.Quads and Image.Quads
// (both *quad.List) to the same shape without importing the quad
// package twice under different names.
type quadSnapshotSource struct {
	Op                  string
	Left, Right, Result int
}

func TestRoundTripPreservesCompiledImage(t *testing.T) {
	source := `
		var int: a;
		int function fact(int n) {
			if (n < 2) {
				return 1;
			} else {
				return n * fact(n - 1);
			}
		}
		main() {
			a = fact(5);
			print(a);
		}
	`
	out, cerr := compiler.Compile(source)
	require.Nil(t, cerr)

	serialized := Serialize(out)
	parsed, err := Parse(serialized)
	require.NoError(t, err)
	require.False(t, parsed.CompileFailed)

	var wantQuads, gotQuads []quadSnapshotSource
	for _, q := range out.Quads.All() {
		wantQuads = append(wantQuads, quadSnapshotSource{string(q.Operator), q.Left, q.Right, q.Result})
	}
	for _, q := range parsed.Quads.All() {
		gotQuads = append(gotQuads, quadSnapshotSource{string(q.Operator), q.Left, q.Right, q.Result})
	}

	wantFuncs := map[string]funcSnapshot{}
	gotFuncs := map[string]funcSnapshot{}
	for _, name := range out.Functions.Names() {
		fn, _ := out.Functions.Get(name)
		wantFuncs[name] = funcSnapshot{InitialQuad: fn.InitialQuad, Resources: fn.Resources}
		pfn, ok := parsed.Functions.Get(name)
		require.True(t, ok, "function %q must survive the round trip", name)
		gotFuncs[name] = funcSnapshot{InitialQuad: pfn.InitialQuad, Resources: pfn.Resources}
	}

	want := image{
		Constants: snapshotManager(out.Constants),
		Global:    snapshotManager(out.Global),
		Functions: wantFuncs,
		Quads:     snapshotQuads(wantQuads),
	}
	got := image{
		Constants: snapshotManager(parsed.Constants),
		Global:    snapshotManager(parsed.Global),
		Functions: gotFuncs,
		Quads:     snapshotQuads(gotQuads),
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDetectsCompileErrorSentinel(t *testing.T) {
	source := `main() { var int: x; var int: x; }`
	_, cerr := compiler.Compile(source)
	require.NotNil(t, cerr)

	serialized := SerializeError(cerr)
	require.Contains(t, serialized, compileErrorHeader)

	parsed, err := Parse(serialized)
	require.NoError(t, err)
	require.True(t, parsed.CompileFailed)
}

func TestFormatAndParseValueRoundTripNegativeFloat(t *testing.T) {
	s := formatValue(memory.Float, -3.5)
	v, err := parseValue(memory.Float, s)
	require.NoError(t, err)
	require.Equal(t, -3.5, v)
}

func TestSplitAddrValueHandlesNegativeValue(t *testing.T) {
	addr, value, ok := splitAddrValue("5000--3.5")
	require.True(t, ok)
	require.Equal(t, "5000", addr)
	require.Equal(t, "-3.5", value)
}

func TestParseRejectsMalformedFunctionLine(t *testing.T) {
	_, err := Parse(headerFuncs + "\nnotafunction\n" + headerQuads + "\n")
	require.Error(t, err)
}
