package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"adeo/internal/errors"
	"adeo/internal/quad"
)

// compileOK fails the test immediately with the compile error's
// description if compilation doesn't succeed.
func compileOK(t *testing.T, source string) *Output {
	t.Helper()
	out, cerr := Compile(source)
	if cerr != nil {
		t.Fatalf("expected %q to compile, got %s", source, cerr.Error())
	}
	return out
}

// compileErr expects compilation to fail with the given kind.
func compileErr(t *testing.T, source string, wantKind errors.Kind) *errors.CompileError {
	t.Helper()
	_, cerr := Compile(source)
	if cerr == nil {
		t.Fatalf("expected %q to fail to compile", source)
	}
	require.Equal(t, wantKind, cerr.Kind)
	return cerr
}

func countOp(out *Output, op quad.Op) int {
	n := 0
	for _, q := range out.Quads.All() {
		if q.Operator == op {
			n++
		}
	}
	return n
}

func TestHelloWorldCompiles(t *testing.T) {
	out := compileOK(t, `main() { print("hi\n"); }`)
	require.Equal(t, 1, countOp(out, quad.OpPrint))
	require.Equal(t, 1, countOp(out, quad.OpEndProg))
}

func TestArithmeticCompilesWithPrecedence(t *testing.T) {
	out := compileOK(t, `
		var int: a;
		main() { a = 3 + 4 * 2; print(a); }
	`)
	require.Equal(t, 1, countOp(out, quad.OpMul), "multiplication binds tighter than addition")
	require.Equal(t, 1, countOp(out, quad.OpAdd))
}

func TestRecursiveFactorialCompiles(t *testing.T) {
	out := compileOK(t, `
		int function fact(int n) {
			if (n < 2) {
				return 1;
			} else {
				return n * fact(n - 1);
			}
		}
		main() {
			print(fact(5));
		}
	`)
	// Three GOSUBs total: the program-start synthetic call into main,
	// main's own call to fact(5), and fact's recursive call to itself.
	require.Equal(t, 3, countOp(out, quad.OpGosub))
}

func TestWhileCounterCompiles(t *testing.T) {
	out := compileOK(t, `
		var int: i;
		main() {
			i = 0;
			while (i < 3) {
				print(i);
				i = i + 1;
			}
		}
	`)
	require.Equal(t, 1, countOp(out, quad.OpGotoF))
	require.Equal(t, 1, countOp(out, quad.OpGoto))
}

func TestArrayIndexingEmitsVerAndPtr(t *testing.T) {
	out := compileOK(t, `
		var int: a[3];
		main() {
			a[0] = 10;
			print(a[1]);
		}
	`)
	require.Equal(t, 2, countOp(out, quad.OpVer))
	require.Equal(t, 2, countOp(out, quad.OpPtr))
}

func TestObjectCopyCompiles(t *testing.T) {
	out := compileOK(t, `
		Class P { int: x, int: y };
		main() {
			var P: p1;
			var P: p2;
			p1.x = 1;
			p1.y = 2;
			p2 = p1;
			print(p2.x, p2.y);
		}
	`)
	// two field assignments plus one OpAssign per attribute copied.
	require.GreaterOrEqual(t, countOp(out, quad.OpAssign), 4)
}

func TestNonVoidFunctionMissingReturnIsCompileError(t *testing.T) {
	compileErr(t, `
		int function bad() {
			print("never returns");
		}
		main() { print(bad()); }
	`, errors.ReturnStatementMissing)
}

func TestClassTypeMismatchAssignment(t *testing.T) {
	compileErr(t, `
		Class A { int: x };
		Class B { int: y };
		main() {
			var A: a;
			var B: b;
			a = b;
		}
	`, errors.TypeMismatch)
}

func TestRedeclaredVariableIsCompileError(t *testing.T) {
	compileErr(t, `
		main() {
			var int: x;
			var int: x;
		}
	`, errors.RedeclarationError)
}

func TestUndeclaredIdentifierIsCompileError(t *testing.T) {
	compileErr(t, `
		main() {
			print(neverDeclared);
		}
	`, errors.UndeclaredIdentifier)
}

func TestCallWithWrongArgumentCountIsCompileError(t *testing.T) {
	compileErr(t, `
		void function f(int n) {
		}
		main() { f(); }
	`, errors.MissingRequiredArg)
}

func TestCompileErrorCarriesSourceWindow(t *testing.T) {
	cerr := compileErr(t, "main() {\n  var int: x;\n  var int: x;\n}\n", errors.RedeclarationError)
	require.NotEmpty(t, cerr.Window())
}
