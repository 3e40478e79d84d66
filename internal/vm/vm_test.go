package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"adeo/internal/compiler"
	"adeo/internal/errors"
	"adeo/internal/objectfile"
)

// run compiles source, round-trips it through the object-file codec (the
// way the adeoc/adeovm CLI pair actually communicates), and executes it
// against a scripted stdin, returning everything printed to stdout.
func run(t *testing.T, source, stdin string) string {
	t.Helper()
	out, cerr := compiler.Compile(source)
	require.Nil(t, cerr, "expected %q to compile", source)

	img, err := objectfile.Parse(objectfile.Serialize(out))
	require.NoError(t, err)
	require.False(t, img.CompileFailed)

	var stdout bytes.Buffer
	machine := NewWithIO(img, &stdout, strings.NewReader(stdin))
	_, rerr := machine.Run()
	require.Nil(t, rerr, "expected %q to run without error", source)
	return stdout.String()
}

// runErr is the failure-path counterpart: it expects compilation to
// succeed but execution to fail with the given runtime error kind.
func runErr(t *testing.T, source, stdin string, wantKind errors.Kind) *errors.RuntimeError {
	t.Helper()
	out, cerr := compiler.Compile(source)
	require.Nil(t, cerr)

	img, err := objectfile.Parse(objectfile.Serialize(out))
	require.NoError(t, err)

	var stdout bytes.Buffer
	machine := NewWithIO(img, &stdout, strings.NewReader(stdin))
	_, rerr := machine.Run()
	require.NotNil(t, rerr, "expected %q to fail at run time", source)
	require.Equal(t, wantKind, rerr.Kind)
	return rerr
}

func TestHelloWorld(t *testing.T) {
	out := run(t, `main() { print("hi\n"); }`, "")
	require.Equal(t, "hi\n", out)
}

func TestArithmeticPrecedence(t *testing.T) {
	out := run(t, `
		var int: a;
		main() { a = 3 + 4 * 2; print(a); }
	`, "")
	require.Equal(t, "11", out)
}

func TestRecursiveFactorial(t *testing.T) {
	out := run(t, `
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
	`, "")
	require.Equal(t, "120", out)
}

func TestWhileCounter(t *testing.T) {
	out := run(t, `
		var int: i;
		main() {
			i = 0;
			while (i < 3) {
				print(i);
				i = i + 1;
			}
		}
	`, "")
	require.Equal(t, "012", out)
}

func TestArrayReadBack(t *testing.T) {
	out := run(t, `
		var int: a[3];
		main() {
			a[0] = 10;
			a[1] = 20;
			a[2] = 30;
			print(a[1]);
		}
	`, "")
	require.Equal(t, "20", out)
}

func TestArrayIndexEqualToUpperIsOutOfBounds(t *testing.T) {
	runErr(t, `
		var int: a[3];
		main() {
			print(a[3]);
		}
	`, "", errors.ArrayIndexOutOfBounds)
}

func TestArrayIndexUpperMinusOneSucceeds(t *testing.T) {
	out := run(t, `
		var int: a[3];
		main() {
			a[2] = 99;
			print(a[2]);
		}
	`, "")
	require.Equal(t, "99", out)
}

func TestForLoopCountsUpToBound(t *testing.T) {
	out := run(t, `
		var int: i;
		main() {
			for i = 0 to 3 do {
				print(i);
			}
		}
	`, "")
	require.Equal(t, "012", out)
}

func TestElseifChainPicksFirstTrueGuard(t *testing.T) {
	source := `
		var int: n;
		main() {
			n = %s;
			if (n < 0) {
				print("neg");
			} elseif (n == 0) {
				print("zero");
			} else {
				print("pos");
			}
		}
	`
	cases := []struct {
		value string
		want  string
	}{
		{"0 - 5", "neg"},
		{"0", "zero"},
		{"5", "pos"},
	}
	for _, tt := range cases {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, run(t, strings.Replace(source, "%s", tt.value, 1), ""))
		})
	}
}

func TestNestedConditionalsPatchIndependently(t *testing.T) {
	out := run(t, `
		var int: a;
		main() {
			a = 2;
			if (a > 0) {
				if (a > 1) {
					print("inner");
				} else {
					print("wrong");
				}
				print("outer");
			}
			print("end");
		}
	`, "")
	require.Equal(t, "innerouterend", out)
}

func TestTwoDimensionalArrayLinearization(t *testing.T) {
	out := run(t, `
		var int: m[2][3];
		main() {
			m[0][0] = 1;
			m[1][2] = 7;
			print(m[1][2], m[0][0]);
		}
	`, "")
	require.Equal(t, "71", out)
}

func TestVoidFunctionCallStatement(t *testing.T) {
	out := run(t, `
		void function greet(string name) {
			print("hi " + name);
		}
		main() {
			greet("ana");
		}
	`, "")
	require.Equal(t, "hi ana", out)
}

func TestIntArgumentPromotesToFloatParameter(t *testing.T) {
	out := run(t, `
		float function half(float x) {
			return x / 2;
		}
		main() {
			print(half(5));
		}
	`, "")
	require.Equal(t, "2.5", out)
}

func TestObjectCopy(t *testing.T) {
	out := run(t, `
		Class P { int: x, int: y };
		main() {
			var P: p1;
			var P: p2;
			p1.x = 1;
			p1.y = 2;
			p2 = p1;
			print(p2.x, p2.y);
		}
	`, "")
	require.Equal(t, "12", out)
}

func TestDivisionByZeroRaisesArithmeticException(t *testing.T) {
	runErr(t, `
		var int: a;
		main() { a = 1 / 0; print(a); }
	`, "", errors.ArithmeticException)
}

func TestReadingUninitializedVariableRaisesVariableNotInitialized(t *testing.T) {
	runErr(t, `
		var int: a;
		main() { print(a); }
	`, "", errors.VariableNotInitialized)
}

func TestReadTypeMismatchRaisesInputTypeMismatch(t *testing.T) {
	runErr(t, `
		var int: a;
		main() { read(a); print(a); }
	`, "not-a-number\n", errors.InputTypeMismatch)
}

func TestReadCoercesValidInput(t *testing.T) {
	out := run(t, `
		var int: a;
		main() { read(a); print(a); }
	`, "42\n")
	require.Equal(t, "42", out)
}

func TestStringConcatenation(t *testing.T) {
	out := run(t, `
		var string: s;
		main() { s = "foo" + "bar"; print(s); }
	`, "")
	require.Equal(t, "foobar", out)
}

func TestTrueDivisionOfIntsProducesFloatThenTruncatesOnIntAssignment(t *testing.T) {
	out := run(t, `
		var int: a;
		main() { a = 7 / 2; print(a); }
	`, "")
	require.Equal(t, "3", out)
}
