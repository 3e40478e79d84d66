// Package objectfile implements the textual `.adeoobj` format: the
// compiler's Serialize writes a completed compile as ordered,
// line-delimited sections; the VM's Parse reads those sections back into
// the runtime structures it executes directly.
package objectfile

import (
	"fmt"
	"strconv"
	"strings"

	"adeo/internal/compiler"
	"adeo/internal/directory"
	"adeo/internal/errors"
	"adeo/internal/memory"
	"adeo/internal/quad"
)

const (
	headerGlobal  = "--Global Memory--"
	headerConst   = "--Constants--"
	headerFuncs   = "--Functions--"
	headerClasses = "--Classes--"
	headerQuads   = "--Quadruples--"

	compileErrorHeader = "ADEO COMPILATION ERROR"
)

// Image is everything the VM needs to run a compiled program, parsed
// back out of an object file.
type Image struct {
	CompileFailed bool // true if the file begins with the compile-error header
	Global        *memory.Manager
	Constants     *memory.Manager
	Functions     *directory.DirectoryVM
	Quads         *quad.List
}

// allTypes is the fixed (int, float, string, bool, ptr) iteration order
// used everywhere a memory section is walked.
var allTypes = []memory.Type{memory.Int, memory.Float, memory.String, memory.Bool, memory.Ptr}

// Serialize renders a completed compile as the five ordered sections.
// Classes carry no runtime content, so the section header is emitted
// with no lines under it.
func Serialize(out *compiler.Output) string {
	var sb strings.Builder
	writeMemorySection(&sb, headerGlobal, out.Global)
	writeMemorySection(&sb, headerConst, out.Constants)
	writeFunctionsSection(&sb, out.Functions)
	sb.WriteString(headerClasses + "\n")
	writeQuadsSection(&sb, out.Quads)
	return sb.String()
}

// SerializeError renders the compile-error object file: a sentinel
// header line, the error itself, and the five-line source window.
func SerializeError(cerr *errors.CompileError) string {
	var sb strings.Builder
	sb.WriteString(compileErrorHeader + "\n")
	sb.WriteString(cerr.Error() + "\n")
	if w := cerr.Window(); w != "" {
		sb.WriteString(w)
	}
	return sb.String()
}

func writeMemorySection(sb *strings.Builder, header string, m *memory.Manager) {
	sb.WriteString(header + "\n")
	for _, t := range allTypes {
		base := m.BaseAddr(t)
		for i, cell := range m.Cells(t) {
			fmt.Fprintf(sb, "%d-%s\n", base+i, formatCell(t, cell))
		}
	}
}

func formatCell(t memory.Type, cell memory.Cell) string {
	if !cell.IsSet() {
		return "None"
	}
	return formatValue(t, cell.Value)
}

func formatValue(t memory.Type, v interface{}) string {
	switch t {
	case memory.Int, memory.Ptr:
		return fmt.Sprintf("%d", v)
	case memory.Float:
		return strconv.FormatFloat(v.(float64), 'f', -1, 64)
	case memory.Bool:
		if b, ok := v.(bool); ok && b {
			return "true"
		}
		return "false"
	case memory.String:
		return strconv.Quote(v.(string))
	default:
		return fmt.Sprintf("%v", v)
	}
}

func writeFunctionsSection(sb *strings.Builder, dir *directory.Directory) {
	sb.WriteString(headerFuncs + "\n")
	for _, name := range dir.Names() {
		fn, _ := dir.Get(name)
		r := fn.Resources
		fmt.Fprintf(sb, "%s,%s,(%d,%d,%d,%d,%d),%d\n",
			fn.Name, fn.ReturnType, r[0], r[1], r[2], r[3], r[4], fn.InitialQuad)
	}
}

func writeQuadsSection(sb *strings.Builder, quads *quad.List) {
	sb.WriteString(headerQuads + "\n")
	for _, q := range quads.All() {
		fmt.Fprintf(sb, "(%s,%s,%s,%s)\n", q.Operator, addrField(q.Left), addrField(q.Right), addrField(q.Result))
	}
}

func addrField(a int) string {
	if a == quad.NoAddress {
		return "None"
	}
	return strconv.Itoa(a)
}

// Parse reads an object file back into an Image. A malformed section
// (one that doesn't match the codec's own grammar) is reported as a
// plain error: it represents a corrupted or foreign file, not one of
// the closed runtime-error kinds a correctly compiled program can raise.
func Parse(data string) (*Image, error) {
	lines := strings.Split(strings.ReplaceAll(data, "\r\n", "\n"), "\n")
	if len(lines) > 0 && strings.TrimSpace(lines[0]) == compileErrorHeader {
		return &Image{CompileFailed: true}, nil
	}

	headers := map[string]bool{
		headerGlobal: true, headerConst: true, headerFuncs: true,
		headerClasses: true, headerQuads: true,
	}
	sections := map[string][]string{}
	var current string
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if headers[line] {
			current = line
			continue
		}
		if current != "" {
			sections[current] = append(sections[current], line)
		}
	}

	img := &Image{
		Global:    memory.NewManager(memory.Global),
		Constants: memory.NewManager(memory.Constant),
		Functions: directory.NewVM(),
		Quads:     quad.NewList(),
	}

	for _, line := range sections[headerGlobal] {
		if err := parseMemoryLine(img.Global, line); err != nil {
			return nil, fmt.Errorf("--Global Memory--: %w", err)
		}
	}
	for _, line := range sections[headerConst] {
		if err := parseMemoryLine(img.Constants, line); err != nil {
			return nil, fmt.Errorf("--Constants--: %w", err)
		}
	}
	for _, line := range sections[headerFuncs] {
		if err := parseFunctionLine(img.Functions, line); err != nil {
			return nil, fmt.Errorf("--Functions--: %w", err)
		}
	}
	for _, line := range sections[headerQuads] {
		if err := parseQuadLine(img.Quads, line); err != nil {
			return nil, fmt.Errorf("--Quadruples--: %w", err)
		}
	}
	return img, nil
}

// parseMemoryLine reconstructs one memory cell. The address written in
// the line is only consulted to recover the cell's type; the cell is
// appended to that type's sub-space in file order, which reproduces the
// original addresses exactly since the compiler itself wrote the lines
// in ascending per-type order.
func parseMemoryLine(m *memory.Manager, line string) error {
	addrStr, value, ok := splitAddrValue(line)
	if !ok {
		return fmt.Errorf("malformed memory line %q", line)
	}
	addr, err := strconv.Atoi(addrStr)
	if err != nil {
		return fmt.Errorf("malformed address in %q: %w", line, err)
	}
	t := memory.TypeOf(addr)
	newAddr, err := m.Reserve(t, 1)
	if err != nil {
		return err
	}
	if value == "None" {
		return nil
	}
	parsed, err := parseValue(t, value)
	if err != nil {
		return fmt.Errorf("malformed value in %q: %w", line, err)
	}
	m.Set(newAddr, parsed)
	return nil
}

// splitAddrValue splits "<address>-<value>" at the first non-digit
// character, since the address is always a non-negative integer and the
// value (e.g. a negative float) may itself begin with '-'.
func splitAddrValue(line string) (addr, value string, ok bool) {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(line) || line[i] != '-' {
		return "", "", false
	}
	return line[:i], line[i+1:], true
}

func parseValue(t memory.Type, value string) (interface{}, error) {
	switch t {
	case memory.Int, memory.Ptr:
		return strconv.Atoi(value)
	case memory.Float:
		return strconv.ParseFloat(value, 64)
	case memory.Bool:
		return value == "true", nil
	case memory.String:
		return strconv.Unquote(value)
	default:
		return nil, fmt.Errorf("unknown type kind for value %q", value)
	}
}

// parseFunctionLine reads "name,returnType,(r0,r1,r2,r3,r4),initialQuad".
func parseFunctionLine(dir *directory.DirectoryVM, line string) error {
	open := strings.IndexByte(line, '(')
	shut := strings.IndexByte(line, ')')
	if open < 0 || shut < 0 || shut < open {
		return fmt.Errorf("malformed function line %q", line)
	}
	head := strings.TrimSuffix(line[:open], ",")
	fields := strings.SplitN(head, ",", 2)
	if len(fields) == 0 || fields[0] == "" {
		return fmt.Errorf("malformed function name in %q", line)
	}
	name := fields[0]

	resourceParts := strings.Split(line[open+1:shut], ",")
	if len(resourceParts) != 5 {
		return fmt.Errorf("expected a resource quintuple in %q", line)
	}
	var resources [5]int
	for i, part := range resourceParts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return fmt.Errorf("malformed resource count in %q: %w", line, err)
		}
		resources[i] = n
	}

	tail := strings.TrimPrefix(line[shut+1:], ",")
	initialQuad, err := strconv.Atoi(tail)
	if err != nil {
		return fmt.Errorf("malformed initial instruction pointer in %q: %w", line, err)
	}

	dir.Add(name, initialQuad, resources)
	return nil
}

// parseQuadLine reads "(op,l,r,d)".
func parseQuadLine(quads *quad.List, line string) error {
	if len(line) < 2 || line[0] != '(' || line[len(line)-1] != ')' {
		return fmt.Errorf("malformed quadruple line %q", line)
	}
	fields := strings.Split(line[1:len(line)-1], ",")
	if len(fields) != 4 {
		return fmt.Errorf("expected 4 fields in %q", line)
	}
	left, err := parseQuadField(fields[1])
	if err != nil {
		return err
	}
	right, err := parseQuadField(fields[2])
	if err != nil {
		return err
	}
	result, err := parseQuadField(fields[3])
	if err != nil {
		return err
	}
	quads.Emit(quad.New(quad.Op(fields[0]), left, right, result))
	return nil
}

func parseQuadField(s string) (int, error) {
	if s == "None" {
		return quad.NoAddress, nil
	}
	return strconv.Atoi(s)
}
