// Package compiler is Adeo's front-end driver: a single-pass
// recursive-descent parser that drives the memory manager, semantic
// cube, context stack, and function/class directories, emitting
// quadruples directly as it recognizes each construct. There is no
// intermediate AST — every production that needs code emits it during
// the parse, exactly once, with jump targets fixed up via backpatching.
package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"adeo/internal/context"
	"adeo/internal/directory"
	"adeo/internal/errors"
	"adeo/internal/lexer"
	"adeo/internal/memory"
	"adeo/internal/quad"
	"adeo/internal/semantic"
	"adeo/internal/symtab"
)

// classType and voidType are sentinel operand "types" local to the
// compiler: neither is a real memory.Type, since class instances and
// void call results never occupy a memory cell of their own.
const (
	classType = memory.Type(-2)
	voidType  = memory.Type(-3)
)

// operand is the (type, address) pair threaded through expression
// parsing, extended with the bookkeeping object-to-object assignment
// and void-call rejection need: Name identifies a bare variable
// reference (empty for literals, temporaries, and array elements), and
// Class carries the class name when Type is classType.
type operand struct {
	Type  memory.Type
	Addr  int
	Name  string
	Class string
}

func (o operand) isSimple() bool {
	return o.Type != classType && o.Type != voidType
}

// Output is everything a successful compile produces, ready for the
// object-file codec to serialize.
type Output struct {
	Global    *memory.Manager
	Constants *memory.Manager
	Functions *directory.Directory
	Classes   *directory.ClassDirectory
	Quads     *quad.List
}

// Parser holds every piece of compile-time state: the token stream, the
// three memory managers, the scope stack, the function and class
// directories, and the backpatching stacks. Keeping all of it on one
// receiver threads the state through every parse action with no
// package-level singletons.
type Parser struct {
	tokens  []lexer.Token
	current int
	source  []string

	global    *memory.Manager
	constants *memory.Manager
	// temporal is the single shared per-activation memory manager used
	// while compiling every function body (main included). It is cleared
	// after each function closes, so every function's temporaries are
	// addressed from zero; at run time ERA gives each call its own
	// manager sized to that function's snapshotted resource quintuple.
	temporal  *memory.Manager
	cube      *semantic.Cube
	ctx       *context.Stack
	functions *directory.Directory
	classes   *directory.ClassDirectory

	quads *quad.List

	// funcStack is the nesting stack of function names currently being
	// compiled (depth 1 today: Adeo has no nested function declarations,
	// but return-statement validation always resolves against its top).
	funcStack []string

	// endCountStack/endJumpsStack implement the deferred end-of-conditional
	// backpatch list: each conditional chain pushes a fresh count frame,
	// every elseif transition appends one pending GOTO, and the frame's
	// pop patches all of them to the chain's exit point in one pass.
	endCountStack []int
	endJumpsStack []int
}

// compileError is panicked by every parse-time failure and recovered in
// Compile; it is never allowed to escape this package.
type compileError struct{ err *errors.CompileError }

func (p *Parser) fail(kind errors.Kind, line int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	panic(compileError{errors.NewCompileError(kind, line, msg, p.source)})
}

// Compile lexes and parses source, returning the completed program
// image or the first compile error encountered.
func Compile(source string) (out *Output, cerr *errors.CompileError) {
	tokens := lexer.NewScanner(source).ScanTokens()
	p := &Parser{
		tokens:    tokens,
		source:    strings.Split(source, "\n"),
		global:    memory.NewManager(memory.Global),
		constants: memory.NewManager(memory.Constant),
		temporal:  memory.NewManager(memory.Function),
		cube:      semantic.New(),
		ctx:       context.NewStack(),
		functions: directory.New(),
		classes:   directory.NewClassDirectory(),
		quads:     quad.NewList(),
	}

	defer func() {
		if r := recover(); r != nil {
			ce, ok := r.(compileError)
			if !ok {
				panic(r)
			}
			out = nil
			cerr = ce.err
		}
	}()

	p.program()
	return &Output{
		Global:    p.global,
		Constants: p.constants,
		Functions: p.functions,
		Classes:   p.classes,
		Quads:     p.quads,
	}, nil
}

// program = classDecl* varDecl* functionDecl* "main" "(" ")" block
func (p *Parser) program() {
	// main's ERA/GOSUB pair is emitted at program start and backpatched
	// once main's own address and resource footprint are known, since
	// control must transfer into main before any other code runs.
	eraIdx := p.quads.Emit(quad.New(quad.OpEra, quad.NoAddress, quad.NoAddress, quad.NoAddress))
	gosubIdx := p.quads.Emit(quad.New(quad.OpGosub, quad.NoAddress, quad.NoAddress, quad.NoAddress))

	global := context.New(context.KindGlobal, p.global)
	p.ctx.Push(global)

	for p.check(lexer.TokenClass) {
		p.classDecl()
	}
	for p.check(lexer.TokenVar) {
		p.variablesDecl()
	}
	for p.check(lexer.TokenInt) || p.check(lexer.TokenFloat) || p.check(lexer.TokenStringT) ||
		p.check(lexer.TokenBool) || p.check(lexer.TokenVoid) {
		p.functionDecl()
	}

	p.consume(lexer.TokenMain, "expected 'main'")
	p.consume(lexer.TokenLParen, "expected '(' after 'main'")
	p.consume(lexer.TokenRParen, "expected ')' after 'main('")

	nameAddr, _ := p.global.FindOrInsert("main")
	fn, err := p.functions.Add("main", "", quad.NoAddress)
	if err != nil {
		p.fail(errors.RedeclarationError, p.previous().Line, "%s", err)
	}
	fn.Address = nameAddr
	fn.InitialQuad = p.quads.Len()
	p.quads.Set(gosubIdx, quad.New(quad.OpGosub, quad.NoAddress, quad.NoAddress, nameAddr))

	mainCtx := context.New(context.KindFunction, p.temporal)
	p.ctx.Push(mainCtx)
	p.funcStack = append(p.funcStack, "main")

	p.consume(lexer.TokenLBrace, "expected '{' to start main")
	for p.check(lexer.TokenVar) {
		p.variablesDecl()
	}
	for !p.check(lexer.TokenRBrace) {
		p.statement()
	}
	p.consume(lexer.TokenRBrace, "expected '}' to close main")

	fn.Resources = mainCtx.Memory.Resources()
	p.quads.Set(eraIdx, quad.New(quad.OpEra, quad.NoAddress, quad.NoAddress, nameAddr))
	p.temporal.Clear()

	p.ctx.Pop()
	p.funcStack = p.funcStack[:len(p.funcStack)-1]

	p.quads.Emit(quad.New(quad.OpEndProg, quad.NoAddress, quad.NoAddress, quad.NoAddress))
}

// classDecl = "Class" ID "{" (type ":" ID ("," type ":" ID)*)? "}" ";"
func (p *Parser) classDecl() {
	p.consume(lexer.TokenClass, "expected 'Class'")
	nameTok := p.consume(lexer.TokenIdent, "expected class name")
	if p.classes.Exists(nameTok.Lexeme) {
		p.fail(errors.RedeclarationError, nameTok.Line, "a class named %q already exists", nameTok.Lexeme)
	}
	detail, _ := p.classes.Add(nameTok.Lexeme)

	p.consume(lexer.TokenLBrace, "expected '{' after class name")
	classCtx := context.New(context.KindClass, p.global)
	for {
		typ := p.parseTypeName()
		p.consume(lexer.TokenColon, "expected ':' in attribute declaration")
		attrTok := p.consume(lexer.TokenIdent, "expected attribute name")
		if classCtx.Exists(attrTok.Lexeme) {
			p.fail(errors.RedeclarationError, attrTok.Line, "an attribute named %q already exists in class %q", attrTok.Lexeme, nameTok.Lexeme)
		}
		if _, err := classCtx.Declare(attrTok.Lexeme, typ, nil); err != nil {
			p.fail(errors.RedeclarationError, attrTok.Line, "%s", err)
		}
		if !p.match(lexer.TokenComma) {
			break
		}
	}
	p.consume(lexer.TokenRBrace, "expected '}' to close class body")
	p.consume(lexer.TokenSemicolon, "expected ';' after class declaration")
	detail.Variables = classCtx.Table
}

// variablesDecl = "var" (type ":" varList | ID ":" ID ("," ID)*) ";"
func (p *Parser) variablesDecl() {
	varTok := p.consume(lexer.TokenVar, "expected 'var'")
	top := p.ctx.Top()

	if p.check(lexer.TokenIdent) {
		className := p.peek().Lexeme
		if !p.classes.Exists(className) {
			p.fail(errors.UndeclaredIdentifier, p.peek().Line, "the class %q has not been declared", className)
		}
		p.advance()
		p.consume(lexer.TokenColon, "expected ':' after class name")
		for {
			nameTok := p.consume(lexer.TokenIdent, "expected variable name")
			p.declareClassInstance(top, nameTok.Lexeme, className, nameTok.Line)
			if !p.match(lexer.TokenComma) {
				break
			}
		}
		p.consume(lexer.TokenSemicolon, "expected ';' after variable declaration")
		return
	}

	typ := p.parseTypeName()
	p.consume(lexer.TokenColon, "expected ':' after type")
	for {
		nameTok := p.consume(lexer.TokenIdent, "expected variable name")
		if top.Exists(nameTok.Lexeme) {
			p.fail(errors.RedeclarationError, nameTok.Line, "a variable named %q already exists", nameTok.Lexeme)
		}
		if p.check(lexer.TokenLBrack) {
			arr := &symtab.ArrayDescriptor{}
			for p.match(lexer.TokenLBrack) {
				boundTok := p.consume(lexer.TokenIntConst, "array bound must be a positive integer constant")
				n, _ := strconv.Atoi(boundTok.Lexeme)
				if err := arr.AddDimension(n); err != nil {
					p.fail(errors.SyntaxError, boundTok.Line, "%s", err)
				}
				p.consume(lexer.TokenRBrack, "expected ']'")
			}
			arr.Finalize()
			if _, err := top.Declare(nameTok.Lexeme, typ, arr); err != nil {
				p.fail(errors.RedeclarationError, nameTok.Line, "%s", err)
			}
		} else {
			if _, err := top.Declare(nameTok.Lexeme, typ, nil); err != nil {
				p.fail(errors.RedeclarationError, nameTok.Line, "%s", err)
			}
		}
		if !p.match(lexer.TokenComma) {
			break
		}
	}
	p.consume(lexer.TokenSemicolon, "expected ';' after variable declaration")
	_ = varTok
}

// declareClassInstance registers a class-typed variable plus one flattened
// "instance.attr" entry per class attribute, following the class's own
// attribute order — this flattening is what lets whole-object assignment
// later locate both sides' attributes purely by declaration-ordered name
// prefix (see symtab.Table.AttributeAddresses).
func (p *Parser) declareClassInstance(top *context.Context, name, className string, line int) {
	if top.Exists(name) {
		p.fail(errors.RedeclarationError, line, "a variable named %q already exists", name)
	}
	detail, _ := p.classes.Get(className)
	// An object variable has no memory cell of its own: every read or
	// write lands on one of its flattened "instance.attr" entries below,
	// so its Address is a non-addressable placeholder.
	if _, err := top.DeclareClassInstance(name, className, quad.NoAddress); err != nil {
		p.fail(errors.RedeclarationError, line, "%s", err)
	}
	for _, attrName := range detail.Variables.Names() {
		attr, _ := detail.Variables.Get(attrName)
		flatName := name + "." + attrName
		if _, err := top.Declare(flatName, attr.Type, nil); err != nil {
			p.fail(errors.RedeclarationError, line, "%s", err)
		}
	}
}

func (p *Parser) parseTypeName() memory.Type {
	tok := p.advance()
	switch tok.Type {
	case lexer.TokenInt:
		return memory.Int
	case lexer.TokenFloat:
		return memory.Float
	case lexer.TokenStringT:
		return memory.String
	case lexer.TokenBool:
		return memory.Bool
	default:
		p.fail(errors.SyntaxError, tok.Line, "expected a type, got %q", tok.Lexeme)
		return memory.Int
	}
}

// --- token stream helpers ---

func (p *Parser) match(t lexer.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) consume(t lexer.TokenType, msg string) lexer.Token {
	if p.check(t) {
		return p.advance()
	}
	tok := p.peek()
	if strings.HasPrefix(tok.Lexeme, "lex error: ") {
		p.fail(errors.SyntaxError, tok.Line, "%s", strings.TrimPrefix(tok.Lexeme, "lex error: "))
	}
	p.fail(errors.SyntaxError, tok.Line, "%s (got %q)", msg, tok.Lexeme)
	return tok
}

func (p *Parser) check(t lexer.TokenType) bool {
	return p.peek().Type == t
}

func (p *Parser) advance() lexer.Token {
	tok := p.tokens[p.current]
	if !p.isAtEnd() {
		p.current++
	}
	return tok
}

func (p *Parser) peek() lexer.Token {
	return p.tokens[p.current]
}

func (p *Parser) previous() lexer.Token {
	return p.tokens[p.current-1]
}

func (p *Parser) isAtEnd() bool {
	return p.tokens[p.current].Type == lexer.TokenEOF
}
