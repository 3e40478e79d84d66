package compiler

import (
	"strconv"

	"adeo/internal/errors"
	"adeo/internal/lexer"
	"adeo/internal/memory"
	"adeo/internal/quad"
	"adeo/internal/semantic"
	"adeo/internal/symtab"
)

// Expression grammar, tightest-binding last:
//
//	expression = andExpr ("||" andExpr)*
//	andExpr    = eqExpr ("&&" eqExpr)*
//	eqExpr     = relExpr (("==" | "!=") relExpr)*
//	relExpr    = addExpr (("<" | "<=" | ">" | ">=") addExpr)*
//	addExpr    = mulExpr (("+" | "-") mulExpr)*
//	mulExpr    = unary (("*" | "/") unary)*
//	unary      = "-" unary | primary
//	primary    = "(" expression ")" | varRef | constant | call
func (p *Parser) expression() operand {
	return p.binary(p.andExpr, map[lexer.TokenType]quad.Op{lexer.TokenOr: quad.OpOr})
}

func (p *Parser) andExpr() operand {
	return p.binary(p.eqExpr, map[lexer.TokenType]quad.Op{lexer.TokenAnd: quad.OpAnd})
}

func (p *Parser) eqExpr() operand {
	return p.binary(p.relExpr, map[lexer.TokenType]quad.Op{
		lexer.TokenEq: quad.OpEq, lexer.TokenNotEq: quad.OpNe,
	})
}

func (p *Parser) relExpr() operand {
	return p.binary(p.addExpr, map[lexer.TokenType]quad.Op{
		lexer.TokenLT: quad.OpLt, lexer.TokenLE: quad.OpLe,
		lexer.TokenGT: quad.OpGt, lexer.TokenGE: quad.OpGe,
	})
}

func (p *Parser) addExpr() operand {
	return p.binary(p.mulExpr, map[lexer.TokenType]quad.Op{
		lexer.TokenPlus: quad.OpAdd, lexer.TokenMinus: quad.OpSub,
	})
}

func (p *Parser) mulExpr() operand {
	return p.binary(p.unary, map[lexer.TokenType]quad.Op{
		lexer.TokenStar: quad.OpMul, lexer.TokenSlash: quad.OpDiv,
	})
}

// binary implements one precedence level: parse a sub-expression, then
// while the lookahead is one of ops, consume it, parse another
// sub-expression, consult the semantic cube, and emit the quadruple.
func (p *Parser) binary(sub func() operand, ops map[lexer.TokenType]quad.Op) operand {
	left := sub()
	for {
		op, ok := ops[p.peek().Type]
		if !ok {
			return left
		}
		opTok := p.advance()
		right := sub()
		left = p.emitBinary(left, quad.Op(op), right, opTok.Line)
	}
}

func (p *Parser) emitBinary(left operand, op quad.Op, right operand, line int) operand {
	if !left.isSimple() || !right.isSimple() {
		p.fail(errors.TypeMismatch, line, "operator %q requires simple operand types", op)
	}
	resultType := p.cube.Result(left.Type, string(op), right.Type)
	if resultType == semantic.Mismatch {
		p.fail(errors.TypeMismatch, line, "operand types do not support operator %q", op)
	}
	result := p.reserveTemp(resultType)
	p.quads.Emit(quad.New(op, left.Addr, right.Addr, result))
	return operand{Type: resultType, Addr: result}
}

func (p *Parser) unary() operand {
	if p.check(lexer.TokenMinus) {
		tok := p.advance()
		operand0 := p.unary()
		if operand0.Type != memory.Int && operand0.Type != memory.Float {
			p.fail(errors.TypeMismatch, tok.Line, "unary '-' requires a numeric operand")
		}
		zeroAddr, _ := p.constants.FindOrInsert(zeroFor(operand0.Type))
		result := p.reserveTemp(operand0.Type)
		p.quads.Emit(quad.New(quad.OpSub, zeroAddr, operand0.Addr, result))
		return operand{Type: operand0.Type, Addr: result}
	}
	return p.primary()
}

func zeroFor(t memory.Type) interface{} {
	if t == memory.Float {
		return float64(0)
	}
	return int(0)
}

func (p *Parser) primary() operand {
	switch {
	case p.match(lexer.TokenLParen):
		inner := p.expression()
		p.consume(lexer.TokenRParen, "expected ')'")
		return inner
	case p.check(lexer.TokenIntConst):
		tok := p.advance()
		n, _ := strconv.Atoi(tok.Lexeme)
		addr, _ := p.constants.FindOrInsert(n)
		return operand{Type: memory.Int, Addr: addr}
	case p.check(lexer.TokenFloatConst):
		tok := p.advance()
		f, _ := strconv.ParseFloat(tok.Lexeme, 64)
		addr, _ := p.constants.FindOrInsert(f)
		return operand{Type: memory.Float, Addr: addr}
	case p.check(lexer.TokenStringConst):
		tok := p.advance()
		addr, _ := p.constants.FindOrInsert(tok.Lexeme)
		return operand{Type: memory.String, Addr: addr}
	case p.check(lexer.TokenTrue) || p.check(lexer.TokenFalse):
		tok := p.advance()
		addr, _ := p.constants.FindOrInsert(tok.Type == lexer.TokenTrue)
		return operand{Type: memory.Bool, Addr: addr}
	case p.check(lexer.TokenIdent):
		if p.checkNext(lexer.TokenLParen) {
			return p.functionCall()
		}
		return p.varRef()
	default:
		tok := p.peek()
		p.fail(errors.SyntaxError, tok.Line, "expected an expression, got %q", tok.Lexeme)
		return operand{}
	}
}

func (p *Parser) checkNext(t lexer.TokenType) bool {
	if p.current+1 >= len(p.tokens) {
		return false
	}
	return p.tokens[p.current+1].Type == t
}

// varRef parses a simple variable, a dotted attribute access, or an
// array index expression, resolving it against the context stack.
func (p *Parser) varRef() operand {
	nameTok := p.consume(lexer.TokenIdent, "expected a variable name")
	name := nameTok.Lexeme

	if p.match(lexer.TokenDot) {
		attrTok := p.consume(lexer.TokenIdent, "expected an attribute name")
		flat := name + "." + attrTok.Lexeme
		v, ok := p.ctx.GetVariable(flat)
		if !ok {
			p.fail(errors.UndeclaredIdentifier, attrTok.Line, "the variable %q has not been declared", flat)
		}
		return operand{Type: v.Type, Addr: v.Address, Name: flat}
	}

	v, ok := p.ctx.GetVariable(name)
	if !ok {
		p.fail(errors.UndeclaredIdentifier, nameTok.Line, "the variable %q has not been declared", name)
	}

	if v.Class != "" {
		return operand{Type: classType, Class: v.Class, Name: name}
	}

	if !p.check(lexer.TokenLBrack) {
		return operand{Type: v.Type, Addr: v.Address, Name: name}
	}

	return p.indexArray(v, nameTok.Line)
}

// indexArray compiles one- or two-dimensional array indexing into a VER
// bounds check per dimension, the stride linearization, and a final PTR
// that materializes the element address, returning an operand whose
// address is a ptr cell the VM auto-dereferences once when it is read
// or written.
func (p *Parser) indexArray(v *symtab.Variable, line int) operand {
	if v.Array == nil || !v.Array.Finalized() {
		p.fail(errors.UnsupportedOperation, line, "%q is not an array", v.Name)
	}
	dims := v.Array.Dimensions
	var indexAddrs []int
	zeroAddr, _ := p.constants.FindOrInsert(0)
	for i := 0; i < len(dims); i++ {
		p.consume(lexer.TokenLBrack, "expected '['")
		idx := p.expression()
		if idx.Type != memory.Int {
			p.fail(errors.UnsupportedOperation, line, "array index for %q must be an int", v.Name)
		}
		p.consume(lexer.TokenRBrack, "expected ']'")
		if i >= len(dims) {
			p.fail(errors.ArrayIndexOutOfBounds, line, "wrong number of dimensions indexing %q", v.Name)
		}
		upperAddr, _ := p.constants.FindOrInsert(dims[i].Upper)
		p.quads.Emit(quad.New(quad.OpVer, idx.Addr, zeroAddr, upperAddr))
		indexAddrs = append(indexAddrs, idx.Addr)

		if i > 0 {
			t1 := indexAddrs[len(indexAddrs)-1]
			indexAddrs = indexAddrs[:len(indexAddrs)-1]
			t2 := indexAddrs[len(indexAddrs)-1]
			indexAddrs = indexAddrs[:len(indexAddrs)-1]
			sum := p.reserveTemp(memory.Int)
			p.quads.Emit(quad.New(quad.OpAdd, t2, t1, sum))
			indexAddrs = append(indexAddrs, sum)
		}
		if i < len(dims)-1 {
			mAddr, _ := p.constants.FindOrInsert(dims[i].M)
			t1 := indexAddrs[len(indexAddrs)-1]
			indexAddrs = indexAddrs[:len(indexAddrs)-1]
			scaled := p.reserveTemp(memory.Int)
			p.quads.Emit(quad.New(quad.OpMul, t1, mAddr, scaled))
			indexAddrs = append(indexAddrs, scaled)
		}
	}
	if p.check(lexer.TokenLBrack) {
		p.fail(errors.ArrayIndexOutOfBounds, line, "wrong number of dimensions indexing %q", v.Name)
	}

	baseAddr, _ := p.constants.FindOrInsert(v.Address)
	t1 := p.reserveTemp(memory.Int)
	p.quads.Emit(quad.New(quad.OpAdd, indexAddrs[0], baseAddr, t1))
	t2 := p.reserveTemp(memory.Ptr)
	p.quads.Emit(quad.New(quad.OpPtr, t1, quad.NoAddress, t2))
	return operand{Type: v.Type, Addr: t2, Name: ""}
}

// functionCall compiles `f(a1, ..., an)` via the ERA/PARAM/GOSUB
// protocol: every argument is evaluated first, then the callee's fresh
// activation is allocated with ERA, each argument is type-checked against
// its parameter and copied in with PARAM, and — for a non-void function — the
// scalar return value is copied out of the function's return cell into a
// fresh temporary.
func (p *Parser) functionCall() operand {
	nameTok := p.consume(lexer.TokenIdent, "expected a function name")
	fn, ok := p.functions.Get(nameTok.Lexeme)
	if !ok {
		p.fail(errors.UndeclaredIdentifier, nameTok.Line, "the function %q was not declared", nameTok.Lexeme)
	}
	p.consume(lexer.TokenLParen, "expected '(' after function name")
	var args []operand
	if !p.check(lexer.TokenRParen) {
		for {
			args = append(args, p.expression())
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRParen, "expected ')' after arguments")

	if len(args) != len(fn.Parameters) {
		p.fail(errors.MissingRequiredArg, nameTok.Line, "call to %q expects %d argument(s), got %d", nameTok.Lexeme, len(fn.Parameters), len(args))
	}

	p.quads.Emit(quad.New(quad.OpEra, quad.NoAddress, quad.NoAddress, fn.Address))
	for i, arg := range args {
		param := fn.Parameters[i]
		if param.Type != arg.Type && !(param.Type == memory.Float && arg.Type == memory.Int) {
			p.fail(errors.TypeMismatch, nameTok.Line, "argument %d to %q has the wrong type", i+1, nameTok.Lexeme)
		}
		p.quads.Emit(quad.New(quad.OpParam, arg.Addr, quad.NoAddress, param.Address))
	}
	p.quads.Emit(quad.New(quad.OpGosub, quad.NoAddress, quad.NoAddress, fn.Address))

	if fn.ReturnType == "" {
		return operand{Type: voidType, Addr: quad.NoAddress}
	}
	retType, _ := memory.TypeFromName(fn.ReturnType)
	result := p.reserveTemp(retType)
	p.quads.Emit(quad.New(quad.OpAssign, fn.ReturnAddress, quad.NoAddress, result))
	return operand{Type: retType, Addr: result}
}
