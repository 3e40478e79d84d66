package compiler

import (
	"adeo/internal/context"
	"adeo/internal/errors"
	"adeo/internal/lexer"
	"adeo/internal/memory"
	"adeo/internal/quad"
	"adeo/internal/semantic"
)

// statement = assignment ";" | conditional | print ";" | read ";"
//           | while | for | call ";" | return ";"
func (p *Parser) statement() {
	switch {
	case p.check(lexer.TokenIf):
		p.conditionalStmt()
	case p.check(lexer.TokenWhile):
		p.whileStmt()
	case p.check(lexer.TokenFor):
		p.forStmt()
	case p.check(lexer.TokenPrint):
		p.printStmt()
		p.consume(lexer.TokenSemicolon, "expected ';' after print statement")
	case p.check(lexer.TokenRead):
		p.readStmt()
		p.consume(lexer.TokenSemicolon, "expected ';' after read statement")
	case p.check(lexer.TokenReturn):
		p.returnStmt()
		p.consume(lexer.TokenSemicolon, "expected ';' after return statement")
	case p.check(lexer.TokenIdent) && p.checkNext(lexer.TokenLParen):
		p.functionCall()
		p.consume(lexer.TokenSemicolon, "expected ';' after function call")
	case p.check(lexer.TokenIdent):
		p.assignmentStmt()
		p.consume(lexer.TokenSemicolon, "expected ';' after assignment")
	default:
		tok := p.peek()
		p.fail(errors.SyntaxError, tok.Line, "expected a statement, got %q", tok.Lexeme)
	}
}

// block = "{" varDecl* statement* "}", in a fresh Local context.
func (p *Parser) block() {
	p.blockKind(context.KindLocal)
}

// loopBlock is a block whose frame is marked as a loop body.
func (p *Parser) loopBlock() {
	p.blockKind(context.KindLoop)
}

func (p *Parser) blockKind(kind context.Kind) {
	p.consume(lexer.TokenLBrace, "expected '{'")
	p.ctx.Push(context.New(kind, p.ctx.Top().Memory))
	for p.check(lexer.TokenVar) {
		p.variablesDecl()
	}
	for !p.check(lexer.TokenRBrace) {
		p.statement()
	}
	p.ctx.Pop()
	p.consume(lexer.TokenRBrace, "expected '}'")
}

func (p *Parser) requireBool(o operand, construct string) {
	if o.Type != memory.Bool {
		p.fail(errors.TypeMismatch, p.previous().Line, "the %s condition must be boolean", construct)
	}
}

// conditionalStmt compiles `if (e) S1 [elseif (ei) Si]* [else Sn]`. See
// codegen.go for the end-jump backpatch mechanism conditionalTail relies
// on to thread every elseif's "skip the rest of the chain" jump to the
// chain's single exit point.
func (p *Parser) conditionalStmt() {
	p.consume(lexer.TokenIf, "expected 'if'")
	p.consume(lexer.TokenLParen, "expected '(' after 'if'")
	guard := p.expression()
	p.requireBool(guard, "if")
	p.consume(lexer.TokenRParen, "expected ')' after condition")
	gotofIdx := p.emitGotoF(guard.Addr)

	p.pushEndFrame()
	p.block()
	p.conditionalTail(gotofIdx)
	p.popEndFrame()
}

func (p *Parser) conditionalTail(pendingGotoF int) {
	switch {
	case p.match(lexer.TokenElseif):
		gotoIdx := p.emitGoto()
		p.addEndJump(gotoIdx)
		p.patchJumpHere(pendingGotoF)

		p.consume(lexer.TokenLParen, "expected '(' after 'elseif'")
		guard := p.expression()
		p.requireBool(guard, "elseif")
		p.consume(lexer.TokenRParen, "expected ')' after condition")
		nextGotoF := p.emitGotoF(guard.Addr)

		p.block()
		p.conditionalTail(nextGotoF)
	case p.match(lexer.TokenElse):
		gotoIdx := p.emitGoto()
		p.patchJumpHere(pendingGotoF)
		p.block()
		p.patchJumpHere(gotoIdx)
	default:
		p.patchJumpHere(pendingGotoF)
	}
}

// whileStmt compiles `while (e) S`.
func (p *Parser) whileStmt() {
	p.consume(lexer.TokenWhile, "expected 'while'")
	p.consume(lexer.TokenLParen, "expected '(' after 'while'")
	loopTop := p.quads.Len()
	guard := p.expression()
	p.requireBool(guard, "while")
	p.consume(lexer.TokenRParen, "expected ')' after condition")
	gotofIdx := p.emitGotoF(guard.Addr)

	p.loopBlock()
	p.emitGotoTo(loopTop)
	p.patchJumpHere(gotofIdx)
}

// forStmt compiles `for id = e1 to e2 do S`.
func (p *Parser) forStmt() {
	p.consume(lexer.TokenFor, "expected 'for'")
	idTok := p.consume(lexer.TokenIdent, "expected a loop variable")
	v, ok := p.ctx.GetVariable(idTok.Lexeme)
	if !ok {
		p.fail(errors.UndeclaredIdentifier, idTok.Line, "the variable %q has not been declared", idTok.Lexeme)
	}
	if v.Type != memory.Int {
		p.fail(errors.TypeMismatch, idTok.Line, "the for-loop variable %q must be an int", idTok.Lexeme)
	}

	p.consume(lexer.TokenAssign, "expected '=' after loop variable")
	init := p.expression()
	if p.cube.Result(v.Type, "=", init.Type) == semantic.Mismatch {
		p.fail(errors.TypeMismatch, idTok.Line, "the initial value does not match the loop variable's type")
	}
	p.quads.Emit(quad.New(quad.OpAssign, init.Addr, quad.NoAddress, v.Address))

	loopTop := p.quads.Len()
	p.consume(lexer.TokenTo, "expected 'to'")
	bound := p.expression()
	if bound.Type != memory.Int {
		p.fail(errors.TypeMismatch, idTok.Line, "the loop bound must be an int")
	}
	cond := p.reserveTemp(memory.Bool)
	p.quads.Emit(quad.New(quad.OpLt, v.Address, bound.Addr, cond))
	gotofIdx := p.emitGotoF(cond)

	p.consume(lexer.TokenDo, "expected 'do'")
	p.loopBlock()

	oneAddr, _ := p.constants.FindOrInsert(1)
	tmp := p.reserveTemp(memory.Int)
	p.quads.Emit(quad.New(quad.OpAdd, v.Address, oneAddr, tmp))
	p.quads.Emit(quad.New(quad.OpAssign, tmp, oneAddr, v.Address))

	p.emitGotoTo(loopTop)
	p.patchJumpHere(gotofIdx)
}

// printStmt compiles `print(e1, ..., ek)`.
func (p *Parser) printStmt() {
	tok := p.consume(lexer.TokenPrint, "expected 'print'")
	p.consume(lexer.TokenLParen, "expected '(' after 'print'")
	if p.check(lexer.TokenRParen) {
		p.fail(errors.UnsupportedOperation, tok.Line, "print requires at least one argument")
	}
	for {
		arg := p.expression()
		if arg.Type == voidType {
			p.fail(errors.UnsupportedOperation, tok.Line, "a void function cannot be used inside print")
		}
		if arg.Type == classType {
			p.fail(errors.UnsupportedOperation, tok.Line, "an object cannot be printed whole; print its attributes instead")
		}
		p.quads.Emit(quad.New(quad.OpPrint, quad.NoAddress, quad.NoAddress, arg.Addr))
		if !p.match(lexer.TokenComma) {
			break
		}
	}
	p.consume(lexer.TokenRParen, "expected ')' after print arguments")
}

// readStmt compiles `read(var)`.
func (p *Parser) readStmt() {
	p.consume(lexer.TokenRead, "expected 'read'")
	p.consume(lexer.TokenLParen, "expected '(' after 'read'")
	v := p.varRef()
	if v.Type == classType {
		p.fail(errors.UnsupportedOperation, p.previous().Line, "an object cannot be read whole; read into its attributes instead")
	}
	p.consume(lexer.TokenRParen, "expected ')' after read target")
	p.quads.Emit(quad.New(quad.OpRead, quad.NoAddress, quad.NoAddress, v.Addr))
}

// returnStmt compiles `return e`; must be inside a non-void function and
// sets that function's return-present flag.
func (p *Parser) returnStmt() {
	tok := p.consume(lexer.TokenReturn, "expected 'return'")
	fnCtx, ok := p.ctx.InFunction()
	if !ok || len(p.funcStack) == 0 {
		p.fail(errors.UnsupportedOperation, tok.Line, "return statements must be inside a function")
	}
	fnName := p.funcStack[len(p.funcStack)-1]
	fn, ok := p.functions.Get(fnName)
	if !ok {
		p.fail(errors.UndeclaredIdentifier, tok.Line, "the function %q was not declared", fnName)
	}
	if fn.ReturnType == "" {
		p.fail(errors.UnsupportedOperation, tok.Line, "a return statement cannot be used inside void function %q", fnName)
	}
	e := p.expression()
	retType, _ := memory.TypeFromName(fn.ReturnType)
	if e.Type != retType {
		p.fail(errors.ReturnTypeMismatch, tok.Line, "the returned value does not match function %q's return type", fnName)
	}
	p.quads.Emit(quad.New(quad.OpAssign, e.Addr, quad.NoAddress, fn.ReturnAddress))
	p.quads.Emit(quad.New(quad.OpEndFunc, quad.NoAddress, quad.NoAddress, quad.NoAddress))
	fn.ReturnPresent = true
	_ = fnCtx
}

// assignmentStmt compiles `var = expr`, including whole-object
// assignment between two instances of the same class.
func (p *Parser) assignmentStmt() {
	lhs := p.varRef()
	tok := p.consume(lexer.TokenAssign, "expected '=' in assignment")
	rhs := p.expression()

	if lhs.Type == classType || rhs.Type == classType {
		if lhs.Type != classType || rhs.Type != classType || lhs.Class != rhs.Class {
			p.fail(errors.TypeMismatch, tok.Line, "cannot assign %v to an object of class %q", rhs, lhs.Class)
		}
		leftCtx := p.ctx.ContainingContext(lhs.Name)
		rightCtx := p.ctx.ContainingContext(rhs.Name)
		if leftCtx == nil || rightCtx == nil {
			p.fail(errors.UndeclaredIdentifier, tok.Line, "object assignment operands must be declared variables")
		}
		leftAddrs := leftCtx.Table.AttributeAddresses(lhs.Name + ".")
		rightAddrs := rightCtx.Table.AttributeAddresses(rhs.Name + ".")
		if len(leftAddrs) != len(rightAddrs) {
			p.fail(errors.TypeMismatch, tok.Line, "mismatched attribute counts copying %q to %q", rhs.Name, lhs.Name)
		}
		for i := range leftAddrs {
			p.quads.Emit(quad.New(quad.OpAssign, rightAddrs[i], quad.NoAddress, leftAddrs[i]))
		}
		return
	}

	resultType := p.cube.Result(lhs.Type, "=", rhs.Type)
	if resultType == semantic.Mismatch {
		p.fail(errors.TypeMismatch, tok.Line, "cannot assign this value to %q", lhs.Name)
	}
	p.quads.Emit(quad.New(quad.OpAssign, rhs.Addr, quad.NoAddress, lhs.Addr))
}
