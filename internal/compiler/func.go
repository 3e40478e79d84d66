package compiler

import (
	"adeo/internal/context"
	"adeo/internal/errors"
	"adeo/internal/lexer"
	"adeo/internal/memory"
	"adeo/internal/quad"
)

// functionDecl = (type | "void") "function" ID "(" params? ")" block
func (p *Parser) functionDecl() {
	var returnTypeName string
	if p.match(lexer.TokenVoid) {
		returnTypeName = ""
	} else {
		returnTypeName = typeName(p.parseTypeName())
	}
	p.consume(lexer.TokenFunction, "expected 'function'")
	nameTok := p.consume(lexer.TokenIdent, "expected a function name")

	if p.functions.Exists(nameTok.Lexeme) {
		p.fail(errors.RedeclarationError, nameTok.Line, "a function named %q already exists", nameTok.Lexeme)
	}

	var returnAddr int = quad.NoAddress
	if returnTypeName != "" {
		retType, _ := memory.TypeFromName(returnTypeName)
		returnAddr, _ = p.global.Reserve(retType, 1)
	}
	nameAddr, _ := p.global.FindOrInsert(nameTok.Lexeme)
	fn, err := p.functions.Add(nameTok.Lexeme, returnTypeName, returnAddr)
	if err != nil {
		p.fail(errors.RedeclarationError, nameTok.Line, "%s", err)
	}
	fn.Address = nameAddr

	fnCtx := context.New(context.KindFunction, p.temporal)
	p.ctx.Push(fnCtx)

	p.consume(lexer.TokenLParen, "expected '(' after function name")
	if !p.check(lexer.TokenRParen) {
		for {
			paramType := p.parseTypeName()
			paramTok := p.consume(lexer.TokenIdent, "expected a parameter name")
			if fnCtx.Exists(paramTok.Lexeme) {
				p.fail(errors.RedeclarationError, paramTok.Line, "a parameter named %q already exists", paramTok.Lexeme)
			}
			param, declErr := fnCtx.Declare(paramTok.Lexeme, paramType, nil)
			if declErr != nil {
				p.fail(errors.RedeclarationError, paramTok.Line, "%s", declErr)
			}
			fn.Parameters = append(fn.Parameters, param)
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRParen, "expected ')' after parameters")

	fn.InitialQuad = p.quads.Len()
	p.funcStack = append(p.funcStack, nameTok.Lexeme)

	p.consume(lexer.TokenLBrace, "expected '{' to start function body")
	for p.check(lexer.TokenVar) {
		p.variablesDecl()
	}
	for !p.check(lexer.TokenRBrace) {
		p.statement()
	}
	closeTok := p.consume(lexer.TokenRBrace, "expected '}' to close function body")

	if returnTypeName != "" && !fn.ReturnPresent {
		p.fail(errors.ReturnStatementMissing, closeTok.Line, "function %q is missing a return statement", nameTok.Lexeme)
	}
	if returnTypeName == "" {
		p.quads.Emit(quad.New(quad.OpEndFunc, quad.NoAddress, quad.NoAddress, quad.NoAddress))
	}
	fn.Resources = fnCtx.Memory.Resources()
	p.temporal.Clear()

	p.funcStack = p.funcStack[:len(p.funcStack)-1]
	p.ctx.Pop()
}

func typeName(t memory.Type) string {
	switch t {
	case memory.Int:
		return "int"
	case memory.Float:
		return "float"
	case memory.String:
		return "string"
	case memory.Bool:
		return "bool"
	default:
		return ""
	}
}
