package compiler

import (
	"adeo/internal/errors"
	"adeo/internal/memory"
	"adeo/internal/quad"
)

// Jump targets are never raw quadruple indices; they are addresses of
// integer constants in the constant pool, which keeps every quadruple
// field uniformly interpretable as "address of a cell" at the cost of
// one indirection per jump. emitGotoF/emitGoto leave the target field
// pointing at NoAddress and record which quadruple needs patching;
// patchJumpHere and emitGotoTo are the only two places that materialize
// a target address, by inserting it into the constant pool.

// emitGotoF emits a GOTOF guarded by guardAddr, returning its index for
// later patching.
func (p *Parser) emitGotoF(guardAddr int) int {
	return p.quads.Emit(quad.New(quad.OpGotoF, guardAddr, quad.NoAddress, quad.NoAddress))
}

// emitGoto emits an unconditional GOTO, returning its index for later
// patching.
func (p *Parser) emitGoto() int {
	return p.quads.Emit(quad.New(quad.OpGoto, quad.NoAddress, quad.NoAddress, quad.NoAddress))
}

// emitGotoTo emits a GOTO whose target is already known (a backward jump
// to loopTop).
func (p *Parser) emitGotoTo(target int) {
	targetAddr, _ := p.constants.FindOrInsert(target)
	p.quads.Emit(quad.New(quad.OpGoto, quad.NoAddress, quad.NoAddress, targetAddr))
}

// patchJumpHere backpatches the quadruple at idx so its target is the
// current instruction pointer.
func (p *Parser) patchJumpHere(idx int) {
	targetAddr, _ := p.constants.FindOrInsert(p.quads.Len())
	q := p.quads.Get(idx)
	q.Result = targetAddr
	p.quads.Set(idx, q)
}

// pushEndFrame opens a new nesting level for a conditional chain's
// deferred "skip to the very end" jumps.
func (p *Parser) pushEndFrame() {
	p.endCountStack = append(p.endCountStack, 0)
}

// addEndJump records a GOTO (already emitted at idx) as belonging to the
// innermost open conditional chain; it is patched when that chain's
// frame is popped.
func (p *Parser) addEndJump(idx int) {
	p.endJumpsStack = append(p.endJumpsStack, idx)
	top := len(p.endCountStack) - 1
	p.endCountStack[top]++
}

// popEndFrame patches every GOTO queued in the innermost frame to the
// current instruction pointer, then discards the frame.
func (p *Parser) popEndFrame() {
	top := len(p.endCountStack) - 1
	n := p.endCountStack[top]
	p.endCountStack = p.endCountStack[:top]
	for i := 0; i < n; i++ {
		idx := p.endJumpsStack[len(p.endJumpsStack)-1]
		p.endJumpsStack = p.endJumpsStack[:len(p.endJumpsStack)-1]
		p.patchJumpHere(idx)
	}
}

// reserveTemp allocates one temporal cell of type t in the innermost
// context's memory manager, for an intermediate expression result.
func (p *Parser) reserveTemp(t memory.Type) int {
	addr, err := p.ctx.Top().Memory.Reserve(t, 1)
	if err != nil {
		// Capacity overflow has no dedicated kind in the closed error set;
		// it is reported as an unsupported operation, the closest fit.
		p.fail(errors.UnsupportedOperation, p.peek().Line, "%s", err)
	}
	return addr
}
