package irbuilder

import (
	"github.com/cppc-project/cppc/pkg/ast"
	"github.com/cppc-project/cppc/pkg/ir"
)

// lowerBlock lowers a `{ ... }` compound statement in its own variable
// scope, chaining statements backward (last statement built first, each
// earlier one's Succ pointing at the next).
func (b *Builder) lowerBlock(block *ast.Block, succ ir.Node) ir.Node {
	b.pushScope()
	defer b.popScope()
	cur := succ
	for i := len(block.Stmts) - 1; i >= 0; i-- {
		cur = b.lowerStmt(block.Stmts[i], cur)
	}
	return cur
}

// lowerStmt lowers one statement, returning the entry node of its
// instruction chain (which eventually reaches succ).
func (b *Builder) lowerStmt(s ast.Stmt, succ ir.Node) ir.Node {
	switch n := s.(type) {
	case *ast.Block:
		return b.lowerBlock(n, succ)

	case *ast.DeclStmt:
		return b.lowerDeclStmt(n, succ)

	case *ast.ExprStmt:
		_, entry, _ := b.lowerExpr(n.Expr, succ)
		return entry

	case *ast.IfStmt:
		var elseEntry ir.Node
		if n.Else != nil {
			elseEntry = b.lowerStmt(n.Else, succ)
		} else {
			elseEntry = succ
		}
		thenEntry := b.lowerStmt(n.Then, succ)
		return b.lowerCondBranch(n.Cond, thenEntry, elseEntry)

	case *ast.WhileStmt:
		return b.lowerLoop(n.Cond, nil, n.Body, succ)

	case *ast.ForStmt:
		loopEntry := b.lowerLoop(n.Cond, n.Post, n.Body, succ)
		if n.Init != nil {
			return b.lowerStmt(n.Init, loopEntry)
		}
		return loopEntry

	case *ast.DoStmt:
		return b.lowerDoLoop(n, succ)

	case *ast.SwitchStmt:
		return b.lowerSwitch(n, succ)

	case *ast.CaseStmt:
		// Only meaningful inside lowerSwitch's own statement walk; a
		// case/default label reached outside a switch body contributes no
		// code of its own.
		return succ

	case *ast.ReturnStmt:
		if n.Value == nil {
			return b.emit(ir.Ireturn{})
		}
		retNode := b.freshNode()
		t, entry, _ := b.lowerExpr(n.Value, retNode)
		b.emitAt(retNode, ir.Ireturn{Arg: &t})
		return entry

	case *ast.BreakStmt:
		if len(b.breakTargets) == 0 {
			b.errorf("break outside a loop or switch")
			return succ
		}
		return b.emit(ir.Inop{Succ: b.breakTargets[len(b.breakTargets)-1]})

	case *ast.ContinueStmt:
		if len(b.continueTargets) == 0 {
			b.errorf("continue outside a loop")
			return succ
		}
		return b.emit(ir.Inop{Succ: b.continueTargets[len(b.continueTargets)-1]})

	case *ast.GotoStmt:
		return b.emit(ir.Inop{Succ: b.reserveLabel(n.Label)})

	case *ast.LabelStmt:
		target := b.reserveLabel(n.Label)
		entry := b.lowerStmt(n.Stmt, succ)
		b.emitAt(target, ir.Inop{Succ: entry})
		return target

	case *ast.TryStmt:
		return b.lowerTry(n, succ)

	case *ast.ThrowStmt:
		return b.lowerThrow(n, succ)

	case *ast.SehTryStmt:
		return b.lowerSehTry(n, succ)

	case *ast.SehLeaveStmt:
		if len(b.sehLeaveTargets) == 0 {
			b.errorf("__leave outside a __try block")
			return succ
		}
		return b.emit(ir.Inop{Succ: b.sehLeaveTargets[len(b.sehLeaveTargets)-1]})
	}

	b.errorf("unsupported statement %T", s)
	return succ
}

func (b *Builder) lowerDeclStmt(n *ast.DeclStmt, succ ir.Node) ir.Node {
	vd, ok := n.Decl.(*ast.VarDecl)
	if !ok {
		// AliasDecl/nested StructDecl/etc.: type-only, no runtime effect.
		return succ
	}
	vt := b.resolveType(vd.Type)
	slotTemp := b.declareVar(vd.Name, vt)
	if vd.Init == nil {
		return succ
	}
	storeNode := b.freshNode()
	rt, entry, _ := b.lowerExpr(vd.Init, storeNode)
	b.emitAt(storeNode, ir.Istore{Chunk: MChunkFor(vt), Args: []ir.Temp{slotTemp}, Src: rt, Succ: succ})
	return entry
}

// lowerLoop builds a while/for-shaped loop: check cond, run body,
// (optionally) run post, repeat. continue jumps to post (or straight to
// the recheck when there is no post); break jumps past the loop.
func (b *Builder) lowerLoop(cond ast.Expr, post ast.Expr, body ast.Stmt, succAfter ir.Node) ir.Node {
	repeatNode := b.freshNode()

	var postEntry ir.Node
	if post != nil {
		_, entry, _ := b.lowerExpr(post, repeatNode)
		postEntry = entry
	} else {
		postEntry = repeatNode
	}

	b.breakTargets = append(b.breakTargets, succAfter)
	b.continueTargets = append(b.continueTargets, postEntry)
	bodyEntry := b.lowerStmt(body, postEntry)
	b.breakTargets = b.breakTargets[:len(b.breakTargets)-1]
	b.continueTargets = b.continueTargets[:len(b.continueTargets)-1]

	if cond == nil {
		b.emitAt(repeatNode, ir.Inop{Succ: bodyEntry})
		return repeatNode
	}
	condEntry := b.lowerCondBranch(cond, bodyEntry, succAfter)
	b.emitAt(repeatNode, ir.Inop{Succ: condEntry})
	return repeatNode
}

// lowerDoLoop builds a do/while loop: run body once, then check cond
// and repeat if true.
func (b *Builder) lowerDoLoop(n *ast.DoStmt, succAfter ir.Node) ir.Node {
	condRelay := b.freshNode()

	b.breakTargets = append(b.breakTargets, succAfter)
	b.continueTargets = append(b.continueTargets, condRelay)
	bodyEntry := b.lowerStmt(n.Body, condRelay)
	b.breakTargets = b.breakTargets[:len(b.breakTargets)-1]
	b.continueTargets = b.continueTargets[:len(b.continueTargets)-1]

	condEntry := b.lowerCondBranch(n.Cond, bodyEntry, succAfter)
	b.emitAt(condRelay, ir.Inop{Succ: condEntry})
	return bodyEntry
}

type switchCase struct {
	value  int64
	target ir.Node
}

// lowerSwitch walks the switch body sequentially: a CaseStmt marks the
// current accumulated successor as that value's dispatch target (it
// emits no instruction of its own), then lowering continues leftward
// exactly like an ordinary statement sequence — which is what makes
// fallthrough "free": falling off the end of one case's statements just
// continues into the next case's, since nothing jumps between them
// unless a break does.
func (b *Builder) lowerSwitch(n *ast.SwitchStmt, succAfter ir.Node) ir.Node {
	block, ok := n.Body.(*ast.Block)
	if !ok {
		block = &ast.Block{Stmts: []ast.Stmt{n.Body}}
	}

	b.breakTargets = append(b.breakTargets, succAfter)
	defer func() { b.breakTargets = b.breakTargets[:len(b.breakTargets)-1] }()

	var cases []switchCase
	var defaultTarget ir.Node = -1

	cur := succAfter
	for i := len(block.Stmts) - 1; i >= 0; i-- {
		if cs, ok := block.Stmts[i].(*ast.CaseStmt); ok {
			if cs.Value == nil {
				defaultTarget = cur
			} else {
				cases = append(cases, switchCase{value: b.evalConstInt(cs.Value), target: cur})
			}
			continue
		}
		cur = b.lowerStmt(block.Stmts[i], cur)
	}

	fallback := succAfter
	if defaultTarget != -1 {
		fallback = defaultTarget
	}

	type pending struct {
		constNode, condNode ir.Node
		vTemp               ir.Temp
		value               int64
		target, elseNode    ir.Node
	}
	var pendings []pending
	chainCur := fallback
	for _, c := range cases {
		constNode := b.freshNode()
		condNode := b.freshNode()
		vTemp := b.freshTemp()
		pendings = append(pendings, pending{constNode, condNode, vTemp, c.value, c.target, chainCur})
		chainCur = constNode
	}

	tagTemp, tagEntry, _ := b.lowerExpr(n.Tag, chainCur)
	for _, p := range pendings {
		b.emitAt(p.constNode, ir.Iop{Op: ir.OIntConst, Dest: p.vTemp, Imm: p.value, FBits: 32, Succ: p.condNode})
		b.emitAt(p.condNode, ir.Icond{Cond: ir.CEq, Args: []ir.Temp{tagTemp, p.vTemp}, IfSo: p.target, IfNot: p.elseNode})
	}
	return tagEntry
}

// evalConstInt evaluates a case label's constant expression. Only the
// small grammar actually legal in a case label is supported: integer
// literals, their unary negation, and qualified enum constants.
func (b *Builder) evalConstInt(e ast.Expr) int64 {
	switch n := e.(type) {
	case *ast.NumericLit:
		return n.IntVal
	case *ast.UnaryExpr:
		if n.Op == ast.UnaryNeg {
			return -b.evalConstInt(n.Operand)
		}
	case *ast.QualifiedIdent:
		if _, v, ok := b.lookupQualifiedConstant(n); ok {
			return v
		}
	}
	b.errorf("unsupported case-label constant expression")
	return 0
}

func (b *Builder) lowerTry(n *ast.TryStmt, succ ir.Node) ir.Node {
	endNode := b.emit(ir.Iexcept{Kind: ir.ETryEnd, Succ: succ})

	var handlerEntries []ir.Node
	for i := len(n.Handlers) - 1; i >= 0; i-- {
		h := n.Handlers[i]
		typeName := ""
		if !h.CatchAll && h.Type != nil {
			typeName = h.Type.Name
		}
		if h.Name != "" && h.Type != nil {
			b.pushScope()
			b.declareVar(h.Name, b.resolveType(h.Type))
		}
		bodyEntry := b.lowerBlock(h.Body, endNode)
		if h.Name != "" && h.Type != nil {
			b.popScope()
		}
		catchBegin := b.emit(ir.Iexcept{Kind: ir.ECatchBegin, TypeName: typeName, Succ: bodyEntry})
		handlerEntries = append(handlerEntries, catchBegin)
	}

	bodyEntry := b.lowerBlock(n.Body, endNode)
	tryBegin := b.emit(ir.Iexcept{Kind: ir.ETryBegin, Succ: bodyEntry})
	_ = handlerEntries // consumed by the emitter's unwind-table builder, which walks Iexcept markers directly rather than this slice
	return tryBegin
}

func (b *Builder) lowerThrow(n *ast.ThrowStmt, succ ir.Node) ir.Node {
	if n.Value == nil {
		return b.emit(ir.Iexcept{Kind: ir.ERethrow, Succ: succ})
	}
	throwNode := b.freshNode()
	t, entry, vt := b.lowerExpr(n.Value, throwNode)
	b.emitAt(throwNode, ir.Iexcept{Kind: ir.EThrow, TypeName: vt.StructName, Value: &t, Succ: succ})
	return entry
}

func (b *Builder) lowerSehTry(n *ast.SehTryStmt, succ ir.Node) ir.Node {
	end := b.emit(ir.Iseh{Kind: ir.SSehTryEnd, Succ: succ})

	leaveTarget := end
	b.sehLeaveTargets = append(b.sehLeaveTargets, leaveTarget)
	bodyEntry := b.lowerBlock(n.Body, end)
	b.sehLeaveTargets = b.sehLeaveTargets[:len(b.sehLeaveTargets)-1]
	tryBegin := b.emit(ir.Iseh{Kind: ir.SSehTryBegin, Succ: bodyEntry})

	if n.Except != nil {
		exceptBody := b.lowerBlock(n.Except, end)
		exceptBegin := b.emit(ir.Iseh{Kind: ir.SSehExceptBegin, Succ: exceptBody})
		_ = exceptBegin
	}
	if n.Finally != nil {
		finallyBody := b.lowerBlock(n.Finally, end)
		finallyBegin := b.emit(ir.Iseh{Kind: ir.SSehFinallyBegin, Succ: finallyBody})
		_ = finallyBegin
	}
	return tryBegin
}
