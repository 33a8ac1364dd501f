package compiler

import "github.com/stealthrocket/lowering/ir"

// unsupported rejects constructs the source language forbids in the body
// they appear in. Each offending node is reported and replaced with a
// placeholder so that the rest of the method can still be lowered.
func unsupported(m *ir.Method, diags *diagnostics) {
	c := &checker{m: m, diags: diags}
	if m.Mode.Resumable() {
		c.refParams(m.Params, m.Mode)
	}
	c.block(m.Body, checkContext{mode: m.Mode})
}

type checker struct {
	m     *ir.Method
	diags *diagnostics
}

type checkContext struct {
	mode ir.Mode
	// tryCatch is set inside the body of a try statement that has a
	// catch clause.
	tryCatch bool
	// handler is set inside catch and finally blocks.
	handler bool
}

func (c *checker) refParams(params []ir.BindingID, mode ir.Mode) {
	for _, p := range params {
		if b := c.m.Binding(p); b.ByRef {
			c.diags.report(ErrRefParamInResumable, "%s body cannot have by-reference parameter %s", mode, b.Name)
		}
	}
}

func (c *checker) block(b *ir.Block, ctx checkContext) {
	if b == nil {
		return
	}
	for i, s := range b.Stmts {
		b.Stmts[i] = c.stmt(s, ctx)
	}
}

func (c *checker) list(stmts []ir.Stmt, ctx checkContext) {
	for i, s := range stmts {
		stmts[i] = c.stmt(s, ctx)
	}
}

func (c *checker) stmt(s ir.Stmt, ctx checkContext) ir.Stmt {
	mapStmtExprs(s, func(e ir.Expr) ir.Expr { return c.expr(e, ctx) })

	switch s := s.(type) {
	case *ir.Block:
		c.block(s, ctx)
	case *ir.If:
		c.block(s.Then, ctx)
		c.block(s.Else, ctx)
	case *ir.Loop:
		c.list(s.Init, ctx)
		c.block(s.Body, ctx)
		c.list(s.Post, ctx)
	case *ir.Foreach:
		c.block(s.Body, ctx)
	case *ir.Using:
		c.block(s.Body, ctx)
	case *ir.Try:
		body := ctx
		body.tryCatch = ctx.tryCatch || s.Catch != nil
		c.block(s.Body, body)
		handler := ctx
		handler.handler = true
		if s.Catch != nil {
			c.block(s.Catch.Body, handler)
		}
		c.block(s.Finally, handler)
	case *ir.Return:
		if ctx.mode == ir.IteratorMode && s.Value != nil {
			c.diags.report(ErrReturnValueInIterator, "cannot return a value from an iterator; use yield return")
			return &ir.BadStmt{Code: string(ErrReturnValueInIterator)}
		}
	case *ir.YieldReturn:
		return c.yield(s, ctx, true)
	case *ir.YieldBreak:
		return c.yield(s, ctx, false)
	}
	return s
}

func (c *checker) yield(s ir.Stmt, ctx checkContext, value bool) ir.Stmt {
	switch {
	case ctx.mode != ir.IteratorMode:
		c.diags.report(ErrYieldOutsideIterator, "yield cannot be used in a %s body", ctx.mode)
		return &ir.BadStmt{Code: string(ErrYieldOutsideIterator)}
	case ctx.handler:
		c.diags.report(ErrYieldInHandler, "cannot yield in the body of a catch or finally clause")
		return &ir.BadStmt{Code: string(ErrYieldInHandler)}
	case ctx.tryCatch && value:
		c.diags.report(ErrYieldInTryCatch, "cannot yield a value in the body of a try block with a catch clause")
		return &ir.BadStmt{Code: string(ErrYieldInTryCatch)}
	}
	return s
}

func (c *checker) expr(e ir.Expr, ctx checkContext) ir.Expr {
	switch e := e.(type) {
	case *ir.Lambda:
		if e.Mode.Resumable() {
			c.refParams(e.Params, e.Mode)
		}
		c.block(e.Body, checkContext{mode: e.Mode})
		return e
	case *ir.Await:
		if ctx.mode != ir.AsyncMode {
			c.diags.report(ErrAwaitOutsideAsync, "await can only be used in an async body, not %s", ctx.mode)
			return &ir.Bad{Code: string(ErrAwaitOutsideAsync)}
		}
	}
	mapChildren(e, func(x ir.Expr) ir.Expr { return c.expr(x, ctx) })
	return e
}
