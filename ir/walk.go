package ir

import "fmt"

// Inspect traverses the tree rooted at n in depth-first order. If f returns
// false, the children of the node are skipped. Lambda bodies are visited.
// A nil *Block is treated as an empty tree.
func Inspect(n Node, f func(Node) bool) {
	if b, ok := n.(*Block); ok && b == nil {
		return
	}
	if n == nil || !f(n) {
		return
	}
	switch n := n.(type) {
	case *Block:
		for _, s := range n.Stmts {
			Inspect(s, f)
		}
	case *Declare:
		inspectExpr(n.Init, f)
	case *ExprStmt:
		Inspect(n.X, f)
	case *Assign:
		Inspect(n.Target, f)
		Inspect(n.Value, f)
	case *If:
		Inspect(n.Cond, f)
		Inspect(n.Then, f)
		Inspect(n.Else, f)
	case *Loop:
		for _, s := range n.Init {
			Inspect(s, f)
		}
		inspectExpr(n.Cond, f)
		Inspect(n.Body, f)
		for _, s := range n.Post {
			Inspect(s, f)
		}
	case *Foreach:
		Inspect(n.Source, f)
		Inspect(n.Body, f)
	case *Using:
		Inspect(n.Init, f)
		Inspect(n.Body, f)
	case *Return:
		inspectExpr(n.Value, f)
	case *Throw:
		inspectExpr(n.Value, f)
	case *Try:
		Inspect(n.Body, f)
		if n.Catch != nil {
			Inspect(n.Catch, f)
		}
		if n.Finally != nil {
			Inspect(n.Finally, f)
		}
	case *Catch:
		Inspect(n.Body, f)
	case *YieldReturn:
		inspectExpr(n.Value, f)
	case *Unary:
		Inspect(n.X, f)
	case *Binary:
		Inspect(n.X, f)
		Inspect(n.Y, f)
	case *Call:
		Inspect(n.Fn, f)
		inspectList(n.Args, f)
	case *Invoke:
		inspectExpr(n.This, f)
		inspectList(n.Args, f)
	case *MethodCall:
		Inspect(n.Recv, f)
		inspectList(n.Args, f)
	case *Builtin:
		inspectList(n.Args, f)
	case *Lambda:
		Inspect(n.Body, f)
	case *Await:
		Inspect(n.X, f)
	case *Slot:
		Inspect(n.Frame, f)
	case *NewFrame:
		inspectExpr(n.Parent, f)
	case *MakeClosure:
		inspectExpr(n.Env, f)
	case *MakeMachine:
		Inspect(n.Frame, f)
	case *Continuation:
		Inspect(n.Machine, f)
	case *Break, *Continue, *YieldBreak, *BadStmt, *Const, *Ref, *Bad, *Self, *Env:
	default:
		panic(fmt.Sprintf("ir.Inspect: unexpected node %T", n))
	}
}

func inspectExpr(e Expr, f func(Node) bool) {
	if e != nil {
		Inspect(e, f)
	}
}

func inspectList(list []Expr, f func(Node) bool) {
	for _, e := range list {
		Inspect(e, f)
	}
}

// Contains reports whether any node in the tree rooted at n satisfies pred.
// Lambda bodies are not searched.
func Contains(n Node, pred func(Node) bool) bool {
	found := false
	Inspect(n, func(n Node) bool {
		if found {
			return false
		}
		if pred(n) {
			found = true
			return false
		}
		_, isLambda := n.(*Lambda)
		return !isLambda
	})
	return found
}

// IsSpecial reports whether n is a form that lowering removes.
func IsSpecial(n Node) bool {
	switch n.(type) {
	case *Lambda, *Await, *YieldReturn, *YieldBreak:
		return true
	}
	return false
}

// IsSuspension reports whether n is an await or a yield.
func IsSuspension(n Node) bool {
	switch n.(type) {
	case *Await, *YieldReturn:
		return true
	}
	return false
}

// CloneBlock returns a deep copy of b. Units and frame types referenced by
// lowered forms are shared.
func CloneBlock(b *Block) *Block {
	if b == nil {
		return nil
	}
	return &Block{Scope: b.Scope, Label: b.Label, Stmts: CloneStmts(b.Stmts)}
}

func CloneStmts(list []Stmt) []Stmt {
	if list == nil {
		return nil
	}
	out := make([]Stmt, len(list))
	for i, s := range list {
		out[i] = CloneStmt(s)
	}
	return out
}

func CloneStmt(s Stmt) Stmt {
	switch s := s.(type) {
	case nil:
		return nil
	case *Block:
		return CloneBlock(s)
	case *Declare:
		return &Declare{Binding: s.Binding, Init: CloneExpr(s.Init)}
	case *ExprStmt:
		return &ExprStmt{X: CloneExpr(s.X)}
	case *Assign:
		return &Assign{Target: CloneExpr(s.Target), Value: CloneExpr(s.Value)}
	case *If:
		return &If{Cond: CloneExpr(s.Cond), Then: CloneBlock(s.Then), Else: CloneBlock(s.Else)}
	case *Loop:
		return &Loop{
			Label:  s.Label,
			Header: s.Header,
			Init:   CloneStmts(s.Init),
			Cond:   CloneExpr(s.Cond),
			Body:   CloneBlock(s.Body),
			Post:   CloneStmts(s.Post),
		}
	case *Foreach:
		return &Foreach{Label: s.Label, Header: s.Header, Var: s.Var, Source: CloneExpr(s.Source), Body: CloneBlock(s.Body)}
	case *Using:
		return &Using{Scope: s.Scope, Var: s.Var, Init: CloneExpr(s.Init), Body: CloneBlock(s.Body)}
	case *Break:
		return &Break{Label: s.Label}
	case *Continue:
		return &Continue{Label: s.Label}
	case *Return:
		return &Return{Value: CloneExpr(s.Value)}
	case *Throw:
		return &Throw{Value: CloneExpr(s.Value)}
	case *Try:
		t := &Try{Body: CloneBlock(s.Body), Finally: CloneBlock(s.Finally)}
		if s.Catch != nil {
			t.Catch = &Catch{Scope: s.Catch.Scope, Var: s.Catch.Var, Body: CloneBlock(s.Catch.Body)}
		}
		return t
	case *YieldReturn:
		return &YieldReturn{Value: CloneExpr(s.Value)}
	case *YieldBreak:
		return &YieldBreak{}
	case *BadStmt:
		return &BadStmt{Code: s.Code}
	default:
		panic(fmt.Sprintf("ir.CloneStmt: unexpected node %T", s))
	}
}

func CloneExprs(list []Expr) []Expr {
	if list == nil {
		return nil
	}
	out := make([]Expr, len(list))
	for i, e := range list {
		out[i] = CloneExpr(e)
	}
	return out
}

func CloneExpr(e Expr) Expr {
	switch e := e.(type) {
	case nil:
		return nil
	case *Const:
		return &Const{Value: e.Value}
	case *Ref:
		return &Ref{Binding: e.Binding}
	case *Unary:
		return &Unary{Op: e.Op, X: CloneExpr(e.X)}
	case *Binary:
		return &Binary{Op: e.Op, X: CloneExpr(e.X), Y: CloneExpr(e.Y)}
	case *Call:
		return &Call{Fn: CloneExpr(e.Fn), Args: CloneExprs(e.Args)}
	case *Invoke:
		return &Invoke{Method: e.Method, This: CloneExpr(e.This), Args: CloneExprs(e.Args)}
	case *MethodCall:
		return &MethodCall{Recv: CloneExpr(e.Recv), Name: e.Name, Args: CloneExprs(e.Args)}
	case *Builtin:
		return &Builtin{Name: e.Name, Args: CloneExprs(e.Args)}
	case *Lambda:
		return &Lambda{
			Scope:  e.Scope,
			Params: append([]BindingID(nil), e.Params...),
			Mode:   e.Mode,
			Result: e.Result,
			Body:   CloneBlock(e.Body),
		}
	case *Await:
		return &Await{X: CloneExpr(e.X)}
	case *Bad:
		return &Bad{Code: e.Code}
	case *Slot:
		return &Slot{Frame: CloneExpr(e.Frame), Hops: e.Hops, Index: e.Index}
	case *Self:
		return &Self{}
	case *Env:
		return &Env{}
	case *NewFrame:
		return &NewFrame{Type: e.Type, Parent: CloneExpr(e.Parent)}
	case *MakeClosure:
		return &MakeClosure{Unit: e.Unit, Env: CloneExpr(e.Env), Cached: e.Cached}
	case *MakeMachine:
		return &MakeMachine{Unit: e.Unit, Frame: CloneExpr(e.Frame)}
	case *Continuation:
		return &Continuation{Machine: CloneExpr(e.Machine)}
	default:
		panic(fmt.Sprintf("ir.CloneExpr: unexpected node %T", e))
	}
}

// CloneMethod returns a copy of m whose body and tables can be modified
// without affecting m. Bindings and scopes are copied by value.
func CloneMethod(m *Method) *Method {
	c := *m
	c.Params = append([]BindingID(nil), m.Params...)
	c.Body = CloneBlock(m.Body)
	c.Bindings = make([]*Binding, len(m.Bindings))
	for i, b := range m.Bindings {
		nb := *b
		c.Bindings[i] = &nb
	}
	c.Scopes = make([]*Scope, len(m.Scopes))
	for i, s := range m.Scopes {
		ns := *s
		ns.Bindings = append([]BindingID(nil), s.Bindings...)
		c.Scopes[i] = &ns
	}
	c.Units = append([]*Unit(nil), m.Units...)
	c.Frames = append([]*FrameType(nil), m.Frames...)
	return &c
}
