package ir

// Builder constructs resolved method bodies. It plays the role of the name
// resolver in tests and fixtures: every declaration creates a Binding in the
// current scope and references use the returned ids.
type Builder struct {
	m     *Method
	scope ScopeID
	stmts *[]Stmt
	label string
}

// NewMethod starts a method with an empty body.
func NewMethod(name string, mode Mode, result Type) *Builder {
	m := &Method{Name: name, Mode: mode, Result: result}
	m.Scope = m.NewScope(0, MethodScope)
	m.Body = &Block{Scope: m.Scope}
	return &Builder{m: m, scope: m.Scope, stmts: &m.Body.Stmts}
}

// Method returns the method being built.
func (b *Builder) Method() *Method { return b.m }

// Param declares a parameter of the method or lambda being built.
func (b *Builder) Param(name string, typ Type) BindingID {
	id := b.m.NewBinding(name, ParamBinding, b.scope, typ)
	if b.scope == b.m.Scope {
		b.m.Params = append(b.m.Params, id)
	}
	return id
}

// RefParam declares a by-reference parameter.
func (b *Builder) RefParam(name string, typ Type) BindingID {
	id := b.Param(name, typ)
	b.m.Binding(id).ByRef = true
	return id
}

// This declares the receiver of an instance method.
func (b *Builder) This() BindingID {
	if !b.m.This.IsValid() {
		b.m.This = b.m.NewBinding("this", ThisBinding, b.m.Scope, Any)
	}
	return b.m.This
}

// Local declares a local initialized to init.
func (b *Builder) Local(name string, typ Type, init Expr) BindingID {
	id := b.m.NewBinding(name, LocalBinding, b.scope, typ)
	b.emit(&Declare{Binding: id, Init: init})
	return id
}

// Labeled sets the label of the next loop.
func (b *Builder) Labeled(label string) *Builder {
	b.label = label
	return b
}

func (b *Builder) Set(id BindingID, v Expr)  { b.emit(&Assign{Target: Use(id), Value: v}) }
func (b *Builder) Assign(target, v Expr)     { b.emit(&Assign{Target: target, Value: v}) }
func (b *Builder) Do(e Expr)                 { b.emit(&ExprStmt{X: e}) }
func (b *Builder) Print(args ...Expr)        { b.Do(Host("print", args...)) }
func (b *Builder) Return(e Expr)             { b.emit(&Return{Value: e}) }
func (b *Builder) Throw(e Expr)              { b.emit(&Throw{Value: e}) }
func (b *Builder) Rethrow()                  { b.emit(&Throw{}) }
func (b *Builder) Break(label string)        { b.emit(&Break{Label: label}) }
func (b *Builder) Continue(label string)     { b.emit(&Continue{Label: label}) }
func (b *Builder) Yield(e Expr)              { b.emit(&YieldReturn{Value: e}) }
func (b *Builder) YieldBreak()               { b.emit(&YieldBreak{}) }
func (b *Builder) Await(e Expr)              { b.Do(AwaitOf(e)) }
func (b *Builder) Emit(s Stmt)               { b.emit(s) }
func (b *Builder) emit(s Stmt)               { *b.stmts = append(*b.stmts, s) }
func (b *Builder) takeLabel() (label string) { label, b.label = b.label, ""; return label }

// Block emits a nested block with its own scope.
func (b *Builder) Block(body func()) {
	b.emit(b.block(BlockScope, body))
}

func (b *Builder) block(kind ScopeKind, body func()) *Block {
	return b.blockIn(b.m.NewScope(b.scope, kind), body)
}

func (b *Builder) blockIn(scope ScopeID, body func()) *Block {
	blk := &Block{Scope: scope}
	saved, savedStmts := b.scope, b.stmts
	b.scope, b.stmts = scope, &blk.Stmts
	if body != nil {
		body()
	}
	b.scope, b.stmts = saved, savedStmts
	return blk
}

// If emits a conditional. els may be nil.
func (b *Builder) If(cond Expr, then, els func()) {
	s := &If{Cond: cond, Then: b.block(BlockScope, then)}
	if els != nil {
		s.Else = b.block(BlockScope, els)
	}
	b.emit(s)
}

// While emits a loop without iteration variables.
func (b *Builder) While(cond Expr, body func()) {
	label := b.takeLabel()
	b.emit(&Loop{Label: label, Cond: cond, Body: b.block(LoopBodyScope, body)})
}

// For emits a counting loop whose iteration variable is declared in the
// loop header.
func (b *Builder) For(name string, init Expr, cond func(i BindingID) Expr, post func(i BindingID), body func(i BindingID)) {
	label := b.takeLabel()
	header := b.m.NewScope(b.scope, LoopHeaderScope)
	i := b.m.NewBinding(name, LocalBinding, header, Int)
	loop := &Loop{Label: label, Header: header, Init: []Stmt{&Declare{Binding: i, Init: init}}}

	saved, savedStmts := b.scope, b.stmts
	b.scope = header
	loop.Cond = cond(i)
	if post != nil {
		b.stmts = &loop.Post
		post(i)
	}
	b.stmts = savedStmts
	loop.Body = b.block(LoopBodyScope, func() { body(i) })
	b.scope = saved
	b.emit(loop)
}

// Count emits `for i := from; i < to; i++`.
func (b *Builder) Count(name string, from, to int64, body func(i BindingID)) {
	b.For(name, IntLit(from),
		func(i BindingID) Expr { return BinOp(Lss, Use(i), IntLit(to)) },
		func(i BindingID) { b.Set(i, BinOp(Add, Use(i), IntLit(1))) },
		body)
}

// Foreach emits an enumeration of src.
func (b *Builder) Foreach(name string, typ Type, src Expr, body func(x BindingID)) {
	label := b.takeLabel()
	header := b.m.NewScope(b.scope, LoopHeaderScope)
	x := b.m.NewBinding(name, LocalBinding, header, typ)
	saved := b.scope
	b.scope = header
	blk := b.block(LoopBodyScope, func() { body(x) })
	b.scope = saved
	b.emit(&Foreach{Label: label, Header: header, Var: x, Source: src, Body: blk})
}

// Using emits a resource scope; the resource is disposed when body exits.
func (b *Builder) Using(name string, init Expr, body func(r BindingID)) {
	scope := b.m.NewScope(b.scope, BlockScope)
	r := b.m.NewBinding(name, LocalBinding, scope, Any)
	saved := b.scope
	b.scope = scope
	blk := b.block(BlockScope, func() { body(r) })
	b.scope = saved
	b.emit(&Using{Scope: scope, Var: r, Init: init, Body: blk})
}

// Try emits a protected region. catch and finally may be nil; the catch
// callback receives the binding of the caught exception.
func (b *Builder) Try(body func(), catch func(e BindingID), finally func()) {
	t := &Try{Body: b.block(BlockScope, body)}
	if catch != nil {
		scope := b.m.NewScope(b.scope, CatchScope)
		e := b.m.NewBinding("e", LocalBinding, scope, Any)
		t.Catch = &Catch{Scope: scope, Var: e, Body: b.blockIn(scope, func() { catch(e) })}
	}
	if finally != nil {
		t.Finally = b.block(BlockScope, finally)
	}
	b.emit(t)
}

// Lambda returns an anonymous function expression declared in the current
// scope. The body callback receives a builder positioned in the lambda body.
func (b *Builder) Lambda(mode Mode, result Type, params []string, body func(lb *Builder, params []BindingID)) *Lambda {
	scope := b.m.NewScope(b.scope, LambdaScope)
	l := &Lambda{Scope: scope, Mode: mode, Result: result, Body: &Block{Scope: scope}}
	for _, name := range params {
		l.Params = append(l.Params, b.m.NewBinding(name, ParamBinding, scope, Any))
	}
	lb := &Builder{m: b.m, scope: scope, stmts: &l.Body.Stmts}
	body(lb, l.Params)
	return l
}

// Func is a shorthand for a plain lambda.
func (b *Builder) Func(params []string, body func(lb *Builder, params []BindingID)) *Lambda {
	return b.Lambda(Plain, Any, params, body)
}

func IntLit(v int64) Expr   { return &Const{Value: v} }
func StrLit(v string) Expr  { return &Const{Value: v} }
func BoolLit(v bool) Expr   { return &Const{Value: v} }
func NilLit() Expr          { return &Const{} }
func Use(id BindingID) Expr { return &Ref{Binding: id} }

func BinOp(op Op, x, y Expr) Expr { return &Binary{Op: op, X: x, Y: y} }
func UnOp(op Op, x Expr) Expr     { return &Unary{Op: op, X: x} }

func Apply(fn Expr, args ...Expr) Expr { return &Call{Fn: fn, Args: args} }
func Host(name string, args ...Expr) Expr {
	return &Builtin{Name: name, Args: args}
}
func CallMethod(recv Expr, name string, args ...Expr) Expr {
	return &MethodCall{Recv: recv, Name: name, Args: args}
}
func InvokeMethod(name string, args ...Expr) Expr {
	return &Invoke{Method: name, Args: args}
}
func AwaitOf(x Expr) Expr { return &Await{X: x} }

// NewProgram groups built methods.
func NewProgram(methods ...*Method) *Program {
	return &Program{Methods: methods}
}
