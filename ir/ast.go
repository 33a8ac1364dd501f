// Package ir defines the resolved tree consumed and produced by the
// lowering pass.
//
// Every identifier in the tree has already been resolved to a Binding of
// the enclosing Method, and every anonymous function carries its mode
// (plain, iterator or async). The special forms Lambda, Await, YieldReturn
// and YieldBreak only appear before lowering. The forms Slot, Self, Env,
// NewFrame, MakeClosure, MakeMachine and Continuation only appear after.
package ir

// Node is implemented by all statements and expressions.
type Node interface{ node() }

// Stmt is a statement node.
type Stmt interface {
	Node
	stmt()
}

// Expr is an expression node.
type Expr interface {
	Node
	expr()
}

// Block is a sequence of statements evaluated in Scope. A labeled block can
// be the target of a Break.
type Block struct {
	Scope ScopeID
	Label string
	Stmts []Stmt
}

// Declare introduces Binding in the current scope. A nil Init resets the
// binding to the zero value of its type.
type Declare struct {
	Binding BindingID
	Init    Expr
}

type ExprStmt struct{ X Expr }

// Assign stores Value into Target, which is a Ref or a Slot.
type Assign struct {
	Target Expr
	Value  Expr
}

type If struct {
	Cond Expr
	Then *Block
	Else *Block
}

// Loop runs Init once, then repeats: evaluate Cond (nil means true), run
// Body, run Post. Continue jumps to Post. Header is the scope declaring the
// iteration variables, if any.
type Loop struct {
	Label  string
	Header ScopeID
	Init   []Stmt
	Cond   Expr
	Body   *Block
	Post   []Stmt
}

// Foreach enumerates Source, binding each element to Var. Header is the
// scope that declares Var.
type Foreach struct {
	Label  string
	Header ScopeID
	Var    BindingID
	Source Expr
	Body   *Block
}

// Using binds Var to Init for the duration of Body and disposes it after.
type Using struct {
	Scope ScopeID
	Var   BindingID
	Init  Expr
	Body  *Block
}

type Break struct{ Label string }

type Continue struct{ Label string }

type Return struct{ Value Expr }

// Throw raises Value. A nil Value rethrows the exception being handled.
type Throw struct{ Value Expr }

type Try struct {
	Body    *Block
	Catch   *Catch
	Finally *Block
}

// Catch handles any exception raised in a Try body. Var may be invalid when
// the exception is not bound.
type Catch struct {
	Scope ScopeID
	Var   BindingID
	Body  *Block
}

type YieldReturn struct{ Value Expr }

type YieldBreak struct{}

// BadStmt replaces a statement that was rejected with a diagnostic.
type BadStmt struct{ Code string }

// Const is a literal: int64, bool, string or nil.
type Const struct{ Value any }

// Ref reads or writes a binding.
type Ref struct{ Binding BindingID }

type Op string

const (
	Add Op = "+"
	Sub Op = "-"
	Mul Op = "*"
	Div Op = "/"
	Rem Op = "%"
	Eql Op = "=="
	Neq Op = "!="
	Lss Op = "<"
	Leq Op = "<="
	Gtr Op = ">"
	Geq Op = ">="
	And Op = "&&"
	Or  Op = "||"
	Not Op = "!"
	Neg Op = "neg"
)

type Unary struct {
	Op Op
	X  Expr
}

type Binary struct {
	Op   Op
	X, Y Expr
}

// Call invokes a callable value.
type Call struct {
	Fn   Expr
	Args []Expr
}

// Invoke calls a method of the program by name.
type Invoke struct {
	Method string
	This   Expr
	Args   []Expr
}

// MethodCall invokes a protocol method on a runtime value (MoveNext,
// Current, Dispose, GetEnumerator, GetAwaiter, IsCompleted, OnCompleted,
// GetResult, SetResult, SetException).
type MethodCall struct {
	Recv Expr
	Name string
	Args []Expr
}

// Builtin calls a host function.
type Builtin struct {
	Name string
	Args []Expr
}

// Lambda is an anonymous function. Scope is the root scope of the body and
// declares the parameters.
type Lambda struct {
	Scope  ScopeID
	Params []BindingID
	Mode   Mode
	Result Type
	Body   *Block
}

type Await struct{ X Expr }

// Bad replaces an expression that was rejected with a diagnostic.
type Bad struct{ Code string }

// Slot addresses field Index of the frame reached by following Hops parent
// links from Frame.
type Slot struct {
	Frame Expr
	Hops  int
	Index int
}

// Self is the machine frame inside MoveNext and Dispose.
type Self struct{}

// Env is the environment frame of the running closure unit.
type Env struct{}

// NewFrame allocates a frame of Type whose parent is Parent (nil for none).
type NewFrame struct {
	Type   *FrameType
	Parent Expr
}

// MakeClosure produces a callable handle for a closure unit bound to Env.
// Cached units produce one shared instance.
type MakeClosure struct {
	Unit   *Unit
	Env    Expr
	Cached bool
}

// MakeMachine wraps an initialized machine frame into the runtime object of
// Unit: an enumerator or enumerable for iterators, a started task for async
// units.
type MakeMachine struct {
	Unit  *Unit
	Frame Expr
}

// Continuation is a callable that resumes Machine.
type Continuation struct{ Machine Expr }

func (*Block) node()       {}
func (*Declare) node()     {}
func (*ExprStmt) node()    {}
func (*Assign) node()      {}
func (*If) node()          {}
func (*Loop) node()        {}
func (*Foreach) node()     {}
func (*Using) node()       {}
func (*Break) node()       {}
func (*Continue) node()    {}
func (*Return) node()      {}
func (*Throw) node()       {}
func (*Try) node()         {}
func (*Catch) node()       {}
func (*YieldReturn) node() {}
func (*YieldBreak) node()  {}
func (*BadStmt) node()     {}

func (*Block) stmt()       {}
func (*Declare) stmt()     {}
func (*ExprStmt) stmt()    {}
func (*Assign) stmt()      {}
func (*If) stmt()          {}
func (*Loop) stmt()        {}
func (*Foreach) stmt()     {}
func (*Using) stmt()       {}
func (*Break) stmt()       {}
func (*Continue) stmt()    {}
func (*Return) stmt()      {}
func (*Throw) stmt()       {}
func (*Try) stmt()         {}
func (*YieldReturn) stmt() {}
func (*YieldBreak) stmt()  {}
func (*BadStmt) stmt()     {}

func (*Const) node()        {}
func (*Ref) node()          {}
func (*Unary) node()        {}
func (*Binary) node()       {}
func (*Call) node()         {}
func (*Invoke) node()       {}
func (*MethodCall) node()   {}
func (*Builtin) node()      {}
func (*Lambda) node()       {}
func (*Await) node()        {}
func (*Bad) node()          {}
func (*Slot) node()         {}
func (*Self) node()         {}
func (*Env) node()          {}
func (*NewFrame) node()     {}
func (*MakeClosure) node()  {}
func (*MakeMachine) node()  {}
func (*Continuation) node() {}

func (*Const) expr()        {}
func (*Ref) expr()          {}
func (*Unary) expr()        {}
func (*Binary) expr()       {}
func (*Call) expr()         {}
func (*Invoke) expr()       {}
func (*MethodCall) expr()   {}
func (*Builtin) expr()      {}
func (*Lambda) expr()       {}
func (*Await) expr()        {}
func (*Bad) expr()          {}
func (*Slot) expr()         {}
func (*Self) expr()         {}
func (*Env) expr()          {}
func (*NewFrame) expr()     {}
func (*MakeClosure) expr()  {}
func (*MakeMachine) expr()  {}
func (*Continuation) expr() {}
