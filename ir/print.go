package ir

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Fprint writes a readable rendering of m, followed by its frame types and
// units when the method has been lowered.
func Fprint(w io.Writer, m *Method) error {
	p := &printer{m: m}
	p.method()
	_, err := io.WriteString(w, p.String())
	return err
}

// Sprint returns the rendering of a single node of m.
func Sprint(m *Method, n Node) string {
	p := &printer{m: m}
	switch n := n.(type) {
	case Stmt:
		p.stmt(n)
	case Expr:
		p.WriteString(p.expr(n))
	}
	return p.String()
}

type printer struct {
	strings.Builder
	m      *Method
	indent int
}

func (p *printer) line(format string, args ...any) {
	p.WriteString(strings.Repeat("\t", p.indent))
	fmt.Fprintf(p, format, args...)
	p.WriteByte('\n')
}

func (p *printer) method() {
	var params []string
	for _, id := range p.m.Params {
		params = append(params, p.name(id))
	}
	p.line("%s method %s(%s) %s {", p.m.Mode, p.m.Name, strings.Join(params, ", "), p.m.Result)
	p.block(p.m.Body)
	p.line("}")

	for _, f := range p.m.Frames {
		var slots []string
		for _, s := range f.Slots {
			slots = append(slots, s.Name)
		}
		parent := "-"
		if f.Parent != nil {
			parent = f.Parent.Name
		}
		p.line("frame %s parent=%s {%s}", f.Name, parent, strings.Join(slots, ", "))
	}
	for _, u := range p.m.Units {
		p.unit(u)
	}
}

func (p *printer) unit(u *Unit) {
	env := "-"
	if u.Env != nil {
		env = u.Env.Name
	}
	p.line("%s unit %s env=%s {", u.Kind(), u.Name, env)
	p.indent++
	switch c := u.Code.(type) {
	case *ClosureCode:
		var params []string
		for _, id := range c.Params {
			params = append(params, p.name(id))
		}
		p.line("Invoke(%s) {", strings.Join(params, ", "))
		p.block(c.Invoke)
		p.line("}")
	case *IteratorCode:
		p.line("MoveNext() {")
		p.block(c.MoveNext)
		p.line("}")
		p.line("Dispose() {")
		p.block(c.Dispose)
		p.line("}")
	case *AsyncCode:
		p.line("MoveNext() {")
		p.block(c.MoveNext)
		p.line("}")
	}
	p.indent--
	p.line("}")
}

func (p *printer) block(b *Block) {
	p.indent++
	for _, s := range b.Stmts {
		p.stmt(s)
	}
	p.indent--
}

func (p *printer) stmt(s Stmt) {
	switch s := s.(type) {
	case *Block:
		if s.Label != "" {
			p.line("%s: {", s.Label)
		} else {
			p.line("{")
		}
		p.block(s)
		p.line("}")
	case *Declare:
		if s.Init == nil {
			p.line("var %s", p.name(s.Binding))
		} else {
			p.line("var %s = %s", p.name(s.Binding), p.expr(s.Init))
		}
	case *ExprStmt:
		p.line("%s", p.expr(s.X))
	case *Assign:
		p.line("%s = %s", p.expr(s.Target), p.expr(s.Value))
	case *If:
		p.line("if %s {", p.expr(s.Cond))
		p.block(s.Then)
		if s.Else != nil {
			p.line("} else {")
			p.block(s.Else)
		}
		p.line("}")
	case *Loop:
		if s.Label != "" {
			p.line("%s:", s.Label)
		}
		p.line("loop {")
		p.indent++
		for _, init := range s.Init {
			p.stmt(init)
		}
		if s.Cond != nil {
			p.line("while %s", p.expr(s.Cond))
		}
		p.indent--
		p.block(s.Body)
		if len(s.Post) > 0 {
			p.line("} post {")
			p.indent++
			for _, post := range s.Post {
				p.stmt(post)
			}
			p.indent--
		}
		p.line("}")
	case *Foreach:
		p.line("foreach %s in %s {", p.name(s.Var), p.expr(s.Source))
		p.block(s.Body)
		p.line("}")
	case *Using:
		p.line("using %s = %s {", p.name(s.Var), p.expr(s.Init))
		p.block(s.Body)
		p.line("}")
	case *Break:
		p.line("break %s", s.Label)
	case *Continue:
		p.line("continue %s", s.Label)
	case *Return:
		if s.Value == nil {
			p.line("return")
		} else {
			p.line("return %s", p.expr(s.Value))
		}
	case *Throw:
		if s.Value == nil {
			p.line("throw")
		} else {
			p.line("throw %s", p.expr(s.Value))
		}
	case *Try:
		p.line("try {")
		p.block(s.Body)
		if s.Catch != nil {
			if s.Catch.Var.IsValid() {
				p.line("} catch %s {", p.name(s.Catch.Var))
			} else {
				p.line("} catch {")
			}
			p.block(s.Catch.Body)
		}
		if s.Finally != nil {
			p.line("} finally {")
			p.block(s.Finally)
		}
		p.line("}")
	case *YieldReturn:
		p.line("yield return %s", p.expr(s.Value))
	case *YieldBreak:
		p.line("yield break")
	case *BadStmt:
		p.line("<bad %s>", s.Code)
	default:
		p.line("<%T>", s)
	}
}

func (p *printer) exprs(list []Expr) string {
	parts := make([]string, len(list))
	for i, e := range list {
		parts[i] = p.expr(e)
	}
	return strings.Join(parts, ", ")
}

func (p *printer) expr(e Expr) string {
	switch e := e.(type) {
	case nil:
		return "<nil>"
	case *Const:
		switch v := e.Value.(type) {
		case nil:
			return "nil"
		case string:
			return strconv.Quote(v)
		default:
			return fmt.Sprint(v)
		}
	case *Ref:
		return p.name(e.Binding)
	case *Unary:
		if e.Op == Neg {
			return "-" + p.expr(e.X)
		}
		return string(e.Op) + p.expr(e.X)
	case *Binary:
		return "(" + p.expr(e.X) + " " + string(e.Op) + " " + p.expr(e.Y) + ")"
	case *Call:
		return p.expr(e.Fn) + "(" + p.exprs(e.Args) + ")"
	case *Invoke:
		if e.This != nil {
			return p.expr(e.This) + "." + e.Method + "(" + p.exprs(e.Args) + ")"
		}
		return e.Method + "(" + p.exprs(e.Args) + ")"
	case *MethodCall:
		return p.expr(e.Recv) + "." + e.Name + "(" + p.exprs(e.Args) + ")"
	case *Builtin:
		return "@" + e.Name + "(" + p.exprs(e.Args) + ")"
	case *Lambda:
		var params []string
		for _, id := range e.Params {
			params = append(params, p.name(id))
		}
		var sub strings.Builder
		sub.WriteString(e.Mode.String() + " func(" + strings.Join(params, ", ") + ") {\n")
		q := &printer{m: p.m, indent: p.indent + 1}
		for _, s := range e.Body.Stmts {
			q.stmt(s)
		}
		sub.WriteString(q.String())
		sub.WriteString(strings.Repeat("\t", p.indent) + "}")
		return sub.String()
	case *Await:
		return "await " + p.expr(e.X)
	case *Bad:
		return "<bad " + e.Code + ">"
	case *Slot:
		base := p.expr(e.Frame)
		for i := 0; i < e.Hops; i++ {
			base += ".parent"
		}
		return base + "[" + strconv.Itoa(e.Index) + "]"
	case *Self:
		return "self"
	case *Env:
		return "env"
	case *NewFrame:
		parent := "nil"
		if e.Parent != nil {
			parent = p.expr(e.Parent)
		}
		return "new " + e.Type.Name + "(" + parent + ")"
	case *MakeClosure:
		if e.Cached {
			return "closure " + e.Unit.Name + " cached"
		}
		env := "nil"
		if e.Env != nil {
			env = p.expr(e.Env)
		}
		return "closure " + e.Unit.Name + "(" + env + ")"
	case *MakeMachine:
		return "machine " + e.Unit.Name + "(" + p.expr(e.Frame) + ")"
	case *Continuation:
		return "resume(" + p.expr(e.Machine) + ")"
	default:
		return fmt.Sprintf("<%T>", e)
	}
}

func (p *printer) name(id BindingID) string {
	if !id.IsValid() || int(id) > len(p.m.Bindings) {
		return "?" + strconv.Itoa(int(id))
	}
	return p.m.Binding(id).String()
}
