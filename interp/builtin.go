package interp

import (
	"fmt"
	"strings"

	"github.com/stealthrocket/lowering"
)

// Builtins lists the host functions available to programs.
var Builtins = []string{
	"print",
	"list",
	"append",
	"range",
	"len",
	"delay",
	"now",
	"task",
	"completed",
	"fail",
	"canceled",
	"iscanceled",
	"resource",
}

func (in *Interp) builtin(name string, args []any) (any, error) {
	switch name {
	case "print":
		parts := make([]string, len(args))
		for i, v := range args {
			parts[i] = format(v)
		}
		_, err := fmt.Fprintln(in.out, strings.Join(parts, " "))
		return nil, err

	case "list":
		return &List{Values: append([]any(nil), args...)}, nil

	case "append":
		if len(args) > 0 {
			if l, ok := args[0].(*List); ok {
				l.Values = append(l.Values, args[1:]...)
				return l, nil
			}
		}

	case "range":
		n, err := intArg(name, args, 0)
		if err != nil {
			return nil, err
		}
		l := &List{Values: make([]any, 0, max(n, 0))}
		for i := int64(0); i < n; i++ {
			l.Values = append(l.Values, i)
		}
		return l, nil

	case "len":
		if len(args) == 1 {
			switch v := args[0].(type) {
			case *List:
				return int64(len(v.Values)), nil
			case string:
				return int64(len(v)), nil
			}
		}

	case "delay":
		n, err := intArg(name, args, 0)
		if err != nil {
			return nil, err
		}
		return in.loop.Delay(n), nil

	case "now":
		return in.loop.Now(), nil

	case "task":
		return lowering.NewTask(), nil

	case "completed":
		var v any
		if len(args) > 0 {
			v = args[0]
		}
		return lowering.Completed(v), nil

	case "fail":
		var v any = "failed"
		if len(args) > 0 {
			v = args[0]
		}
		return lowering.Failed(lowering.Throw(v)), nil

	case "canceled":
		t := lowering.NewTask()
		reason := ""
		if len(args) > 0 {
			reason = format(args[0])
		}
		if err := t.Cancel(reason); err != nil {
			return nil, err
		}
		return t, nil

	case "iscanceled":
		if len(args) == 1 {
			e, ok := args[0].(*lowering.Exception)
			return ok && lowering.IsCanceled(e), nil
		}

	case "resource":
		return &Resource{in: in, Name: format(argOr(args, 0))}, nil

	default:
		return nil, fmt.Errorf("not implemented: builtin %s", name)
	}
	return nil, lowering.Throw(fmt.Sprintf("invalid arguments to %s", name))
}

func intArg(name string, args []any, i int) (int64, error) {
	if i < len(args) {
		if n, ok := args[i].(int64); ok {
			return n, nil
		}
	}
	return 0, lowering.Throw(fmt.Sprintf("%s: argument %d must be an int", name, i))
}

func argOr(args []any, i int) any {
	if i < len(args) {
		return args[i]
	}
	return nil
}
