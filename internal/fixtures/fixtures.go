// Package fixtures provides named programs exercising the lowering pass.
// They stand in for the output of a front end: every program is built
// already resolved with ir.Builder.
package fixtures

import (
	"sort"

	"github.com/stealthrocket/lowering/ir"
)

// Scenario is a named program together with the output printed when its
// entry method runs with the default options.
type Scenario struct {
	Name  string
	Doc   string
	Entry string
	Build func() *ir.Program

	// Output is the text written by print.
	Output string

	// Codes lists the diagnostic codes reported when lowering the program,
	// sorted. Programs with diagnostics are not meant to run.
	Codes []string
}

var scenarios = map[string]Scenario{}

func register(s Scenario) {
	if _, dup := scenarios[s.Name]; dup {
		panic("fixtures: duplicate scenario " + s.Name)
	}
	scenarios[s.Name] = s
}

// Lookup returns the scenario with the given name.
func Lookup(name string) (Scenario, bool) {
	s, ok := scenarios[name]
	return s, ok
}

// All returns the scenarios sorted by name.
func All() []Scenario {
	list := make([]Scenario, 0, len(scenarios))
	for _, s := range scenarios {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Runnable returns the scenarios that lower without diagnostics.
func Runnable() []Scenario {
	var list []Scenario
	for _, s := range All() {
		if len(s.Codes) == 0 {
			list = append(list, s)
		}
	}
	return list
}

func lit(v int64) ir.Expr { return ir.IntLit(v) }

func str(v string) ir.Expr { return ir.StrLit(v) }

func invoke(name string, args ...ir.Expr) ir.Expr { return ir.InvokeMethod(name, args...) }
