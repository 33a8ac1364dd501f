package fixtures

import (
	"sort"
	"testing"
)

func TestScenarios(t *testing.T) {
	all := All()
	if !sort.SliceIsSorted(all, func(i, j int) bool { return all[i].Name < all[j].Name }) {
		t.Error("scenarios are not sorted by name")
	}
	for _, s := range all {
		t.Run(s.Name, func(t *testing.T) {
			prog := s.Build()
			if prog.Method(s.Entry) == nil {
				t.Fatalf("entry method %s not found", s.Entry)
			}
			if len(s.Codes) == 0 && s.Output == "" {
				t.Error("runnable scenario has no expected output")
			}
			if !sort.StringsAreSorted(s.Codes) {
				t.Error("diagnostic codes are not sorted")
			}
			again := s.Build()
			if again.Methods[0] == prog.Methods[0] {
				t.Error("Build returned a shared program")
			}
		})
	}
}

func TestRunnable(t *testing.T) {
	for _, s := range Runnable() {
		if len(s.Codes) != 0 {
			t.Errorf("%s reports diagnostics but is runnable", s.Name)
		}
	}
	if _, ok := Lookup("rejected"); !ok {
		t.Error("missing rejected scenario")
	}
	if len(Runnable()) >= len(All()) {
		t.Error("every scenario is runnable")
	}
}
