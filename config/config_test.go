package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		data string
		want *Config
	}{
		{
			name: "empty document keeps defaults",
			data: "",
			want: Default(),
		},
		{
			name: "shared loop capture",
			data: "[capture]\nper_iteration = false\n",
			want: &Config{
				Capture:  Capture{PerIteration: false},
				Closures: Closures{CacheStatic: true},
			},
		},
		{
			name: "all sections",
			data: `
[capture]
per_iteration = true

[closures]
cache_static = false

[compiler]
workers = 4

[log]
verbosity = 2
file = "lower.log"
`,
			want: &Config{
				Capture:  Capture{PerIteration: true},
				Closures: Closures{CacheStatic: false},
				Compiler: Compiler{Workers: 4},
				Log:      Log{Verbosity: 2, File: "lower.log"},
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := Parse(test.data)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, data := range []string{
		"[capture]\nper_iteration = 1\n",
		"[compiler]\nworkers = -1\n",
		"[capture]\nshared = true\n",
		"not toml",
	} {
		if _, err := Parse(data); err == nil {
			t.Errorf("expected error parsing %q", data)
		}
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(root, FileName)
	if err := os.WriteFile(path, []byte("[compiler]\nworkers = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := FindAndLoad(nested)
	if err != nil {
		t.Fatal(err)
	}
	if c.Compiler.Workers != 2 {
		t.Errorf("workers = %d, want 2", c.Compiler.Workers)
	}
	if !c.Capture.PerIteration {
		t.Error("per-iteration capture should default to true")
	}
	if c.Path != path {
		t.Errorf("path = %q, want %q", c.Path, path)
	}
	if got := len(c.Options()); got != 3 {
		t.Errorf("%d compiler options, want 3", got)
	}
}
