// Package config handles lower.toml configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/stealthrocket/lowering/compiler"
)

// FileName is the name of the configuration file looked up by FindAndLoad.
const FileName = "lower.toml"

// Config represents a lower.toml configuration.
type Config struct {
	Capture  Capture  `toml:"capture"`
	Closures Closures `toml:"closures"`
	Compiler Compiler `toml:"compiler"`
	Log      Log      `toml:"log"`

	// Path is the file the configuration was loaded from (set at load time).
	Path string `toml:"-"`
}

// Capture configures how loop variables are captured.
type Capture struct {
	PerIteration bool `toml:"per_iteration"`
}

// Closures configures closure synthesis.
type Closures struct {
	CacheStatic bool `toml:"cache_static"`
}

// Compiler configures the driver.
type Compiler struct {
	// Workers bounds the number of methods lowered concurrently; zero
	// selects GOMAXPROCS.
	Workers int `toml:"workers"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Capture:  Capture{PerIteration: true},
		Closures: Closures{CacheStatic: true},
	}
}

// Load parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	c, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	c.Path = path
	return c, nil
}

// Parse decodes a configuration. Keys absent from the document keep their
// default values.
func Parse(data string) (*Config, error) {
	var c Config
	md, err := toml.Decode(data, &c)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %s", undecoded[0])
	}

	// Defaults
	if !md.IsDefined("capture", "per_iteration") {
		c.Capture.PerIteration = true
	}
	if !md.IsDefined("closures", "cache_static") {
		c.Closures.CacheStatic = true
	}
	if c.Compiler.Workers < 0 {
		return nil, fmt.Errorf("compiler.workers must not be negative, got %d", c.Compiler.Workers)
	}
	return &c, nil
}

// FindAndLoad walks up from startDir to find a lower.toml file, then loads
// and returns it. The default configuration is returned if no file is
// found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// Options returns the compiler options selected by the configuration.
func (c *Config) Options() []compiler.Option {
	opts := []compiler.Option{
		compiler.WithPerIterationCapture(c.Capture.PerIteration),
		compiler.WithCachedStaticLambdas(c.Closures.CacheStatic),
	}
	if c.Compiler.Workers > 0 {
		opts = append(opts, compiler.WithWorkers(c.Compiler.Workers))
	}
	return opts
}
