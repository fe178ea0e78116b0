// Package config resolves a configuration shape against the process environment.
//
// A shape is a tree of nodes. Leaves name an environment variable and an optional default, groups nest
// further nodes:
//
//	schema := config.Group{
//		"web": config.Group{
//			"port": config.EnvDefault("WEB_PORT", 3000),
//		},
//		"db": config.Group{
//			"host": config.Env("DB_HOST"),
//		},
//	}
//
//	values, err := config.Load(schema)
//
// Unset or empty variables fall back to the leaf's default, or nil when there is none.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Node is either a Leaf or a Group.
type Node interface {
	node()
}

// Leaf reads one environment variable.
type Leaf struct {
	Env     string
	Default interface{}
}

// Group nests nodes under keys.
type Group map[string]Node

func (Leaf) node()  {}
func (Group) node() {}

// Env creates a leaf without a default.
func Env(name string) Leaf {
	return Leaf{Env: name}
}

// EnvDefault creates a leaf with a default.
func EnvDefault(name string, value interface{}) Leaf {
	return Leaf{Env: name, Default: value}
}

// Values is a resolved configuration. Leaves resolve to strings when set in the environment and to
// their default otherwise; groups resolve to nested Values.
type Values map[string]interface{}

// LookupFunc reads one variable. It matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Resolve walks schema and reads every leaf with lookup.
func Resolve(schema Group, lookup LookupFunc) Values {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	values := make(Values, len(schema))
	for key, n := range schema {
		switch n := n.(type) {
		case Group:
			values[key] = Resolve(n, lookup)
		case Leaf:
			values[key] = resolveLeaf(n, lookup)
		case *Leaf:
			if n != nil {
				values[key] = resolveLeaf(*n, lookup)
			}
		default:
			values[key] = nil
		}
	}
	return values
}

func resolveLeaf(leaf Leaf, lookup LookupFunc) interface{} {
	if value, ok := lookup(leaf.Env); ok && value != "" {
		return value
	}
	return leaf.Default
}

type loadOptions struct {
	files  []string
	lookup LookupFunc
}

// Option configures Load.
type Option func(*loadOptions)

// WithEnvFiles replaces the dotenv files read by Load. The default is ".env".
func WithEnvFiles(files ...string) Option {
	return func(o *loadOptions) {
		o.files = files
	}
}

// WithLookup replaces the process environment as the primary source.
func WithLookup(lookup LookupFunc) Option {
	return func(o *loadOptions) {
		o.lookup = lookup
	}
}

// Load resolves schema against the environment, falling back to values from dotenv files. Variables
// already present in the environment take precedence over the files. Missing files are ignored.
func Load(schema Group, opts ...Option) (Values, error) {
	options := &loadOptions{
		files:  []string{".env"},
		lookup: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(options)
	}

	fileValues := map[string]string{}
	for _, file := range options.files {
		read, err := godotenv.Read(file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		for key, value := range read {
			if _, seen := fileValues[key]; !seen {
				fileValues[key] = value
			}
		}
	}

	lookup := func(key string) (string, bool) {
		if value, ok := options.lookup(key); ok && value != "" {
			return value, true
		}
		value, ok := fileValues[key]
		return value, ok
	}

	return Resolve(schema, lookup), nil
}

// Get returns the value at a dotted path such as "db.port".
func (v Values) Get(path string) (interface{}, bool) {
	var current interface{} = v
	for _, key := range strings.Split(path, ".") {
		group, ok := current.(Values)
		if !ok {
			return nil, false
		}
		current, ok = group[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// String returns the value at path formatted as a string, or "" when it is absent or nil.
func (v Values) String(path string) string {
	value, ok := v.Get(path)
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}
