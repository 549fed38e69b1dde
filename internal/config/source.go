package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Source supplies raw string values for configuration keys. Sources are
// consulted in reverse list order during a load: the last source that knows
// a key wins, per key.
type Source interface {
	// Name identifies the source in error messages ("env", ".env", ...).
	Name() string
	// Lookup returns the raw value for key and whether the source sets it.
	Lookup(key string) (string, bool)
}

type envSource struct{}

func (envSource) Name() string { return "env" }

func (envSource) Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// Env returns the live process environment as a source.
func Env() Source {
	return envSource{}
}

type mapSource struct {
	name   string
	values map[string]string
}

func (s mapSource) Name() string { return s.name }

func (s mapSource) Lookup(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Map wraps a plain map as a source. Tests and embedding callers use it to
// feed exact key sets without touching the process environment.
func Map(name string, values map[string]string) Source {
	return mapSource{name: name, values: values}
}

// File reads a dotenv-format override file as a source. The process
// environment is never mutated; the file's pairs only participate in the
// load's precedence chain.
func File(path string) (Source, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}
	return mapSource{name: path, values: values}, nil
}
