package todo

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed is the on-disk shape of an initial to-do list:
//
//	todos:
//	  - buy milk
//	  - walk dog
type Seed struct {
	Todos []string `yaml:"todos"`
}

// ParseSeed decodes a seed document into an initial State.
func ParseSeed(data []byte) (State, error) {
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if s.Todos == nil {
		return State{}, nil
	}
	return State(s.Todos), nil
}

// LoadSeed reads a seed file. An empty path yields an empty list.
func LoadSeed(path string) (State, error) {
	if path == "" {
		return State{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	return ParseSeed(data)
}
