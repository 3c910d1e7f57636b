// Package schema validates JSON documents exchanged with the outside world:
// game parameters, API request bodies and game summaries.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const baseURL = "https://castaways.local/schemas/"

// Schema names.
const (
	Params       = "params.schema.json"
	TrainConfig  = "train_config.schema.json"
	RunRequest   = "run_request.schema.json"
	TestRequest  = "test_request.schema.json"
	TrainRequest = "train_request.schema.json"
	GameSummary  = "game_summary.schema.json"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("document does not match schema")

//go:embed schemas/*.schema.json
var files embed.FS

var (
	once     sync.Once
	compiled map[string]*jsonschema.Schema
	loadErr  error
)

func load() {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020

	entries, err := files.ReadDir("schemas")
	if err != nil {
		loadErr = err
		return
	}
	for _, e := range entries {
		data, err := files.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			loadErr = err
			return
		}
		if err := c.AddResource(baseURL+e.Name(), bytes.NewReader(data)); err != nil {
			loadErr = fmt.Errorf("add %s: %w", e.Name(), err)
			return
		}
	}

	compiled = make(map[string]*jsonschema.Schema, len(entries))
	for _, e := range entries {
		s, err := c.Compile(baseURL + e.Name())
		if err != nil {
			loadErr = fmt.Errorf("compile %s: %w", e.Name(), err)
			return
		}
		compiled[e.Name()] = s
	}
}

// Get returns the compiled schema called name.
func Get(name string) (*jsonschema.Schema, error) {
	once.Do(load)
	if loadErr != nil {
		return nil, loadErr
	}
	s, ok := compiled[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}
	return s, nil
}

// Validate checks raw JSON against the schema called name.
func Validate(name string, data []byte) error {
	s, err := Get(name)
	if err != nil {
		return err
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// ValidateValue marshals v and checks it against the schema called name.
func ValidateValue(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return Validate(name, data)
}
