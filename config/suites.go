package config

// This file contains the suite definitions, either built in or loaded from
// a YAML file validated against an embedded JSON schema.

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/nytrix/nytest/model"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed suites.schema.json
var suitesSchemaData []byte

var (
	suitesSchema     *jsonschema.Schema
	suitesSchemaOnce sync.Once
	suitesSchemaErr  error
)

// DefaultSuites returns the built-in suites in execution order.
func DefaultSuites() []model.Suite {
	return []model.Suite{
		{Key: model.SuiteBenchmark, Name: "Benchmark", Pattern: "etc/tests/benchmark/*.ny", Binary: model.BinaryRelease},
		{Key: model.SuiteRuntime, Name: "Runtime", Pattern: "etc/tests/runtime/**/*.ny", Binary: model.BinaryDebug},
		{Key: model.SuiteStd, Name: "Std", Pattern: "std/**/*.ny", Binary: model.BinaryDebug},
	}
}

type suitesFile struct {
	Suites []model.Suite `yaml:"suites"`
}

func compileSuitesSchema() error {
	suitesSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(suitesSchemaData))
		if err != nil {
			suitesSchemaErr = fmt.Errorf("unmarshal suites schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("suites.schema.json", doc); err != nil {
			suitesSchemaErr = fmt.Errorf("add suites schema resource: %w", err)
			return
		}
		suitesSchema, suitesSchemaErr = compiler.Compile("suites.schema.json")
		if suitesSchemaErr != nil {
			suitesSchemaErr = fmt.Errorf("compile suites schema: %w", suitesSchemaErr)
		}
	})
	return suitesSchemaErr
}

// ParseSuites decodes and validates a YAML suite document.
func ParseSuites(data []byte) ([]model.Suite, error) {
	if err := compileSuitesSchema(); err != nil {
		return nil, err
	}

	// Validate the generic form first so errors point at the document.
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	asJSON, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("convert suites to JSON: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(asJSON))
	if err != nil {
		return nil, fmt.Errorf("convert suites to JSON: %w", err)
	}
	if err := suitesSchema.Validate(inst); err != nil {
		return nil, fmt.Errorf("suites validation failed: %w", err)
	}

	var file suitesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	title := cases.Title(language.English)
	seen := make(map[string]bool)
	for i := range file.Suites {
		s := &file.Suites[i]
		if seen[s.Key] {
			return nil, fmt.Errorf("duplicate suite key %q", s.Key)
		}
		seen[s.Key] = true
		if s.Name == "" {
			s.Name = title.String(s.Key)
		}
		if s.Binary == "" {
			s.Binary = model.BinaryDebug
		}
	}
	return file.Suites, nil
}

// LoadSuites reads the suite file at path, or returns the built-in suites
// when path is empty.
func LoadSuites(path string) ([]model.Suite, error) {
	if path == "" {
		return DefaultSuites(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suites file: %w", err)
	}
	suites, err := ParseSuites(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return suites, nil
}
