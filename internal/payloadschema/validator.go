// Package payloadschema validates the structured replies returned by the
// language-model collaborator before they are trusted.
package payloadschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed extraction.schema.json
var extractionSchemaJSON string

//go:embed verdict.schema.json
var verdictSchemaJSON string

const (
	extractionSchemaName = "extraction.schema.json"
	verdictSchemaName    = "verdict.schema.json"
)

type ExtractedArticle struct {
	Title          string  `json:"title"`
	Summary        string  `json:"summary"`
	Category       *string `json:"category,omitempty"`
	SourceURL      *string `json:"sourceUrl,omitempty"`
	OriginalSource *string `json:"originalSource,omitempty"`
}

type extractionPayload struct {
	Articles []ExtractedArticle `json:"articles"`
}

type Verdict struct {
	IsDuplicate bool    `json:"isDuplicate"`
	Similarity  float64 `json:"similarity"`
	Confidence  string  `json:"confidence"`
	Reason      string  `json:"reason"`
}

var (
	compileOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	compileErr  error
)

// ValidateExtraction accepts either {"articles":[...]} or a bare array of
// article objects.
func ValidateExtraction(raw []byte) ([]ExtractedArticle, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		wrapped := make([]byte, 0, len(trimmed)+14)
		wrapped = append(wrapped, `{"articles":`...)
		wrapped = append(wrapped, trimmed...)
		wrapped = append(wrapped, '}')
		trimmed = wrapped
	}

	var payload extractionPayload
	if err := validateInto(extractionSchemaName, trimmed, &payload); err != nil {
		return nil, err
	}

	out := make([]ExtractedArticle, 0, len(payload.Articles))
	for _, article := range payload.Articles {
		if strings.TrimSpace(article.Title) == "" || strings.TrimSpace(article.Summary) == "" {
			continue
		}
		out = append(out, article)
	}
	return out, nil
}

func ValidateVerdict(raw []byte) (*Verdict, error) {
	var verdict Verdict
	if err := validateInto(verdictSchemaName, raw, &verdict); err != nil {
		return nil, err
	}
	verdict.Confidence = strings.ToLower(strings.TrimSpace(verdict.Confidence))
	return &verdict, nil
}

func validateInto(schemaName string, raw []byte, dest any) error {
	value, err := decodeStrictJSON(raw)
	if err != nil {
		return fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema(schemaName)
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("normalize payload JSON: %w", err)
	}
	if err := json.Unmarshal(normalized, dest); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}

func loadSchema(name string) (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		sources := map[string]string{
			extractionSchemaName: extractionSchemaJSON,
			verdictSchemaName:    verdictSchemaJSON,
		}
		compiled := make(map[string]*jsonschema.Schema, len(sources))
		for resource, text := range sources {
			if err := compiler.AddResource(resource, strings.NewReader(text)); err != nil {
				compileErr = fmt.Errorf("add schema resource %s: %w", resource, err)
				return
			}
		}
		for resource := range sources {
			schema, err := compiler.Compile(resource)
			if err != nil {
				compileErr = fmt.Errorf("compile schema %s: %w", resource, err)
				return
			}
			compiled[resource] = schema
		}
		schemas = compiled
	})

	if compileErr != nil {
		return nil, compileErr
	}
	schema, ok := schemas[name]
	if !ok || schema == nil {
		return nil, fmt.Errorf("schema %s not initialized", name)
	}
	return schema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}
	return value, nil
}
