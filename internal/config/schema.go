package config

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// schemaJSON constrains the merged run configuration before the runner
// façade proceeds to Load — catching typos like a negative --workers or
// an unrecognized --shard string at config time rather than as a
// confusing dispatcher failure later.
const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "workers":        { "type": "integer", "minimum": 0 },
    "maxFailures":     { "type": "integer", "minimum": 0 },
    "repeatEach":      { "type": "integer", "minimum": 1 },
    "retries":         { "type": "integer", "minimum": 0 },
    "timeout":         { "type": "integer", "minimum": 0 },
    "globalTimeout":   { "type": "integer", "minimum": 0 },
    "shard":           { "type": "string", "pattern": "^[0-9]+/[0-9]+$" },
    "reporter":        { "type": "array", "items": { "type": "string" } },
    "grep":            { "type": "string" }
  }
}`

var compiledSchema *jsonschema.Schema

func compileSchema() (*jsonschema.Schema, error) {
	if compiledSchema != nil {
		return compiledSchema, nil
	}
	compiler := jsonschema.NewCompiler()
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(schemaJSON), &doc); err != nil {
		return nil, fmt.Errorf("config: decode embedded schema: %w", err)
	}
	const resourceURI = "goderunner://testrunner-config.schema.json"
	if err := compiler.AddResource(resourceURI, doc); err != nil {
		return nil, fmt.Errorf("config: add schema resource: %w", err)
	}
	schema, err := compiler.Compile(resourceURI)
	if err != nil {
		return nil, fmt.Errorf("config: compile schema: %w", err)
	}
	compiledSchema = schema
	return schema, nil
}

// Validate runs merged (the fully-resolved CLI > yaml > package.json
// config) against the embedded JSON Schema, returning a descriptive
// error naming the offending field(s) on mismatch.
func Validate(merged TestRunner) error {
	schema, err := compileSchema()
	if err != nil {
		return err
	}

	asMap := map[string]interface{}{
		"workers":       merged.Workers,
		"maxFailures":   merged.MaxFailures,
		"repeatEach":    merged.RepeatEach,
		"retries":       merged.Retries,
		"timeout":       merged.Timeout,
		"globalTimeout": merged.GlobalTimeout,
		"grep":          merged.Grep,
	}
	if merged.Shard != "" {
		asMap["shard"] = merged.Shard
	}
	if len(merged.Reporters) > 0 {
		reporters := make([]interface{}, len(merged.Reporters))
		for i, r := range merged.Reporters {
			reporters[i] = r
		}
		asMap["reporter"] = reporters
	}
	// repeatEach defaults to unset (0) meaning "once"; the schema's
	// minimum:1 only applies once a value is actually supplied.
	if merged.RepeatEach == 0 {
		delete(asMap, "repeatEach")
	}

	if err := schema.Validate(asMap); err != nil {
		return fmt.Errorf("config: invalid run configuration: %w", err)
	}
	return nil
}
