// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

package identity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/samber/oops"
)

const schemaID = "https://edusphere.dev/schemas/identity.schema.json"

var (
	compileOnce sync.Once
	compiled    *jschema.Schema
	compileErr  error
)

// GenerateSchema generates the JSON Schema of the identity wire format.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	schema := r.Reflect(&Wire{})
	schema.ID = jsonschema.ID(schemaID)
	schema.Title = "EduSphere Identity"
	schema.Description = "Identity returned by the portal identity service"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}

// ValidateBlob checks that data is a JSON identity object with the
// required fields.
func ValidateBlob(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return oops.Code("IDENTITY_INVALID").Errorf("identity data is empty")
	}

	sch, err := compiledSchema()
	if err != nil {
		return oops.Code("IDENTITY_SCHEMA_FAILED").Wrap(err)
	}

	inst, err := jschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return oops.Code("IDENTITY_INVALID").
			With("reason", "not json").
			Wrap(err)
	}

	if err := sch.Validate(inst); err != nil {
		return oops.Code("IDENTITY_INVALID").
			With("reason", "schema").
			Wrap(err)
	}
	return nil
}

func compiledSchema() (*jschema.Schema, error) {
	compileOnce.Do(func() {
		compiled, compileErr = compileSchema()
	})
	return compiled, compileErr
}

func compileSchema() (*jschema.Schema, error) {
	schemaBytes, err := GenerateSchema()
	if err != nil {
		return nil, err
	}

	doc, err := jschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema JSON: %w", err)
	}

	c := jschema.NewCompiler()
	if err := c.AddResource("identity.json", doc); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	sch, err := c.Compile("identity.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return sch, nil
}
