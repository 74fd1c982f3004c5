// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

// Command gen-schema writes the identity JSON Schema used to validate
// cached session records.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/edusphere/portal/internal/identity"
)

func main() {
	schema, err := identity.GenerateSchema()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating schema: %v\n", err)
		os.Exit(1)
	}

	outPath := filepath.Join("schemas", "identity.schema.json")
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, schema, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %s\n", outPath)
}
