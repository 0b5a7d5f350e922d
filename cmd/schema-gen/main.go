// Schema Generator
//
// Generates JSON Schema files from the HTTP request/response types so that
// clients in other languages can validate against the same contract.
//
// Usage:
//
//	go run ./cmd/schema-gen --out ./schemas
//
// Output:
//
//	<out>/basket.json
//	<out>/deals.json
//	<out>/health.json
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/kosarica/basket-service/internal/handlers"
)

// SchemaGroup represents a group of related schemas
type SchemaGroup struct {
	Name   string
	Types  []any
	Output string
}

var outputDir string

var rootCmd = &cobra.Command{
	Use:   "schema-gen",
	Short: "Generate JSON Schema for the basket service API types",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return generate(outputDir, schemaGroups())
	},
}

func init() {
	rootCmd.Flags().StringVar(&outputDir, "out", "./schemas", "Output directory")
}

func schemaGroups() []SchemaGroup {
	return []SchemaGroup{
		{
			Name: "basket",
			Types: []any{
				// Request types
				handlers.BasketItem{},
				handlers.OptimizeRequest{},
				// Response types
				handlers.BreakdownLine{},
				handlers.StoreCandidate{},
				handlers.OptimizeResponse{},
				handlers.ErrorResponse{},
			},
			Output: "basket.json",
		},
		{
			Name: "deals",
			Types: []any{
				handlers.Deal{},
				handlers.NearbyDealsResponse{},
			},
			Output: "deals.json",
		},
		{
			Name: "health",
			Types: []any{
				handlers.HealthResponse{},
			},
			Output: "health.json",
		},
	}
}

func generate(dir string, groups []SchemaGroup) error {
	// Ensure output directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for _, group := range groups {
		schema := generateGroupSchema(group)
		outputPath := filepath.Join(dir, group.Output)

		if err := writeSchema(schema, outputPath); err != nil {
			return fmt.Errorf("failed to write %s: %w", group.Output, err)
		}

		fmt.Printf("Generated %s\n", outputPath)
	}
	return nil
}

// generateGroupSchema creates a combined schema with all types in a group
func generateGroupSchema(group SchemaGroup) map[string]any {
	reflector := &jsonschema.Reflector{
		DoNotReference: false,
		ExpandedStruct: false,
	}

	definitions := make(map[string]any)
	for _, t := range group.Types {
		schema := reflector.Reflect(t)
		// Reflect places the root type and everything it references in $defs
		for name, def := range schema.Definitions {
			definitions[name] = def
		}
	}

	return map[string]any{
		"$schema":     "https://json-schema.org/draft/2020-12/schema",
		"$id":         fmt.Sprintf("https://kosarica.hr/schemas/%s.json", group.Name),
		"title":       fmt.Sprintf("%s API Types", capitalize(group.Name)),
		"description": fmt.Sprintf("JSON Schema for %s API types generated from Go structs", group.Name),
		"$defs":       definitions,
	}
}

// writeSchema writes a schema to a JSON file
func writeSchema(schema map[string]any, path string) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

func capitalize(s string) string {
	if len(s) == 0 {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
