// cmd/tools/schema-validator/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"insurance-assistant/pkg/schemaconfig"
)

const defaultSchemaPath = "configs/intent_schema.json"

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	showCmd := flag.NewFlagSet("show", flag.ExitOnError)
	bumpCmd := flag.NewFlagSet("bump", flag.ExitOnError)

	// Validate command flags
	validatePath := validateCmd.String("path", defaultSchemaPath, "Path to intent schema file")

	// Show command flags
	showPath := showCmd.String("path", defaultSchemaPath, "Path to intent schema file")
	showIntent := showCmd.String("intent", "", "Show a single intent (default: all)")

	// Bump command flags
	bumpPath := bumpCmd.String("path", defaultSchemaPath, "Path to intent schema file")
	bumpVersion := bumpCmd.String("version", "", "New schema version (e.g., 2.1)")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validateSchema(*validatePath); err != nil {
			fmt.Printf("Schema validation failed: %v\n", err)
			os.Exit(1)
		}

	case "show":
		showCmd.Parse(os.Args[2:])
		if err := showSchema(*showPath, *showIntent); err != nil {
			fmt.Printf("Error showing schema: %v\n", err)
			os.Exit(1)
		}

	case "bump":
		bumpCmd.Parse(os.Args[2:])
		if *bumpVersion == "" {
			fmt.Println("Error: version is required for bump.")
			bumpCmd.Usage()
			os.Exit(1)
		}
		if err := bumpSchemaVersion(*bumpPath, *bumpVersion); err != nil {
			fmt.Printf("Error bumping schema version: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Schema version set to %s\n", *bumpVersion)

	case "help":
		fallthrough
	default:
		help()
	}
}

func validateSchema(path string) error {
	doc, err := schemaconfig.Load(path)
	if err != nil {
		return err
	}

	fmt.Printf("Schema validation passed. Version %s: %d entities, %d intents.\n",
		doc.Version, len(doc.Entities), len(doc.Intents))
	return nil
}

func showSchema(path, intentName string) error {
	doc, err := schemaconfig.Load(path)
	if err != nil {
		return err
	}

	if intentName != "" {
		intent, ok := doc.Intent(intentName)
		if !ok {
			return fmt.Errorf("intent %q not found (have: %s)", intentName, strings.Join(doc.IntentNames(), ", "))
		}
		printIntent(doc, intent)
		return nil
	}

	fmt.Printf("Schema %s (updated %s)\n\n", doc.Version, doc.LastUpdated)
	for _, intent := range doc.Intents {
		printIntent(doc, intent)
		fmt.Println()
	}
	return nil
}

func printIntent(doc *schemaconfig.Document, intent schemaconfig.IntentDefinition) {
	fmt.Printf("%s\n", intent.Name)
	if intent.Description != "" {
		fmt.Printf("  %s\n", intent.Description)
	}
	for _, name := range intent.RequiredEntities {
		fmt.Printf("  required  %-14s %s\n", name, doc.Entities[name].Question)
	}
	for _, name := range intent.OptionalEntities {
		fmt.Printf("  optional  %-14s %s\n", name, doc.Entities[name].Question)
	}
}

func bumpSchemaVersion(path, version string) error {
	doc, err := schemaconfig.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load schema: %w", err)
	}

	doc.Version = version
	doc.LastUpdated = time.Now().Format(time.RFC3339)

	return saveSchema(doc, path)
}

// saveSchema handles saving the schema document to file
func saveSchema(doc *schemaconfig.Document, path string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	err = os.WriteFile(path, data, 0644)
	if err != nil {
		return fmt.Errorf("failed to write schema file: %w", err)
	}

	return nil
}

func help() {
	fmt.Print(`
Usage: schema-validator <command> [flags]

Commands:
  validate Validate the intent schema file
  show     Print intents and the entities they collect
  bump     Set the schema version and lastUpdated stamp
  help     Show this help message

Examples:
  schema-validator validate -path configs/intent_schema.json
  schema-validator show -intent PlanInfo
  schema-validator bump -version 2.1

Use 'schema-validator <command> -h' for more information about a command.
`)
}
