package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/marmos91/dfsgate/pkg/config"
)

const schemaID = "https://github.com/marmos91/dfsgate/config.schema.json"

// reflectSchema builds the schema of config.Config. Property names are the
// mapstructure keys viper reads.
func reflectSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		FieldNameTag:              "mapstructure",
		// Every section has defaults, so nothing is required in the file.
		RequiredFromJSONSchemaTags: true,
	}

	schema := reflector.Reflect(&config.Config{})
	schema.ID = jsonschema.ID(schemaID)
	schema.Title = "dfsgate Configuration"
	schema.Description = "Configuration file of the dfsgate filesystem gateway"
	return schema
}

func writeSchema(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reflectSchema())
}

func main() {
	output := flag.String("o", "config.schema.json", "Output file, or - for stdout")
	flag.Parse()

	if *output == "-" {
		if err := writeSchema(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing schema: %v\n", err)
			os.Exit(1)
		}
		return
	}

	f, err := os.Create(*output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", *output, err)
		os.Exit(1)
	}
	if err := writeSchema(f); err != nil {
		_ = f.Close()
		fmt.Fprintf(os.Stderr, "Error writing schema: %v\n", err)
		os.Exit(1)
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing schema: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("JSON schema written to %s\n", *output)
}
