package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// SchemaID identifies the config.jsonc schema document.
const SchemaID = "https://github.com/rbright/scribe/config.schema.json"

// Schema returns the JSON Schema of config.jsonc, indented for editors.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&jsoncConfig{})
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "scribe configuration"

	return json.MarshalIndent(schema, "", "  ")
}
