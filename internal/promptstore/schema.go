package promptstore

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/meow-stack/promptchain/internal/types"
)

// GenerateJSONSchema produces a JSON Schema document describing chain
// prompt definition files.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.RequiredFromJSONSchemaTags = true

	s := r.Reflect(&types.ChainPrompt{})
	s.Title = "Chain prompt"
	s.Description = "A named, ordered sequence of prompt templates. Steps may reference {{VARIABLE}} values and earlier outputs as {{StepN.output}}."

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}
