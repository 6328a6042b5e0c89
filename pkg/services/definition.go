package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dukex/admitio/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// workflowDefinitionSchema validates imported workflow definition documents before
// they are decoded into models. Structural graph rules are enforced afterwards by
// the registry; this catches malformed documents early with field-level messages.
const workflowDefinitionSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["name", "application_type", "stages"],
	"properties": {
		"name": {"type": "string", "minLength": 3},
		"description": {"type": "string"},
		"application_type": {"type": "string", "minLength": 1},
		"stages": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["name", "sequence"],
				"properties": {
					"id": {"type": "string"},
					"name": {"type": "string", "minLength": 2},
					"sequence": {"type": "integer", "minimum": 1},
					"required_documents": {"type": "array", "items": {"type": "string"}},
					"required_actions": {"type": "array", "items": {"type": "string"}},
					"notification_triggers": {"type": "array", "items": {"type": "string"}},
					"assigned_role": {"type": "string"},
					"is_terminal": {"type": "boolean"}
				}
			}
		},
		"transitions": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "source_stage_id", "target_stage_id"],
				"properties": {
					"id": {"type": "string"},
					"name": {"type": "string", "minLength": 2},
					"source_stage_id": {"type": "string"},
					"target_stage_id": {"type": "string"},
					"is_automatic": {"type": "boolean"},
					"required_permissions": {"type": "array", "items": {"type": "string"}},
					"conditions": {
						"type": "array",
						"items": {
							"type": "object",
							"required": ["field", "operator"],
							"properties": {
								"field": {"type": "string", "minLength": 1},
								"operator": {"enum": ["==", "!=", ">", ">=", "<", "<="]},
								"value": {}
							}
						}
					}
				}
			}
		}
	}
}`

// ImportDefinition creates a workflow from a raw JSON definition document, schema
// validation first.
func (r *Registry) ImportDefinition(ctx context.Context, raw []byte, actor *models.Actor) (*models.Workflow, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(workflowDefinitionSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to validate workflow definition: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrDefinitionSchema, strings.Join(details, "; "))
	}

	var workflow models.Workflow

	err = json.Unmarshal(raw, &workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to decode workflow definition: %w", err)
	}

	return r.Create(ctx, &workflow, actor)
}
