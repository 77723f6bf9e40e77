package definitions

import (
	"fmt"
	"strings"

	"github.com/approvio/approvio/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// ruleConfigSchemas declares the JSON schema for each approval rule's stage
// configuration. Rules without required configuration accept any object.
var ruleConfigSchemas = map[models.ApprovalRule]map[string]any{
	models.RuleSupervisor: {
		"type":                 "object",
		"additionalProperties": false,
		"properties":           map[string]any{},
	},
	models.RuleManagerialLevel: {
		"type":     "object",
		"required": []any{"level"},
		"properties": map[string]any{
			"level": map[string]any{
				"type":    "integer",
				"minimum": 1,
				"maximum": 10,
			},
		},
	},
	models.RuleGradeBased: {
		"type":     "object",
		"required": []any{"min_grade", "max_grade"},
		"properties": map[string]any{
			"min_grade": map[string]any{"type": "string", "minLength": 1},
			"max_grade": map[string]any{"type": "string", "minLength": 1},
		},
	},
	models.RuleFinance: {
		"type":       "object",
		"properties": map[string]any{},
	},
	models.RuleDepartmentHead: {
		"type":       "object",
		"properties": map[string]any{},
	},
	models.RuleRoleBased: {
		"type":     "object",
		"required": []any{"role"},
		"properties": map[string]any{
			"role": map[string]any{"type": "string", "minLength": 1},
		},
	},
	models.RuleSpecificUser: {
		"type":     "object",
		"required": []any{"user_id"},
		"properties": map[string]any{
			"user_id": map[string]any{"type": "string", "minLength": 1},
		},
	},
}

// validateStageConfig validates a stage's rule configuration against the
// rule's JSON schema.
func validateStageConfig(stage *models.Stage) error {
	schema, ok := ruleConfigSchemas[stage.Rule]
	if !ok {
		return fmt.Errorf("no config schema for approval rule %q", stage.Rule)
	}

	config := stage.Config
	if config == nil {
		config = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(config)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("failed to validate stage %d config: %w", stage.Number, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, validationError := range result.Errors() {
			details = append(details, validationError.String())
		}

		return fmt.Errorf("stage %d config invalid for rule %q: %s",
			stage.Number, stage.Rule, strings.Join(details, "; "))
	}

	return nil
}
