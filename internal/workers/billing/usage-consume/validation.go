package usageconsume

import (
	"robohire-billing/internal/common/validation"
	"robohire-billing/internal/models"
)

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"userId", "action"},
		Properties: map[string]validation.Property{
			"userId": {Type: "string", Format: "uuid", Description: "User the action is billed to"},
			"action": {
				Type: "string",
				Enum: []string{string(models.ActionInterview), string(models.ActionResumeMatch)},
			},
			"module":           {Type: "string", MaxLength: validation.Int(100)},
			"provider":         {Type: "string", MaxLength: validation.Int(100)},
			"model":            {Type: "string", MaxLength: validation.Int(200)},
			"promptTokens":     {Type: "integer", Minimum: validation.Float(0)},
			"completionTokens": {Type: "integer", Minimum: validation.Float(0)},
			"costUsd":          {Type: "number", Minimum: validation.Float(0)},
			"durationMs":       {Type: "integer", Minimum: validation.Float(0)},
		},
		AdditionalProperties: true,
	}
}
