package entitlementcheck

import (
	"robohire-billing/internal/common/validation"
	"robohire-billing/internal/models"
)

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"userId"},
		Properties: map[string]validation.Property{
			"userId": {
				Type:        "string",
				Description: "User whose entitlement is checked",
				Format:      "uuid",
			},
			"action": {
				Type:        "string",
				Description: "Metered action to test against the allowance",
				Enum:        []string{string(models.ActionInterview), string(models.ActionResumeMatch)},
			},
		},
		AdditionalProperties: true,
	}
}
