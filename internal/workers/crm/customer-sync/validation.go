package customersync

import "robohire-billing/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"userId"},
		Properties: map[string]validation.Property{
			"userId": {
				Type:        "string",
				Description: "Paying customer to mirror into the CRM",
				Format:      "uuid",
			},
			"leadSource": {
				Type:      "string",
				MaxLength: validation.Int(120),
			},
		},
		AdditionalProperties: true,
	}
}
