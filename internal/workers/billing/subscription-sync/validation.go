package subscriptionsync

import "robohire-billing/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"userId"},
		Properties: map[string]validation.Property{
			"userId": {Type: "string", Format: "uuid", Description: "User whose subscription is pulled from the provider"},
		},
		AdditionalProperties: true,
	}
}
