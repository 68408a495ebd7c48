package topupcredit

import "robohire-billing/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"sessionId"},
		Properties: map[string]validation.Property{
			"sessionId": {
				Type:        "string",
				Description: "Checkout session id of the top-up",
				Pattern:     validation.String(`^cs_[A-Za-z0-9_]+$`),
				MaxLength:   validation.Int(255),
			},
			"userId": {Type: "string", Format: "uuid"},
		},
		AdditionalProperties: true,
	}
}
