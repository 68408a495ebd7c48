package paymentfailed

import "robohire-billing/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"userId", "email", "amountDueCents", "currency"},
		Properties: map[string]validation.Property{
			"userId":         {Type: "string", Format: "uuid"},
			"email":          {Type: "string", Format: "email"},
			"name":           {Type: "string", MaxLength: validation.Int(200)},
			"amountDueCents": {Type: "integer", Minimum: validation.Float(0)},
			"currency":       {Type: "string", Pattern: validation.String(`^[a-zA-Z]{3}$`)},
			"invoiceId":      {Type: "string"},
			"invoiceUrl":     {Type: "string", Format: "uri"},
		},
		AdditionalProperties: true,
	}
}
