package accountadjust

import (
	"robohire-billing/internal/billing/tiers"
	"robohire-billing/internal/common/validation"
)

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"operation", "userId", "reason"},
		Properties: map[string]validation.Property{
			"operation": {
				Type: "string",
				Enum: []string{
					string(OpBalance), string(OpUsage), string(OpResetUsage), string(OpTier),
					string(OpStatus), string(OpRole), string(OpCustomLimits),
				},
			},
			"userId":     {Type: "string", Format: "uuid", Description: "Account being adjusted"},
			"adminId":    {Type: "string", Format: "uuid"},
			"adminToken": {Type: "string", MinLength: validation.Int(1)},
			"reason":     {Type: "string", MinLength: validation.Int(1), MaxLength: validation.Int(500)},
			"mode":       {Type: "string", Enum: []string{"add", "set"}},
			"amountCents": {
				Type:        "integer",
				Description: "Signed amount for add, new balance for set",
			},
			"counter": {Type: "string", Enum: []string{"interview", "resume_match"}},
			"value":   {Type: "integer"},
			"tier":    {Type: "string", Enum: tiers.Names()},
			"status":  {Type: "string", Enum: []string{"active", "trialing", "past_due", "canceled"}},
			"role":    {Type: "string", Enum: []string{"user", "admin"}},

			"customMaxInterviews":    {Type: "integer", Minimum: validation.Float(-1)},
			"customMaxResumeMatches": {Type: "integer", Minimum: validation.Float(-1)},
		},
		AdditionalProperties: true,
	}
}
