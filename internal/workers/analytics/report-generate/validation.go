package reportgenerate

import (
	"robohire-billing/internal/analytics"
	"robohire-billing/internal/common/validation"
)

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"reportType"},
		Properties: map[string]validation.Property{
			"reportType": {
				Type: "string",
				Enum: []string{
					string(analytics.ReportSummary),
					string(analytics.ReportDaily),
					string(analytics.ReportBreakdown),
					string(analytics.ReportRevenue),
				},
			},
			"from":     {Type: "string", Format: "date-time"},
			"to":       {Type: "string", Format: "date-time"},
			"lastDays": {Type: "integer", Minimum: validation.Float(1), Maximum: validation.Float(366)},
			"userId":   {Type: "string", Format: "uuid"},
			"groupBy":  {Type: "string", Enum: analytics.GroupByKeys()},
			"limit": {
				Type:    "integer",
				Minimum: validation.Float(1),
				Maximum: validation.Float(analytics.MaxBreakdownLimit),
			},
		},
		AdditionalProperties: true,
	}
}
