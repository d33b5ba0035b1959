package tools

import (
	"context"
	"time"
)

// humanTimeLayout renders like "Monday, January 02, 2006 at 03:04 PM MST".
const humanTimeLayout = "Monday, January 02, 2006 at 03:04 PM MST"

// DateTimeTool reports the current date and time.
type DateTimeTool struct {
	now func() time.Time
}

// NewDateTimeTool creates the get_datetime tool.
func NewDateTimeTool() *DateTimeTool {
	return &DateTimeTool{now: time.Now}
}

func (t *DateTimeTool) GetName() string { return "get_datetime" }

func (t *DateTimeTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        "get_datetime",
		Description: "Get the current date and time, optionally in a specific timezone.",
		Parameters: []ToolParameter{
			{
				Name:        "timezone",
				Type:        "string",
				Description: "Timezone name (e.g. 'UTC', 'America/New_York'). Defaults to UTC.",
				Required:    false,
				Default:     "UTC",
			},
			{
				Name:        "output_format",
				Type:        "string",
				Description: "Output format: 'iso' for ISO 8601, 'human' for human-readable.",
				Required:    false,
				Default:     "iso",
				Enum:        []string{"iso", "human"},
			},
		},
		AllowInSandbox: true,
	}
}

// Execute returns the current time in the requested zone. An unknown
// timezone silently falls back to UTC rather than failing the call.
func (t *DateTimeTool) Execute(ctx context.Context, params map[string]any) (*ToolResult, error) {
	zone := stringParam(params, "timezone", "UTC")
	format := stringParam(params, "output_format", "iso")

	loc, err := time.LoadLocation(zone)
	if err != nil {
		loc = time.UTC
	}
	now := t.now().In(loc)

	var output string
	if format == "human" {
		output = now.Format(humanTimeLayout)
	} else {
		output = now.Format(time.RFC3339)
	}

	return NewSuccessResult(output, map[string]any{
		"timestamp": now.Unix(),
		"timezone":  loc.String(),
		"year":      now.Year(),
		"month":     int(now.Month()),
		"day":       now.Day(),
		"hour":      now.Hour(),
		"minute":    now.Minute(),
	}), nil
}
