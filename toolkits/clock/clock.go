// Package clock provides a current-time tool with timezone support,
// including the common abbreviations models tend to emit (EST, PST, ...).
package clock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/toolloop/toolloop"
)

// Abbreviation aliases accepted in addition to IANA names.
var tzAliases = map[string]string{
	"EST": "America/New_York",
	"PST": "America/Los_Angeles",
	"CST": "America/Chicago",
	"MST": "America/Denver",
	"GMT": "GMT",
	"UTC": "UTC",
	"JST": "Asia/Tokyo",
	"CET": "Europe/Paris",
	"BST": "Europe/London",
}

// Args are the arguments of get_current_time.
type Args struct {
	Timezone string `json:"timezone,omitempty" description:"Timezone name (e.g. 'UTC', 'Europe/London', 'Asia/Tokyo') or abbreviation (EST, PST, ...)"`
}

// Result is the structured time payload shown to the model.
type Result struct {
	CurrentTime string `json:"current_time"`
	Timezone    string `json:"timezone"`
	Abbr        string `json:"timezone_abbr"`
	UTCOffset   string `json:"utc_offset"`
	DayOfWeek   string `json:"day_of_week"`
	IsDST       bool   `json:"is_dst"`
	Status      string `json:"status"`
}

// Tool returns the get_current_time tool. now is injectable for tests; pass
// nil for time.Now.
func Tool(now func() time.Time) (toolloop.Tool, error) {
	if now == nil {
		now = time.Now
	}
	return toolloop.NewTool(
		"get_current_time",
		"Get the current time in any timezone worldwide",
		func(_ context.Context, args Args) (Result, error) {
			name := args.Timezone
			if name == "" {
				name = "UTC"
			}
			if alias, ok := tzAliases[strings.ToUpper(name)]; ok {
				name = alias
			}
			loc, err := time.LoadLocation(name)
			if err != nil {
				return Result{}, fmt.Errorf("unknown timezone %q (try 'UTC', 'Europe/London', 'Asia/Tokyo')", args.Timezone)
			}
			t := now().In(loc)
			return Result{
				CurrentTime: t.Format("2006-01-02 15:04:05"),
				Timezone:    name,
				Abbr:        t.Format("MST"),
				UTCOffset:   t.Format("-0700"),
				DayOfWeek:   t.Weekday().String(),
				IsDST:       t.IsDST(),
				Status:      "success",
			}, nil
		},
	)
}
