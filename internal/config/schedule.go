package config

import (
	"fmt"
	"regexp"
	"strings"
)

var everyIntervalPattern = regexp.MustCompile(`(?i)^every\s+\d+\s*(s|sec|seconds?|m|min|minutes?|h|hours?)$`)

// ValidateScheduleExpr performs a cheap syntactic check of a scheduler
// interval expression at config-load time. The authoritative parse
// (which actually builds a cron.Schedule) happens lazily in
// scheduler.ParseSchedule when the loop using the expression starts;
// this mirrors the split between config-time and run-time validation.
func ValidateScheduleExpr(expr string) (string, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return "", fmt.Errorf("schedule expression cannot be empty")
	}

	if everyIntervalPattern.MatchString(expr) {
		return expr, nil
	}

	if strings.HasPrefix(expr, "@every ") {
		return expr, nil
	}

	shortcuts := map[string]bool{
		"@annually": true, "@yearly": true, "@monthly": true,
		"@weekly": true, "@daily": true, "@hourly": true,
	}
	if shortcuts[expr] {
		return expr, nil
	}

	fields := strings.Fields(expr)
	if len(fields) == 5 || len(fields) == 6 {
		return expr, nil
	}

	return "", fmt.Errorf("invalid schedule expression %q (expected 'every <n><unit>', '@every <dur>', a cron descriptor, or a 5/6-field cron expression)", expr)
}
