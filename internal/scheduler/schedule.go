package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	intervalRegex = regexp.MustCompile(`(?i)^every\s+(\d+)\s*(s|sec|second|seconds|m|min|minute|minutes|h|hour|hours)$`)
)

// ParseSchedule parses a housekeeping-loop cadence expression into a
// cron.Schedule. It is never used to trigger user jobs — only to pace
// the scheduler's own queue-drain, remote-poll, and timeout-sweep
// loops — so descriptors like "@daily" are accepted for completeness
// but a real deployment will use "every <n><unit>" or "@every <dur>".
func ParseSchedule(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("schedule expression cannot be empty")
	}

	if strings.HasPrefix(strings.ToLower(expr), "every ") {
		schedule, err := parseInterval(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid interval expression %q: %w", expr, err)
		}
		return schedule, nil
	}

	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return schedule, nil
}

func parseInterval(expr string) (cron.Schedule, error) {
	matches := intervalRegex.FindStringSubmatch(expr)
	if len(matches) != 3 {
		return nil, fmt.Errorf("invalid format, expected 'every <number> <unit>' (e.g. 'every 30s')")
	}

	value, err := strconv.Atoi(matches[1])
	if err != nil || value <= 0 {
		return nil, fmt.Errorf("invalid interval value: must be a positive integer")
	}

	var duration time.Duration
	switch strings.ToLower(matches[2]) {
	case "s", "sec", "second", "seconds":
		duration = time.Duration(value) * time.Second
	case "m", "min", "minute", "minutes":
		duration = time.Duration(value) * time.Minute
	case "h", "hour", "hours":
		duration = time.Duration(value) * time.Hour
	default:
		return nil, fmt.Errorf("unsupported time unit %q", matches[2])
	}

	if duration < time.Second {
		return nil, fmt.Errorf("interval must be at least 1 second")
	}

	return cron.Every(duration), nil
}

// ValidateSchedule reports whether expr is a parseable schedule
// expression without retaining the parsed schedule.
func ValidateSchedule(expr string) error {
	_, err := ParseSchedule(expr)
	return err
}

// NextRun calculates the next fire time for expr from the given time.
func NextRun(expr string, from time.Time) (time.Time, error) {
	schedule, err := ParseSchedule(expr)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(from), nil
}
