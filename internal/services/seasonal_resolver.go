package services

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tourquote/engine/internal/domain"
)

const neutralMultiplier = 1.0

// ResolveSingle returns the multiplier of the single winning rule for date.
// Matching rules are ranked by priority (highest first) and then by name.
// It returns 1.0 when no rule matches.
func ResolveSingle(date time.Time, rules []domain.SeasonalAdjustment) (float64, error) {
	if len(rules) == 0 {
		return neutralMultiplier, nil
	}
	if date.IsZero() {
		return 0, newValidationError("date", "seasonal date is required")
	}
	target := encodeMonthDay(date.Month(), date.Day())

	ranked := make([]domain.SeasonalAdjustment, len(rules))
	copy(ranked, rules)
	sort.SliceStable(ranked, func(i, j int) bool {
		pi, pj := ranked[i].PriorityValue(), ranked[j].PriorityValue()
		if pi == pj {
			return ranked[i].Name < ranked[j].Name
		}
		return pi > pj
	})

	for _, rule := range ranked {
		matched, err := ruleMatches(rule, target)
		if err != nil {
			return 0, err
		}
		if matched {
			return rule.Multiplier, nil
		}
	}
	return neutralMultiplier, nil
}

// ResolveCombined multiplies together the multipliers of every rule matching date.
func ResolveCombined(date time.Time, rules []domain.SeasonalAdjustment) (float64, error) {
	product := neutralMultiplier
	for _, rule := range rules {
		multiplier, err := ResolveSingle(date, []domain.SeasonalAdjustment{rule})
		if err != nil {
			return 0, err
		}
		if multiplier != neutralMultiplier {
			product *= multiplier
		}
	}
	return product, nil
}

// ValidateSeasonalRule reports a malformed MM-DD window or a non-positive multiplier.
func ValidateSeasonalRule(rule domain.SeasonalAdjustment) error {
	_, err := ruleMatches(rule, 0)
	return err
}

func ruleMatches(rule domain.SeasonalAdjustment, target int) (bool, error) {
	if math.IsNaN(rule.Multiplier) || math.IsInf(rule.Multiplier, 0) || rule.Multiplier <= 0 {
		return false, newValidationError("seasonal."+rule.Name, "multiplier must be positive")
	}
	start, err := parseMonthDay(rule.StartDate)
	if err != nil {
		return false, newValidationError("seasonal."+rule.Name+".startDate", "%v", err)
	}
	end, err := parseMonthDay(rule.EndDate)
	if err != nil {
		return false, newValidationError("seasonal."+rule.Name+".endDate", "%v", err)
	}
	if start <= end {
		return target >= start && target <= end, nil
	}
	// window wraps the year boundary, e.g. 12-15..01-15
	return target >= start || target <= end, nil
}

func encodeMonthDay(month time.Month, day int) int {
	return int(month)*100 + day
}

type monthDayError string

func (e monthDayError) Error() string { return string(e) }

func parseMonthDay(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	parts := strings.Split(trimmed, "-")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, monthDayError("expected MM-DD, got " + strconv.Quote(value))
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return 0, monthDayError("invalid month in " + strconv.Quote(value))
	}
	day, err := strconv.Atoi(parts[1])
	if err != nil || day < 1 || day > 31 {
		return 0, monthDayError("invalid day in " + strconv.Quote(value))
	}
	return encodeMonthDay(time.Month(month), day), nil
}
