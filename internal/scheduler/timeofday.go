package scheduler

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/edgard/affirmabot/internal/errors"
)

// ParseTimeOfDay parses "H:M" or "HH:MM" with hour 0-23 and minute 0-59.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	raw := s
	s = strings.TrimSpace(s)

	h, m, ok := strings.Cut(s, ":")
	if !ok || !isDigits(h, 1, 2) || !isDigits(m, 1, 2) {
		return 0, 0, apperrors.NewInvalidTimeError(raw, nil)
	}

	hour, _ = strconv.Atoi(h)
	minute, _ = strconv.Atoi(m)
	if hour > 23 {
		return 0, 0, apperrors.NewInvalidTimeError(raw, fmt.Errorf("hour %d out of range", hour))
	}
	if minute > 59 {
		return 0, 0, apperrors.NewInvalidTimeError(raw, fmt.Errorf("minute %d out of range", minute))
	}
	return hour, minute, nil
}

// NormalizeTimeOfDay validates s and returns it as zero-padded "HH:MM".
func NormalizeTimeOfDay(s string) (string, error) {
	hour, minute, err := ParseTimeOfDay(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

func isDigits(s string, minLen, maxLen int) bool {
	if len(s) < minLen || len(s) > maxLen {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
