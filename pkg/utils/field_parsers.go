package utils

import (
	"strconv"
	"strings"
	"time"
)

// ObservedAtLayout is the upstream timestamp format (YYYYMMDDHHMMSS).
const ObservedAtLayout = "20060102150405"

// KST is the zone upstream timestamps are expressed in.
var KST = time.FixedZone("KST", 9*60*60)

// SafeInt parses a trimmed decimal integer. Empty or malformed input yields nil.
func SafeInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}

// YNToBool maps Y to true and N to false, case-insensitively. Anything else is unknown.
func YNToBool(s string) *bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "Y":
		v := true
		return &v
	case "N":
		v := false
		return &v
	}
	return nil
}

// ParseObservedAt parses an upstream timestamp in KST and falls back to now
// when the value is empty or malformed, so that a reading is never dropped
// for its timestamp alone.
func ParseObservedAt(raw string, now time.Time) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now, false
	}
	t, err := time.ParseInLocation(ObservedAtLayout, raw, KST)
	if err != nil {
		return now, false
	}
	return t, true
}

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool { return &v }

// StringPtr returns a pointer to v, or nil for the empty string.
func StringPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
