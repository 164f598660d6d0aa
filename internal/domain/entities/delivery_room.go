package entities

import (
	"strconv"
	"strings"
)

// DeliveryFlagKind tags how a raw delivery-room value was encoded.
type DeliveryFlagKind int

const (
	DeliveryFlagUnknown DeliveryFlagKind = iota
	DeliveryFlagCount
	DeliveryFlagYes
	DeliveryFlagNo
)

// DeliveryFlag is the decoded form of the mixed numeric-or-Y/N delivery field.
type DeliveryFlag struct {
	Kind  DeliveryFlagKind
	Count int
}

// ClassifyDeliveryFlag decodes raw in the order integer, Y prefix, N prefix.
// Everything else, including blank input, is unknown.
func ClassifyDeliveryFlag(raw *string) DeliveryFlag {
	if raw == nil {
		return DeliveryFlag{Kind: DeliveryFlagUnknown}
	}
	s := strings.TrimSpace(*raw)
	if s == "" {
		return DeliveryFlag{Kind: DeliveryFlagUnknown}
	}
	if isDigits(s) {
		if n, err := strconv.Atoi(s); err == nil {
			return DeliveryFlag{Kind: DeliveryFlagCount, Count: n}
		}
	}
	upper := strings.ToUpper(s)
	switch {
	case strings.HasPrefix(upper, "Y"):
		return DeliveryFlag{Kind: DeliveryFlagYes}
	case strings.HasPrefix(upper, "N"):
		return DeliveryFlag{Kind: DeliveryFlagNo}
	}
	return DeliveryFlag{Kind: DeliveryFlagUnknown}
}

// ParseDeliveryRoom derives delivery-room availability from the raw flag and
// the reported total. Without a total nothing is known.
func ParseDeliveryRoom(raw *string, total *int) BedCount {
	if total == nil {
		return BedCount{}
	}
	t := *total
	out := BedCount{Total: &t}

	flag := ClassifyDeliveryFlag(raw)
	switch flag.Kind {
	case DeliveryFlagCount:
		n := flag.Count
		out.Available = &n
	case DeliveryFlagYes:
		n := t
		out.Available = &n
	case DeliveryFlagNo:
		n := 0
		out.Available = &n
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
