package entities

import "sort"

// Equipment is a tag a caller can require of a facility.
type Equipment string

const (
	EquipmentCT         Equipment = "ct"
	EquipmentMRI        Equipment = "mri"
	EquipmentAngio      Equipment = "angio"
	EquipmentVentilator Equipment = "ventilator"
	EquipmentDelivery   Equipment = "delivery"
)

// AllEquipment lists the tags in display order.
var AllEquipment = []Equipment{EquipmentCT, EquipmentMRI, EquipmentAngio, EquipmentDelivery, EquipmentVentilator}

// EmergencyCategory is the kind of emergency a caller declares.
type EmergencyCategory string

const (
	CategoryNone       EmergencyCategory = ""
	CategoryStroke     EmergencyCategory = "stroke"
	CategoryTraffic    EmergencyCategory = "traffic"
	CategoryCardio     EmergencyCategory = "cardio"
	CategoryObstetrics EmergencyCategory = "obstetrics"
)

var categoryEquipment = map[EmergencyCategory][]Equipment{
	CategoryStroke:     {EquipmentCT, EquipmentMRI, EquipmentAngio},
	CategoryTraffic:    {EquipmentCT, EquipmentAngio},
	CategoryCardio:     {EquipmentAngio, EquipmentVentilator},
	CategoryObstetrics: {EquipmentDelivery},
}

// Valid reports whether c is a known category (including none).
func (c EmergencyCategory) Valid() bool {
	if c == CategoryNone {
		return true
	}
	_, ok := categoryEquipment[c]
	return ok
}

// Equipment returns the fixed equipment mapping of the category.
func (c EmergencyCategory) Equipment() []Equipment {
	return categoryEquipment[c]
}

// EquipmentSet is an unordered set of equipment tags.
type EquipmentSet map[Equipment]struct{}

// Add inserts tags into the set.
func (s EquipmentSet) Add(tags ...Equipment) {
	for _, t := range tags {
		s[t] = struct{}{}
	}
}

// Sorted returns the tags in lexical order.
func (s EquipmentSet) Sorted() []Equipment {
	out := make([]Equipment, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
