package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }

func TestParseDeliveryRoom(t *testing.T) {
	cases := []struct {
		name      string
		flag      *string
		total     *int
		available *int
		wantTotal *int
	}{
		{"yes flag takes total", strp("Y"), intp(5), intp(5), intp(5)},
		{"no flag is zero", strp("N"), intp(5), intp(0), intp(5)},
		{"numeric flag is a count", strp("3"), intp(5), intp(3), intp(5)},
		{"missing flag keeps total", nil, intp(5), nil, intp(5)},
		{"blank flag keeps total", strp("  "), intp(5), nil, intp(5)},
		{"yes prefix lowercase", strp("yes"), intp(2), intp(2), intp(2)},
		{"garbage flag", strp("?"), intp(2), nil, intp(2)},
		{"no total means nothing known", strp("Y"), nil, nil, nil},
		{"no total with count", strp("3"), nil, nil, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseDeliveryRoom(tc.flag, tc.total)
			assert.Equal(t, tc.available, got.Available)
			assert.Equal(t, tc.wantTotal, got.Total)
		})
	}
}

func TestClassifyDeliveryFlag_Order(t *testing.T) {
	assert.Equal(t, DeliveryFlag{Kind: DeliveryFlagCount, Count: 12}, ClassifyDeliveryFlag(strp("12")))
	assert.Equal(t, DeliveryFlagYes, ClassifyDeliveryFlag(strp("Y1")).Kind)
	assert.Equal(t, DeliveryFlagNo, ClassifyDeliveryFlag(strp("n")).Kind)
	assert.Equal(t, DeliveryFlagUnknown, ClassifyDeliveryFlag(strp("-1")).Kind)
	assert.Equal(t, DeliveryFlagUnknown, ClassifyDeliveryFlag(nil).Kind)
}

func TestCurrentStatus_SatisfiesAndData(t *testing.T) {
	yes, no := true, false
	s := &CurrentStatus{HasMRI: &yes, HasCT: &no}

	assert.True(t, s.Satisfies(EquipmentMRI))
	assert.False(t, s.Satisfies(EquipmentCT))
	assert.False(t, s.Satisfies(EquipmentAngio))
	assert.False(t, s.Satisfies(EquipmentDelivery))
	assert.False(t, s.HasAnyData())

	s.IsolationCohort = BedCount{Total: intp(3)}
	assert.True(t, s.HasAnyData())

	var missing *CurrentStatus
	assert.False(t, missing.HasAnyData())
	assert.False(t, missing.Satisfies(EquipmentCT))
}

func TestBedCount_Rate(t *testing.T) {
	assert.InDelta(t, 0.9, BedCount{Available: intp(9), Total: intp(10)}.Rate(), 1e-9)
	assert.Equal(t, 0.0, BedCount{Available: intp(9)}.Rate())
	assert.Equal(t, 0.0, BedCount{Available: intp(9), Total: intp(0)}.Rate())
	assert.Equal(t, 0.0, BedCount{Total: intp(4)}.Rate())
}

func TestPreferences_RequiredEquipment(t *testing.T) {
	p := Preferences{EmergencyType: CategoryTraffic, Filters: map[string]string{"mri": "1", "ventilator": "0"}}
	assert.Equal(t, []Equipment{EquipmentAngio, EquipmentCT, EquipmentMRI}, p.RequiredEquipment().Sorted())

	assert.Empty(t, Preferences{}.RequiredEquipment())
	assert.Equal(t, SortScore, Preferences{}.EffectiveSort())
}

func TestPreferences_RegionSummary(t *testing.T) {
	assert.Equal(t, "전체 지역", Preferences{}.RegionSummary())
	assert.Equal(t, "부산광역시 전체", Preferences{Sido: "부산광역시"}.RegionSummary())
	assert.Equal(t, "부산광역시 해운대구", Preferences{Sido: "부산광역시", Sigungu: "해운대구"}.RegionSummary())
}
