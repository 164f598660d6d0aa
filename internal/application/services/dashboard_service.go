package services

import (
	"context"

	"github.com/erboard/backend/internal/domain/entities"
	"github.com/erboard/backend/internal/domain/repositories"
	apperrors "github.com/erboard/backend/pkg/errors"
	"github.com/erboard/backend/pkg/utils"
)

// BedCategory names a bed pair in the detail view.
type BedCategory string

const (
	BedGeneral          BedCategory = "general"
	BedChild            BedCategory = "child"
	BedDelivery         BedCategory = "delivery"
	BedNegativePressure BedCategory = "negative_pressure"
	BedIsolationGeneral BedCategory = "isolation_general"
	BedIsolationCohort  BedCategory = "isolation_cohort"
)

// DashboardResult is one rendering of the ranked dashboard.
type DashboardResult struct {
	RegionSummary string                     `json:"region_summary"`
	Preferences   entities.Preferences       `json:"preferences"`
	Count         int                        `json:"count"`
	Facilities    []*entities.RankedFacility `json:"facilities"`
}

// DashboardService serves the read side: ranked listings and facility detail.
type DashboardService struct {
	facilities repositories.FacilityRepository
	current    repositories.CurrentStatusRepository
	messages   repositories.MessageRepository
	ranking    *RankingService
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(
	facilities repositories.FacilityRepository,
	current repositories.CurrentStatusRepository,
	messages repositories.MessageRepository,
	ranking *RankingService,
) *DashboardService {
	return &DashboardService{
		facilities: facilities,
		current:    current,
		messages:   messages,
		ranking:    ranking,
	}
}

// Dashboard loads facilities with their current status and ranks them.
func (s *DashboardService) Dashboard(ctx context.Context, prefs entities.Preferences, origin *entities.Location) (*DashboardResult, error) {
	filter := repositories.FacilityFilter{}
	if prefs.RegionSelected() {
		filter.SidoIn = utils.SidoVariants(prefs.Sido)
		if prefs.SigunguSelected() {
			filter.Sigungu = prefs.Sigungu
		}
	}

	facilities, err := s.facilities.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(facilities))
	for i, f := range facilities {
		ids[i] = f.ID
	}
	statuses, err := s.current.ListByFacilityIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	joined := make([]entities.FacilityStatus, len(facilities))
	for i, f := range facilities {
		joined[i] = entities.FacilityStatus{Facility: f, Status: statuses[f.ID]}
	}

	ranked := s.ranking.Rank(joined, prefs, origin)
	return &DashboardResult{
		RegionSummary: prefs.RegionSummary(),
		Preferences:   prefs,
		Count:         len(ranked),
		Facilities:    ranked,
	}, nil
}

// Detail returns a facility with its status, display blocks, tags and latest message.
func (s *DashboardService) Detail(ctx context.Context, facilityID int64) (*entities.FacilityDetail, error) {
	facility, err := s.facilities.GetByID(ctx, facilityID)
	if err != nil {
		return nil, err
	}

	detail := &entities.FacilityDetail{
		Facility: facility,
		StatusUI: map[string]entities.StatusUI{},
		Tags:     []string{},
	}

	status, err := s.current.GetByFacilityID(ctx, facilityID)
	switch {
	case apperrors.IsNotFound(err):
	case err != nil:
		return nil, err
	default:
		detail.Status = status
		detail.StatusUI = BuildStatusUI(status)
		detail.Tags = EquipmentTags(status)
	}

	msg, err := s.messages.GetByFacilityID(ctx, facilityID)
	switch {
	case apperrors.IsNotFound(err):
	case err != nil:
		return nil, err
	case msg.Text != "":
		text := msg.Text
		detail.Message = &text
	}
	return detail, nil
}

// BuildStatusUI computes the label and color of every bed category.
func BuildStatusUI(status *entities.CurrentStatus) map[string]entities.StatusUI {
	pairs := []struct {
		category BedCategory
		count    entities.BedCount
	}{
		{BedGeneral, status.General},
		{BedChild, status.Child},
		{BedDelivery, status.Delivery},
		{BedNegativePressure, status.NegativePressure},
		{BedIsolationGeneral, status.IsolationGeneral},
		{BedIsolationCohort, status.IsolationCohort},
	}

	out := make(map[string]entities.StatusUI, len(pairs))
	for _, p := range pairs {
		out[string(p.category)] = entities.StatusUI{
			Label:      CongestionLabel(p.count.Available, p.count.Total, p.category),
			ColorClass: CongestionColor(p.count.Available, p.count.Total, p.category),
			Available:  p.count.Available,
			Total:      p.count.Total,
		}
	}
	return out
}

// EquipmentTags lists the display names of confirmed equipment.
func EquipmentTags(status *entities.CurrentStatus) []string {
	tags := []string{}
	for _, t := range []struct {
		eq   entities.Equipment
		name string
	}{
		{entities.EquipmentCT, "CT"},
		{entities.EquipmentMRI, "MRI"},
		{entities.EquipmentAngio, "혈관조영"},
		{entities.EquipmentVentilator, "인공호흡기"},
		{entities.EquipmentDelivery, "분만실"},
	} {
		if status.Satisfies(t.eq) {
			tags = append(tags, t.name)
		}
	}
	return tags
}

type congestionLevel int

const (
	levelUnknown congestionLevel = iota
	levelNoTotal
	levelFree
	levelModerate
	levelCrowded
	levelDeliveryOpen
	levelDeliveryClosed
)

func classify(available, total *int, category BedCategory) congestionLevel {
	if available == nil {
		return levelUnknown
	}
	avail := *available
	if avail < 0 {
		avail = 0
	}

	if category == BedDelivery {
		if avail >= 1 {
			return levelDeliveryOpen
		}
		return levelDeliveryClosed
	}
	if avail == 0 {
		return levelCrowded
	}
	if total == nil || *total <= 0 {
		return levelNoTotal
	}

	ratio := float64(avail) / float64(*total)
	freeAt := 0.8
	switch category {
	case BedNegativePressure, BedIsolationGeneral, BedIsolationCohort:
		freeAt = 1.0
	}
	switch {
	case ratio >= freeAt:
		return levelFree
	case ratio >= 0.5:
		return levelModerate
	}
	return levelCrowded
}

// CongestionLabel is the legend text for a bed pair.
func CongestionLabel(available, total *int, category BedCategory) string {
	switch classify(available, total, category) {
	case levelDeliveryOpen:
		return "가능"
	case levelDeliveryClosed:
		return "불가능"
	case levelFree:
		return "원활"
	case levelModerate, levelNoTotal:
		return "보통"
	case levelCrowded:
		return "혼잡"
	}
	return "-"
}

// CongestionColor is the legend color class for a bed pair.
func CongestionColor(available, total *int, category BedCategory) string {
	switch classify(available, total, category) {
	case levelFree, levelDeliveryOpen:
		return "green"
	case levelModerate:
		return "orange"
	case levelCrowded, levelDeliveryClosed:
		return "red"
	}
	return "none"
}
