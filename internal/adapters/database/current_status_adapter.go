package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/erboard/backend/internal/domain/entities"
	"github.com/erboard/backend/internal/domain/repositories"
	"github.com/erboard/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/erboard/backend/pkg/errors"
)

const currentStatusTable = "er_current_status"

var currentStatusColumns = []interface{}{
	"facility_id", "observed_at",
	"general_available", "general_total",
	"child_available", "child_total",
	"delivery_available", "delivery_total",
	"negative_available", "negative_total",
	"isolation_general_available", "isolation_general_total",
	"isolation_cohort_available", "isolation_cohort_total",
	"has_ct", "has_mri", "has_angio", "has_ventilator", "has_delivery_room",
	"merged_at",
}

// CurrentStatusAdapter implements the CurrentStatusRepository interface
type CurrentStatusAdapter struct {
	client  *postgres.Client
	db      *goqu.Database
	lockKey int64
}

// NewCurrentStatusAdapter creates a new current status adapter. lockKey is the
// advisory lock that serializes writers of the table.
func NewCurrentStatusAdapter(client *postgres.Client, lockKey int64) repositories.CurrentStatusRepository {
	return &CurrentStatusAdapter{
		client:  client,
		db:      client.Goqu(),
		lockKey: lockKey,
	}
}

func currentStatusRecord(s *entities.CurrentStatus) goqu.Record {
	return goqu.Record{
		"facility_id":                 s.FacilityID,
		"observed_at":                 s.ObservedAt,
		"general_available":           nullableInt(s.General.Available),
		"general_total":               nullableInt(s.General.Total),
		"child_available":             nullableInt(s.Child.Available),
		"child_total":                 nullableInt(s.Child.Total),
		"delivery_available":          nullableInt(s.Delivery.Available),
		"delivery_total":              nullableInt(s.Delivery.Total),
		"negative_available":          nullableInt(s.NegativePressure.Available),
		"negative_total":              nullableInt(s.NegativePressure.Total),
		"isolation_general_available": nullableInt(s.IsolationGeneral.Available),
		"isolation_general_total":     nullableInt(s.IsolationGeneral.Total),
		"isolation_cohort_available":  nullableInt(s.IsolationCohort.Available),
		"isolation_cohort_total":      nullableInt(s.IsolationCohort.Total),
		"has_ct":                      nullableBool(s.HasCT),
		"has_mri":                     nullableBool(s.HasMRI),
		"has_angio":                   nullableBool(s.HasAngio),
		"has_ventilator":              nullableBool(s.HasVentilator),
		"has_delivery_room":           nullableBool(s.HasDeliveryRoom),
		"merged_at":                   s.MergedAt,
	}
}

// ReplaceAll swaps the whole table for rows. The transaction first takes a
// transaction-scoped advisory lock; if another writer holds it the call fails
// with a conflict instead of interleaving two delete-then-insert runs.
func (a *CurrentStatusAdapter) ReplaceAll(ctx context.Context, rows []*entities.CurrentStatus) error {
	lockSQL, _, err := a.db.Select(goqu.Func("pg_try_advisory_xact_lock", a.lockKey)).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build lock query", err)
	}
	deleteSQL, _, err := a.db.Delete(currentStatusTable).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	inserts := make([]string, 0, len(rows)/insertBatchSize+1)
	for _, b := range batches(len(rows), insertBatchSize) {
		records := make([]interface{}, 0, b[1]-b[0])
		for _, s := range rows[b[0]:b[1]] {
			records = append(records, currentStatusRecord(s))
		}
		q, _, err := a.db.Insert(currentStatusTable).Rows(records...).ToSQL()
		if err != nil {
			return apperrors.NewInternalError("failed to build insert query", err)
		}
		inserts = append(inserts, q)
	}

	return a.client.WithTx(ctx, func(tx *sql.Tx) error {
		var locked bool
		if err := tx.QueryRowContext(ctx, lockSQL).Scan(&locked); err != nil {
			return apperrors.NewInternalError("failed to acquire merge lock", err)
		}
		if !locked {
			return apperrors.NewConflictError("another merge is in progress")
		}
		if _, err := tx.ExecContext(ctx, deleteSQL); err != nil {
			return apperrors.NewInternalError("failed to clear current status", err)
		}
		for _, q := range inserts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				return apperrors.NewInternalError("failed to insert current status rows", err)
			}
		}
		return nil
	})
}

func scanCurrentStatus(row rowScanner) (*entities.CurrentStatus, error) {
	s := &entities.CurrentStatus{}
	var (
		genA, genT, childA, childT, delivA, delivT, negA, negT, isoA, isoT, cohA, cohT sql.NullInt64
		ct, mri, angio, vent, room                                                  sql.NullBool
	)
	if err := row.Scan(
		&s.FacilityID, &s.ObservedAt,
		&genA, &genT,
		&childA, &childT,
		&delivA, &delivT,
		&negA, &negT,
		&isoA, &isoT,
		&cohA, &cohT,
		&ct, &mri, &angio, &vent, &room,
		&s.MergedAt,
	); err != nil {
		return nil, err
	}

	s.General = entities.BedCount{Available: intFromNull(genA), Total: intFromNull(genT)}
	s.Child = entities.BedCount{Available: intFromNull(childA), Total: intFromNull(childT)}
	s.Delivery = entities.BedCount{Available: intFromNull(delivA), Total: intFromNull(delivT)}
	s.NegativePressure = entities.BedCount{Available: intFromNull(negA), Total: intFromNull(negT)}
	s.IsolationGeneral = entities.BedCount{Available: intFromNull(isoA), Total: intFromNull(isoT)}
	s.IsolationCohort = entities.BedCount{Available: intFromNull(cohA), Total: intFromNull(cohT)}
	s.HasCT = boolFromNull(ct)
	s.HasMRI = boolFromNull(mri)
	s.HasAngio = boolFromNull(angio)
	s.HasVentilator = boolFromNull(vent)
	s.HasDeliveryRoom = boolFromNull(room)
	return s, nil
}

// GetByFacilityID returns the status of one facility
func (a *CurrentStatusAdapter) GetByFacilityID(ctx context.Context, facilityID int64) (*entities.CurrentStatus, error) {
	query, _, err := a.db.Select(currentStatusColumns...).
		From(currentStatusTable).
		Where(goqu.Ex{"facility_id": facilityID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	s, err := scanCurrentStatus(a.client.DB().QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no current status for facility %d", facilityID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get current status", err)
	}
	return s, nil
}

// ListByFacilityIDs returns statuses keyed by facility id. A nil slice loads every row.
func (a *CurrentStatusAdapter) ListByFacilityIDs(ctx context.Context, facilityIDs []int64) (map[int64]*entities.CurrentStatus, error) {
	out := make(map[int64]*entities.CurrentStatus)
	if facilityIDs != nil && len(facilityIDs) == 0 {
		return out, nil
	}

	ds := a.db.Select(currentStatusColumns...).From(currentStatusTable)
	if facilityIDs != nil {
		ds = ds.Where(goqu.Ex{"facility_id": facilityIDs})
	}
	query, _, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list current status", err)
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanCurrentStatus(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan current status", err)
		}
		out[s.FacilityID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate current status", err)
	}
	return out, nil
}
