package database

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"

	"github.com/erboard/backend/internal/domain/entities"
	"github.com/erboard/backend/internal/domain/repositories"
	"github.com/erboard/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/erboard/backend/pkg/errors"
)

const stagingTable = "er_status_staging"

var stagingColumns = []interface{}{
	"hpid", "observed_at",
	"general_available", "general_total",
	"child_available", "child_total",
	"delivery_flag", "delivery_total",
	"negative_available", "negative_total",
	"isolation_general_available", "isolation_general_total",
	"isolation_cohort_available", "isolation_cohort_total",
	"ct_flag", "mri_flag", "angio_flag", "ventilator_flag",
}

// StagingAdapter implements the StagingRepository interface
type StagingAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewStagingAdapter creates a new staging adapter
func NewStagingAdapter(client *postgres.Client) repositories.StagingRepository {
	return &StagingAdapter{
		client: client,
		db:     client.Goqu(),
	}
}

func stagingRecord(r *entities.StagingReading) goqu.Record {
	return goqu.Record{
		"hpid":                        r.HPID,
		"observed_at":                 r.ObservedAt,
		"general_available":           nullableInt(r.General.Available),
		"general_total":               nullableInt(r.General.Total),
		"child_available":             nullableInt(r.Child.Available),
		"child_total":                 nullableInt(r.Child.Total),
		"delivery_flag":               nullableString(r.DeliveryFlag),
		"delivery_total":              nullableInt(r.DeliveryTotal),
		"negative_available":          nullableInt(r.NegativePressure.Available),
		"negative_total":              nullableInt(r.NegativePressure.Total),
		"isolation_general_available": nullableInt(r.IsolationGeneral.Available),
		"isolation_general_total":     nullableInt(r.IsolationGeneral.Total),
		"isolation_cohort_available":  nullableInt(r.IsolationCohort.Available),
		"isolation_cohort_total":      nullableInt(r.IsolationCohort.Total),
		"ct_flag":                     nullableString(r.CTFlag),
		"mri_flag":                    nullableString(r.MRIFlag),
		"angio_flag":                  nullableString(r.AngioFlag),
		"ventilator_flag":             nullableString(r.VentilatorFlag),
	}
}

// ReplaceAll deletes every staging row and inserts rows in one transaction
func (a *StagingAdapter) ReplaceAll(ctx context.Context, rows []*entities.StagingReading) error {
	deleteSQL, _, err := a.db.Delete(stagingTable).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	inserts := make([]string, 0, len(rows)/insertBatchSize+1)
	for _, b := range batches(len(rows), insertBatchSize) {
		records := make([]interface{}, 0, b[1]-b[0])
		for _, r := range rows[b[0]:b[1]] {
			records = append(records, stagingRecord(r))
		}
		q, _, err := a.db.Insert(stagingTable).Rows(records...).ToSQL()
		if err != nil {
			return apperrors.NewInternalError("failed to build insert query", err)
		}
		inserts = append(inserts, q)
	}

	return a.client.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteSQL); err != nil {
			return apperrors.NewInternalError("failed to clear staging", err)
		}
		for _, q := range inserts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				return apperrors.NewInternalError("failed to insert staging rows", err)
			}
		}
		return nil
	})
}

// ListAll returns every staging row
func (a *StagingAdapter) ListAll(ctx context.Context) ([]*entities.StagingReading, error) {
	query, _, err := a.db.Select(stagingColumns...).
		From(stagingTable).
		Order(goqu.I("hpid").Asc(), goqu.I("observed_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load staging rows", err)
	}
	defer rows.Close()

	var out []*entities.StagingReading
	for rows.Next() {
		r := &entities.StagingReading{}
		var (
			genA, genT, childA, childT, delivT, negA, negT, isoA, isoT, cohA, cohT sql.NullInt64
			delivFlag, ct, mri, angio, vent                                         sql.NullString
		)
		if err := rows.Scan(
			&r.HPID, &r.ObservedAt,
			&genA, &genT,
			&childA, &childT,
			&delivFlag, &delivT,
			&negA, &negT,
			&isoA, &isoT,
			&cohA, &cohT,
			&ct, &mri, &angio, &vent,
		); err != nil {
			return nil, apperrors.NewInternalError("failed to scan staging row", err)
		}

		r.General = entities.BedCount{Available: intFromNull(genA), Total: intFromNull(genT)}
		r.Child = entities.BedCount{Available: intFromNull(childA), Total: intFromNull(childT)}
		r.DeliveryFlag = stringFromNull(delivFlag)
		r.DeliveryTotal = intFromNull(delivT)
		r.NegativePressure = entities.BedCount{Available: intFromNull(negA), Total: intFromNull(negT)}
		r.IsolationGeneral = entities.BedCount{Available: intFromNull(isoA), Total: intFromNull(isoT)}
		r.IsolationCohort = entities.BedCount{Available: intFromNull(cohA), Total: intFromNull(cohT)}
		r.CTFlag = stringFromNull(ct)
		r.MRIFlag = stringFromNull(mri)
		r.AngioFlag = stringFromNull(angio)
		r.VentilatorFlag = stringFromNull(vent)

		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate staging rows", err)
	}
	return out, nil
}

// DistinctHPIDs returns the hpids present in staging
func (a *StagingAdapter) DistinctHPIDs(ctx context.Context) ([]string, error) {
	query, _, err := a.db.From(stagingTable).
		SelectDistinct("hpid").
		Order(goqu.I("hpid").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list staged hpids", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var hpid string
		if err := rows.Scan(&hpid); err != nil {
			return nil, apperrors.NewInternalError("failed to scan hpid", err)
		}
		out = append(out, hpid)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate hpids", err)
	}
	return out, nil
}
