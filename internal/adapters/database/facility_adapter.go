package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/erboard/backend/internal/domain/entities"
	"github.com/erboard/backend/internal/domain/repositories"
	"github.com/erboard/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/erboard/backend/pkg/errors"
)

const facilityTable = "er_facilities"

var facilityColumns = []interface{}{
	"id", "hpid", "name", "address", "sido", "sigungu", "latitude", "longitude", "updated_at",
}

// FacilityAdapter implements the FacilityRepository interface
type FacilityAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewFacilityAdapter creates a new facility adapter
func NewFacilityAdapter(client *postgres.Client) repositories.FacilityRepository {
	return &FacilityAdapter{
		client: client,
		db:     client.Goqu(),
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFacility(row rowScanner) (*entities.Facility, error) {
	f := &entities.Facility{}
	var lat, lng sql.NullFloat64
	if err := row.Scan(&f.ID, &f.HPID, &f.Name, &f.Address, &f.Sido, &f.Sigungu, &lat, &lng, &f.UpdatedAt); err != nil {
		return nil, err
	}
	if lat.Valid && lng.Valid {
		f.Location = &entities.Location{Latitude: lat.Float64, Longitude: lng.Float64}
	}
	return f, nil
}

// GetByID retrieves a facility by ID
func (a *FacilityAdapter) GetByID(ctx context.Context, id int64) (*entities.Facility, error) {
	query, _, err := a.db.Select(facilityColumns...).
		From(facilityTable).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	f, err := scanFacility(a.client.DB().QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("facility with id %d not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get facility", err)
	}
	return f, nil
}

// List retrieves facilities ordered by name
func (a *FacilityAdapter) List(ctx context.Context, filter repositories.FacilityFilter) ([]*entities.Facility, error) {
	ds := a.db.Select(facilityColumns...).From(facilityTable)
	if len(filter.SidoIn) > 0 {
		ds = ds.Where(goqu.Ex{"sido": filter.SidoIn})
	}
	if filter.Sigungu != "" {
		ds = ds.Where(goqu.Ex{"sigungu": filter.Sigungu})
	}
	ds = ds.Order(goqu.I("name").Asc(), goqu.I("id").Asc())
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}

	query, _, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list facilities", err)
	}
	defer rows.Close()

	var facilities []*entities.Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan facility", err)
		}
		facilities = append(facilities, f)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate facilities", err)
	}
	return facilities, nil
}

// IDsByHPID resolves external ids to internal ids
func (a *FacilityAdapter) IDsByHPID(ctx context.Context, hpids []string) (map[string]int64, error) {
	out := make(map[string]int64, len(hpids))
	if len(hpids) == 0 {
		return out, nil
	}

	query, _, err := a.db.Select("hpid", "id").
		From(facilityTable).
		Where(goqu.Ex{"hpid": hpids}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to resolve hpids", err)
	}
	defer rows.Close()

	for rows.Next() {
		var hpid string
		var id int64
		if err := rows.Scan(&hpid, &id); err != nil {
			return nil, apperrors.NewInternalError("failed to scan hpid", err)
		}
		out[hpid] = id
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate hpids", err)
	}
	return out, nil
}

// RegionPairs returns the distinct (sido, sigungu) pairs of known facilities
func (a *FacilityAdapter) RegionPairs(ctx context.Context) ([]entities.RegionPair, error) {
	query, _, err := a.db.From(facilityTable).
		SelectDistinct("sido", "sigungu").
		Where(goqu.C("sido").Neq(""), goqu.C("sigungu").Neq("")).
		Order(goqu.I("sido").Asc(), goqu.I("sigungu").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list regions", err)
	}
	defer rows.Close()

	var pairs []entities.RegionPair
	for rows.Next() {
		var p entities.RegionPair
		if err := rows.Scan(&p.Sido, &p.Sigungu); err != nil {
			return nil, apperrors.NewInternalError("failed to scan region", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate regions", err)
	}
	return pairs, nil
}

// Sigungus returns the districts of a province under any of its spellings
func (a *FacilityAdapter) Sigungus(ctx context.Context, sidoVariants []string) ([]string, error) {
	if len(sidoVariants) == 0 {
		return []string{}, nil
	}

	query, _, err := a.db.From(facilityTable).
		SelectDistinct("sigungu").
		Where(goqu.Ex{"sido": sidoVariants}, goqu.C("sigungu").Neq("")).
		Order(goqu.I("sigungu").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list districts", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, apperrors.NewInternalError("failed to scan district", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate districts", err)
	}
	return out, nil
}
