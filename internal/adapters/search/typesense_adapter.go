package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/erboard/backend/internal/domain/entities"
	"github.com/erboard/backend/internal/domain/repositories"
	tsclient "github.com/erboard/backend/internal/infrastructure/clients/typesense"
	apperrors "github.com/erboard/backend/pkg/errors"
)

const defaultSearchLimit = 20

// TypesenseAdapter implements facility search using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

var _ repositories.FacilitySearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// InitSchema ensures the collection exists
func (a *TypesenseAdapter) InitSchema(ctx context.Context) error {
	return a.client.InitSchema(ctx)
}

func facilityDocument(f *entities.Facility, hasStatus bool) map[string]interface{} {
	doc := map[string]interface{}{
		"id":         strconv.FormatInt(f.ID, 10),
		"hpid":       f.HPID,
		"name":       f.Name,
		"address":    f.Address,
		"sido":       f.Sido,
		"sigungu":    f.Sigungu,
		"has_status": hasStatus,
		"updated_at": f.UpdatedAt.Unix(),
	}
	if f.Location != nil {
		doc["location"] = []float64{f.Location.Latitude, f.Location.Longitude}
	}
	return doc
}

func facilityFromDocument(doc map[string]interface{}) (*entities.Facility, error) {
	rawID, _ := doc["id"].(string)
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid document id %q: %w", rawID, err)
	}

	str := func(k string) string {
		v, _ := doc[k].(string)
		return v
	}
	f := &entities.Facility{
		ID:      id,
		HPID:    str("hpid"),
		Name:    str("name"),
		Address: str("address"),
		Sido:    str("sido"),
		Sigungu: str("sigungu"),
	}
	if loc, ok := doc["location"].([]interface{}); ok && len(loc) == 2 {
		lat, okLat := loc[0].(float64)
		lng, okLng := loc[1].(float64)
		if okLat && okLng {
			f.Location = &entities.Location{Latitude: lat, Longitude: lng}
		}
	}
	return f, nil
}

// sidoFilter builds an exact-match filter over the given spellings.
func sidoFilter(variants []string) string {
	if len(variants) == 0 {
		return ""
	}
	quoted := make([]string, len(variants))
	for i, v := range variants {
		quoted[i] = "`" + strings.ReplaceAll(v, "`", "") + "`"
	}
	return "sido:=[" + strings.Join(quoted, ",") + "]"
}

// Index indexes a facility
func (a *TypesenseAdapter) Index(ctx context.Context, facility *entities.Facility, hasStatus bool) error {
	_, err := a.client.Client().Collection(tsclient.FacilitiesCollection).Documents().Upsert(ctx, facilityDocument(facility, hasStatus))
	if err != nil {
		return apperrors.NewInternalError("failed to index facility", err)
	}
	return nil
}

// Delete removes a facility from index
func (a *TypesenseAdapter) Delete(ctx context.Context, id int64) error {
	_, err := a.client.Client().Collection(tsclient.FacilitiesCollection).Document(strconv.FormatInt(id, 10)).Delete(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to delete facility from index", err)
	}
	return nil
}

// Search runs a full text query over facility names and addresses
func (a *TypesenseAdapter) Search(ctx context.Context, params repositories.SearchParams) ([]*entities.Facility, error) {
	q := strings.TrimSpace(params.Query)
	if q == "" {
		q = "*"
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	searchParams := &api.SearchCollectionParams{
		Q:       pointer.String(q),
		QueryBy: pointer.String("name,address"),
		PerPage: pointer.Int(limit),
	}
	if filter := sidoFilter(params.SidoIn); filter != "" {
		searchParams.FilterBy = pointer.String(filter)
	}

	result, err := a.client.Client().Collection(tsclient.FacilitiesCollection).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to search facilities", err)
	}

	facilities := []*entities.Facility{}
	if result.Hits == nil {
		return facilities, nil
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		f, err := facilityFromDocument(*hit.Document)
		if err != nil {
			continue
		}
		facilities = append(facilities, f)
	}
	return facilities, nil
}
