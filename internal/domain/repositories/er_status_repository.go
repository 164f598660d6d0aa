package repositories

import (
	"context"

	"github.com/erboard/backend/internal/domain/entities"
)

// StagingRepository defines the per-cycle raw snapshot table
type StagingRepository interface {
	// ReplaceAll deletes every staging row and inserts rows in one transaction
	ReplaceAll(ctx context.Context, rows []*entities.StagingReading) error

	// ListAll returns every staging row
	ListAll(ctx context.Context) ([]*entities.StagingReading, error)

	// DistinctHPIDs returns the hpids present in staging
	DistinctHPIDs(ctx context.Context) ([]string, error)
}

// CurrentStatusRepository defines the durable latest-status table
type CurrentStatusRepository interface {
	// ReplaceAll deletes every current status row and inserts rows in one
	// transaction under a single-writer advisory lock
	ReplaceAll(ctx context.Context, rows []*entities.CurrentStatus) error

	// GetByFacilityID returns the status of one facility
	GetByFacilityID(ctx context.Context, facilityID int64) (*entities.CurrentStatus, error)

	// ListByFacilityIDs returns statuses keyed by facility id
	ListByFacilityIDs(ctx context.Context, facilityIDs []int64) (map[int64]*entities.CurrentStatus, error)
}

// MessageRepository defines the advisory message table
type MessageRepository interface {
	// UpsertIfNewer stores msg when no message exists for the facility or the
	// stored one is strictly older. It reports whether a row was written.
	UpsertIfNewer(ctx context.Context, msg *entities.Message) (bool, error)

	// GetByFacilityID returns the stored message of a facility
	GetByFacilityID(ctx context.Context, facilityID int64) (*entities.Message, error)
}
