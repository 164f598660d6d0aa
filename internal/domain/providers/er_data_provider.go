package providers

import (
	"context"

	"github.com/erboard/backend/internal/domain/entities"
)

// ERDataProvider is the upstream source of real-time ER data
type ERDataProvider interface {
	// FetchRegion returns the bed readings of every ER in a region
	FetchRegion(ctx context.Context, region entities.RegionPair) ([]*entities.StagingReading, error)

	// FetchBasicInfo returns facility-level facts for one ER
	FetchBasicInfo(ctx context.Context, hpid string) (*entities.BasicInfo, error)

	// FetchMessages returns the advisory messages currently published by one ER
	FetchMessages(ctx context.Context, hpid string) ([]*entities.Message, error)
}
