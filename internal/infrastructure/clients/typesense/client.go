package typesense

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/erboard/backend/pkg/config"
	"github.com/erboard/backend/pkg/retry"
)

const (
	FacilitiesCollection = "er_facilities"
)

// Client represents a Typesense client
type Client struct {
	client *typesense.Client
}

// NewClient creates a new Typesense client with exponential backoff retry
func NewClient(cfg *config.TypesenseConfig) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	err := retry.DoWithLog(
		context.Background(),
		retry.DefaultConfig(),
		"Typesense",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := client.Health(ctx, 2*time.Second)
			return err
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).Msg("Typesense connection attempt failed")
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	log.Info().Str("url", cfg.URL).Msg("Connected to Typesense")
	return &Client{client: client}, nil
}

// NewFromClient wraps an existing Typesense client without a health check
func NewFromClient(client *typesense.Client) *Client {
	return &Client{client: client}
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// FacilitySchema is the collection layout of indexed emergency rooms
func FacilitySchema() *api.CollectionSchema {
	return &api.CollectionSchema{
		Name: FacilitiesCollection,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "hpid", Type: "string"},
			{Name: "name", Type: "string"},
			{Name: "address", Type: "string", Optional: pointer.True()},
			{Name: "sido", Type: "string", Facet: pointer.True()},
			{Name: "sigungu", Type: "string", Facet: pointer.True()},
			{Name: "location", Type: "geopoint", Optional: pointer.True()},
			{Name: "has_status", Type: "bool", Facet: pointer.True()},
			{Name: "updated_at", Type: "int64"},
		},
		DefaultSortingField: pointer.String("updated_at"),
	}
}

// InitSchema ensures the facilities collection exists
func (c *Client) InitSchema(ctx context.Context) error {
	collections, err := c.client.Collections().Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve collections: %w", err)
	}

	for _, col := range collections {
		if col.Name == FacilitiesCollection {
			log.Debug().Str("collection", FacilitiesCollection).Msg("Typesense collection already exists")
			return nil
		}
	}

	if _, err := c.client.Collections().Create(ctx, FacilitySchema()); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	log.Info().Str("collection", FacilitiesCollection).Msg("Created Typesense collection")
	return nil
}
