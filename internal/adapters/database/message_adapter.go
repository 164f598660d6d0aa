package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/erboard/backend/internal/domain/entities"
	"github.com/erboard/backend/internal/domain/repositories"
	"github.com/erboard/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/erboard/backend/pkg/errors"
)

const messageTable = "er_messages"

// MessageAdapter implements the MessageRepository interface
type MessageAdapter struct {
	client *postgres.Client
	db     *goqu.Database
	now    func() time.Time
}

// NewMessageAdapter creates a new message adapter
func NewMessageAdapter(client *postgres.Client) repositories.MessageRepository {
	return &MessageAdapter{
		client: client,
		db:     client.Goqu(),
		now:    time.Now,
	}
}

// UpsertIfNewer writes msg unless the stored message is as new or newer.
// The comparison happens inside the statement so concurrent writers cannot
// move the timestamp backwards.
func (a *MessageAdapter) UpsertIfNewer(ctx context.Context, msg *entities.Message) (bool, error) {
	record := goqu.Record{
		"facility_id":  msg.FacilityID,
		"hpid":         msg.HPID,
		"message":      msg.Text,
		"message_type": msg.MessageType,
		"message_time": msg.MessageTime,
		"updated_at":   a.now().UTC(),
	}

	query, _, err := a.db.Insert(messageTable).
		Rows(record).
		OnConflict(goqu.DoUpdate("facility_id", goqu.Record{
			"hpid":         goqu.L("EXCLUDED.hpid"),
			"message":      goqu.L("EXCLUDED.message"),
			"message_type": goqu.L("EXCLUDED.message_type"),
			"message_time": goqu.L("EXCLUDED.message_time"),
			"updated_at":   goqu.L("EXCLUDED.updated_at"),
		}).Where(goqu.L("EXCLUDED.message_time > er_messages.message_time"))).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build upsert query", err)
	}

	res, err := a.client.DB().ExecContext(ctx, query)
	if err != nil {
		return false, apperrors.NewInternalError("failed to upsert message", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.NewInternalError("failed to read affected rows", err)
	}
	return n > 0, nil
}

// GetByFacilityID returns the stored message of a facility
func (a *MessageAdapter) GetByFacilityID(ctx context.Context, facilityID int64) (*entities.Message, error) {
	query, _, err := a.db.Select("facility_id", "hpid", "message", "message_type", "message_time", "updated_at").
		From(messageTable).
		Where(goqu.Ex{"facility_id": facilityID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	m := &entities.Message{}
	err = a.client.DB().QueryRowContext(ctx, query).Scan(
		&m.FacilityID, &m.HPID, &m.Text, &m.MessageType, &m.MessageTime, &m.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no message for facility %d", facilityID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get message", err)
	}
	return m, nil
}
