package push

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Repository is the optional delivery log. It records what was presented and
// how clicks resolved for diagnostics; the engine never depends on it for
// correctness and carries no durable state of its own.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a delivery log backed by the given database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// LogPresented records a tray presentation.
func (r *Repository) LogPresented(ctx context.Context, n *PresentedNotification) error {
	query := `
		INSERT INTO notification_deliveries (id, message_id, tag, kind, title, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	kind := string(KindOf(n.Data))
	messageID := ""
	if n.Data != nil {
		messageID = n.Data[DataKeyMessageID]
	}
	_, err := r.db.ExecContext(ctx, query,
		uuid.New().String(), messageID, n.Tag, kind, n.Title, n.Body, time.Now(),
	)
	return err
}

// LogClick records a click and its resolution.
func (r *Repository) LogClick(ctx context.Context, ev ClickEvent, res Resolution) error {
	query := `
		INSERT INTO notification_clicks (id, tag, action, rule, target, declined, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		uuid.New().String(), ev.Tag(), ev.Action, res.Rule, res.Target, res.Declined, time.Now(),
	)
	return err
}

// RecentDeliveries returns the most recent presented notifications, newest
// first. Used by the debug surface.
func (r *Repository) RecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error) {
	query := `
		SELECT id, message_id, tag, kind, title, created_at
		FROM notification_deliveries ORDER BY created_at DESC LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []DeliveryRecord
	for rows.Next() {
		var rec DeliveryRecord
		if err := rows.Scan(&rec.ID, &rec.MessageID, &rec.Tag, &rec.Kind, &rec.Title, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeliveryRecord is one row of the delivery log.
type DeliveryRecord struct {
	ID        string    `json:"id"`
	MessageID string    `json:"message_id,omitempty"`
	Tag       string    `json:"tag"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}
