package database

import (
	"context"
	"fmt"

	"github.com/Capitan-Parrot/site-safety-monitor/internal/models"
)

// AlertRecord is one persisted alert row with its delivery outcome.
type AlertRecord struct {
	models.Alert
	DeliveryStatus string `json:"delivery_status"`
	DeliveryError  string `json:"delivery_error,omitempty"`
}

// CreateAlert inserts an alert as pending delivery.
func (d *Database) CreateAlert(ctx context.Context, alert models.Alert) error {
	_, err := d.DB.ExecContext(ctx,
		`INSERT INTO alerts (id, instance_id, stream_id, hazard_kind, severity, renewal, snapshot, frame_seq, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		alert.ID,
		alert.InstanceID,
		alert.StreamID,
		alert.Kind,
		alert.Severity,
		alert.Renewal,
		alert.Snapshot,
		alert.FrameSeq,
		alert.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// MarkDelivered записывает успешную доставку алерта
func (d *Database) MarkDelivered(ctx context.Context, alertID string) error {
	_, err := d.DB.ExecContext(ctx,
		"UPDATE alerts SET delivery_status = 'delivered', delivery_error = NULL WHERE id = $1",
		alertID,
	)
	return err
}

// MarkUndelivered записывает алерт, исчерпавший попытки доставки
func (d *Database) MarkUndelivered(ctx context.Context, alertID, reason string) error {
	_, err := d.DB.ExecContext(ctx,
		"UPDATE alerts SET delivery_status = 'undelivered', delivery_error = $1 WHERE id = $2",
		reason,
		alertID,
	)
	return err
}

// GetAlerts returns alerts newest first, optionally for one stream.
func (d *Database) GetAlerts(ctx context.Context, streamID string, limit int) ([]AlertRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, instance_id, stream_id, hazard_kind, severity, renewal,
		       COALESCE(snapshot, ''), frame_seq, created_at,
		       delivery_status, COALESCE(delivery_error, '')
		FROM alerts`
	args := []any{}
	if streamID != "" {
		query += " WHERE stream_id = $1"
		args = append(args, streamID)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	rows, err := d.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []AlertRecord
	for rows.Next() {
		var r AlertRecord
		err := rows.Scan(
			&r.ID,
			&r.InstanceID,
			&r.StreamID,
			&r.Kind,
			&r.Severity,
			&r.Renewal,
			&r.Snapshot,
			&r.FrameSeq,
			&r.Timestamp,
			&r.DeliveryStatus,
			&r.DeliveryError,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, rows.Err()
}
