package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Kx501/go-disaster-warning/internal/push"
)

func (s *SQLiteDB) RecordDelivery(ctx context.Context, rec push.DeliveryRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deliveries (id, event_id, source, destination, succeeded, error, attempted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.EventID, rec.SourceID, rec.Destination, rec.Succeeded, rec.Error, rec.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("error inserting delivery: %w", err)
	}
	return nil
}

// AppendRaw archives one upstream frame. It satisfies the ingest raw logger,
// which has no error return: a failed insert is logged and dropped so the
// read loop never stalls on the archive.
func (s *SQLiteDB) AppendRaw(connection string, frame []byte) {
	_, err := s.db.Exec(`
		INSERT INTO raw_messages (connection, frame, received_at) VALUES (?, ?, ?)`,
		connection, frame, time.Now().UTC(),
	)
	if err != nil {
		s.log.Error("failed to archive raw frame", "connection", connection, "error", err)
	}
}
