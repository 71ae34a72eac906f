package store

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vheinola/utuputki/internal/domain"
)

type historyJoinRow struct {
	HistoryID    int64         `db:"history_id"`
	QueueTime    int64         `db:"queue_time"`
	StartTime    int64         `db:"start_time"`
	EndTime      int64         `db:"end_time"`
	FinishReason sql.NullInt64 `db:"finish_reason"`
	SkipCount    int           `db:"skip_count"`
	SkipsNeeded  int           `db:"skips_needed"`
	mediaRow
}

// GetHistory returns all playback attempts joined with their media
// snapshots, ascending by queue time.
func (db *DB) GetHistory() ([]domain.HistoryItem, error) {
	var items []domain.HistoryItem
	err := db.transact(func(tx *sqlx.Tx) error {
		var rows []historyJoinRow
		err := tx.Select(&rows, `SELECT
				h.id AS history_id, h.queue_time, h.start_time, h.end_time,
				h.finish_reason, h.skip_count, h.skips_needed,
				m.id, m.status, m.url, m.filename, m.title, m.length,
				m.filesize, m.metadata, m.metadata_time, m.error_message
			FROM history h JOIN media m ON h.media = m.id
			ORDER BY h.queue_time ASC`)
		if err != nil {
			return fmt.Errorf("failed to list history: %w", err)
		}
		items = make([]domain.HistoryItem, 0, len(rows))
		for i := range rows {
			items = append(items, domain.HistoryItem{
				ID:          domain.HistoryItemID(rows[i].HistoryID),
				QueueTime:   timeFromDB(rows[i].QueueTime),
				StartTime:   timeFromDB(rows[i].StartTime),
				EndTime:     timeFromDB(rows[i].EndTime),
				Finish:      finishFromDB(rows[i].FinishReason),
				SkipCount:   rows[i].SkipCount,
				SkipsNeeded: rows[i].SkipsNeeded,
				Media:       rows[i].toDomain(),
			})
		}
		return nil
	})
	return items, err
}

// PlaylistItemFinished finalises the history row for a playback attempt.
// The snapshot's EndTime is persisted as given, so the row and the snapshot
// handed to observers agree.
func (db *DB) PlaylistItemFinished(item *domain.HistoryItem) error {
	return db.transact(func(tx *sqlx.Tx) error {
		_, err := tx.Exec(`UPDATE history SET
				end_time = ?, finish_reason = ?, skip_count = ?, skips_needed = ?
			WHERE id = ?`,
			timeToDB(item.EndTime), finishToDB(item.Finish), item.SkipCount, item.SkipsNeeded,
			int64(item.ID))
		if err != nil {
			return fmt.Errorf("failed to finalise history row %d: %w", item.ID, err)
		}
		return nil
	})
}
