package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vheinola/utuputki/internal/domain"
)

type playlistJoinRow struct {
	PlaylistID int64 `db:"playlist_id"`
	QueueTime  int64 `db:"queue_time"`
	mediaRow
}

const playlistJoinQuery = `SELECT
		p.id AS playlist_id, p.queue_time,
		m.id, m.status, m.url, m.filename, m.title, m.length,
		m.filesize, m.metadata, m.metadata_time, m.error_message
	FROM playlist p JOIN media m ON p.media = m.id`

// AddToPlaylist queues a media for playback. A media already on the
// playlist stays where it is; the call is idempotent.
func (db *DB) AddToPlaylist(id domain.MediaID) error {
	return db.transact(func(tx *sqlx.Tx) error {
		var existing int64
		err := tx.Get(&existing, `SELECT id FROM playlist WHERE media = ?`, int64(id))
		if err == nil {
			db.log.Info("Media is already on playlist", "media_id", id)
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check playlist: %w", err)
		}

		res, err := tx.Exec(`INSERT INTO playlist (media, queue_time) VALUES (?, ?)`,
			int64(id), timeToDB(time.Now()))
		if err != nil {
			return fmt.Errorf("failed to insert playlist row: %w", err)
		}
		newID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get new playlist id: %w", err)
		}
		db.log.Debug("New playlist row", "playlist_id", newID, "media_id", id)
		return nil
	})
}

// GetPlaylist returns all queued items joined with their media snapshots,
// ascending by queue time.
func (db *DB) GetPlaylist() ([]domain.PlaylistItem, error) {
	var items []domain.PlaylistItem
	err := db.transact(func(tx *sqlx.Tx) error {
		var rows []playlistJoinRow
		if err := tx.Select(&rows, playlistJoinQuery+` ORDER BY p.queue_time ASC`); err != nil {
			return fmt.Errorf("failed to list playlist: %w", err)
		}
		items = make([]domain.PlaylistItem, 0, len(rows))
		for i := range rows {
			items = append(items, domain.PlaylistItem{
				ID:        domain.PlaylistItemID(rows[i].PlaylistID),
				QueueTime: timeFromDB(rows[i].QueueTime),
				Media:     rows[i].toDomain(),
			})
		}
		return nil
	})
	return items, err
}

// PopNextPlaylistItem claims the oldest Ready playlist item: the playlist
// row is deleted and a matching history row inserted in the same
// transaction, so no item can be claimed twice. Returns nil when nothing is
// ready; storage errors are logged and also yield nil.
func (db *DB) PopNextPlaylistItem() *domain.HistoryItem {
	var item *domain.HistoryItem
	err := db.transact(func(tx *sqlx.Tx) error {
		var row playlistJoinRow
		err := tx.Get(&row, playlistJoinQuery+` WHERE m.status = ? ORDER BY p.queue_time ASC LIMIT 1`,
			int(domain.MediaReady))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to select next playlist item: %w", err)
		}

		if _, err := tx.Exec(`DELETE FROM playlist WHERE id = ?`, row.PlaylistID); err != nil {
			return fmt.Errorf("failed to delete playlist row: %w", err)
		}

		startTime := domain.TruncateToMicros(time.Now())
		res, err := tx.Exec(`INSERT INTO history (media, queue_time, start_time) VALUES (?, ?, ?)`,
			row.ID, row.QueueTime, timeToDB(startTime))
		if err != nil {
			return fmt.Errorf("failed to insert history row: %w", err)
		}
		historyID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get new history id: %w", err)
		}

		item = &domain.HistoryItem{
			ID:        domain.HistoryItemID(historyID),
			QueueTime: timeFromDB(row.QueueTime),
			StartTime: startTime,
			Media:     row.toDomain(),
		}
		return nil
	})
	if err != nil {
		db.log.Error("PopNextPlaylistItem failed", "error", err)
		return nil
	}
	return item
}
