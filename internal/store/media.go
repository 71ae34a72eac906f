package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vheinola/utuputki/internal/domain"
)

type mediaRow struct {
	ID           int64  `db:"id"`
	Status       int    `db:"status"`
	URL          string `db:"url"`
	Filename     string `db:"filename"`
	Title        string `db:"title"`
	Length       int    `db:"length"`
	Filesize     int64  `db:"filesize"`
	Metadata     string `db:"metadata"`
	MetadataTime int64  `db:"metadata_time"`
	ErrorMessage string `db:"error_message"`
}

func (r *mediaRow) toDomain() domain.Media {
	return domain.Media{
		ID:           domain.MediaID(r.ID),
		Status:       domain.MediaStatus(r.Status),
		URL:          r.URL,
		Filename:     r.Filename,
		Title:        r.Title,
		Length:       r.Length,
		Filesize:     r.Filesize,
		Metadata:     r.Metadata,
		MetadataTime: timeFromDB(r.MetadataTime),
		ErrorMessage: r.ErrorMessage,
	}
}

const mediaColumns = `id, status, url, filename, title, length, filesize, metadata, metadata_time, error_message`

// GetOrAddMediaByURL returns the media row for url, inserting a fresh
// Initial row if none exists yet.
func (db *DB) GetOrAddMediaByURL(url string) (domain.Media, error) {
	if url == "" {
		return domain.Media{}, errors.New("empty url")
	}

	var media domain.Media
	err := db.transact(func(tx *sqlx.Tx) error {
		var row mediaRow
		err := tx.Get(&row, `SELECT `+mediaColumns+` FROM media WHERE url = ?`, url)
		if errors.Is(err, sql.ErrNoRows) {
			res, err := tx.Exec(`INSERT INTO media (url) VALUES (?)`, url)
			if err != nil {
				return fmt.Errorf("failed to insert media: %w", err)
			}
			newID, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to get new media id: %w", err)
			}
			if err := tx.Get(&row, `SELECT `+mediaColumns+` FROM media WHERE id = ?`, newID); err != nil {
				return fmt.Errorf("failed to re-read new media: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("failed to look up media by url: %w", err)
		}

		media = row.toDomain()
		return nil
	})
	return media, err
}

// GetMediaInfo returns a snapshot of the media row with the given id.
func (db *DB) GetMediaInfo(id domain.MediaID) (domain.Media, error) {
	var media domain.Media
	err := db.transact(func(tx *sqlx.Tx) error {
		var row mediaRow
		err := tx.Get(&row, `SELECT `+mediaColumns+` FROM media WHERE id = ?`, int64(id))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get media %d: %w", id, err)
		}
		media = row.toDomain()
		return nil
	})
	return media, err
}

// GetAllMedia returns every media row, ascending by id.
func (db *DB) GetAllMedia() ([]domain.Media, error) {
	var all []domain.Media
	err := db.transact(func(tx *sqlx.Tx) error {
		var rows []mediaRow
		if err := tx.Select(&rows, `SELECT `+mediaColumns+` FROM media ORDER BY id ASC`); err != nil {
			return fmt.Errorf("failed to list media: %w", err)
		}
		all = make([]domain.Media, 0, len(rows))
		for i := range rows {
			all = append(all, rows[i].toDomain())
		}
		return nil
	})
	return all, err
}

// UpdateMediaInfo writes the full snapshot back to the store.
//
// If the snapshot's URL differs from the stored one and another media row
// already owns the new URL, the two rows merge: playlist rows are repointed
// at the surviving row (keeping only the earlier-queued one), the updated
// row is deleted, and media.ID is rewritten to the surviving id before the
// field update is applied to it.
//
// A snapshot with status Failed also evicts the media from the playlist.
func (db *DB) UpdateMediaInfo(media *domain.Media) error {
	return db.transact(func(tx *sqlx.Tx) error {
		var old mediaRow
		err := tx.Get(&old, `SELECT `+mediaColumns+` FROM media WHERE id = ?`, int64(media.ID))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get media %d: %w", media.ID, err)
		}

		if media.URL != old.URL {
			db.log.Info("Media URL changed", "media_id", media.ID, "old_url", old.URL, "new_url", media.URL)
			if err := db.mergeByURL(tx, media); err != nil {
				return err
			}
		}

		_, err = tx.Exec(`UPDATE media SET
				status = ?, url = ?, filename = ?, title = ?, length = ?,
				filesize = ?, metadata = ?, metadata_time = ?, error_message = ?
			WHERE id = ?`,
			int(media.Status), media.URL, media.Filename, media.Title, media.Length,
			media.Filesize, media.Metadata, timeToDB(media.MetadataTime), media.ErrorMessage,
			int64(media.ID))
		if err != nil {
			return fmt.Errorf("failed to update media %d: %w", media.ID, err)
		}

		if media.Status == domain.MediaFailed {
			db.log.Info("Media failed, removing from playlist", "media_id", media.ID, "url", media.URL, "title", media.Title)
			if _, err := tx.Exec(`DELETE FROM playlist WHERE media = ?`, int64(media.ID)); err != nil {
				return fmt.Errorf("failed to evict failed media from playlist: %w", err)
			}
		}

		return nil
	})
}

// mergeByURL folds media into an existing row that already owns media.URL.
// The fetcher normalises URLs, so two user-submitted URLs can turn out to
// denote the same media.
func (db *DB) mergeByURL(tx *sqlx.Tx, media *domain.Media) error {
	var other mediaRow
	err := tx.Get(&other, `SELECT `+mediaColumns+` FROM media WHERE url = ?`, media.URL)
	if errors.Is(err, sql.ErrNoRows) {
		// URL changed but nothing to merge with
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up merge target: %w", err)
	}

	db.log.Info("Merging media rows", "surviving_id", other.ID, "merged_id", media.ID)

	// Both rows may be on the playlist; keep only the earlier-queued one.
	var playlistIDs []int64
	err = tx.Select(&playlistIDs,
		`SELECT id FROM playlist WHERE media IN (?, ?) ORDER BY queue_time ASC`,
		other.ID, int64(media.ID))
	if err != nil {
		return fmt.Errorf("failed to list playlist rows for merge: %w", err)
	}
	if len(playlistIDs) > 1 {
		for _, dupe := range playlistIDs[1:] {
			if _, err := tx.Exec(`DELETE FROM playlist WHERE id = ?`, dupe); err != nil {
				return fmt.Errorf("failed to delete duplicate playlist row: %w", err)
			}
		}
	}

	// Repoint any remaining playlist row at the surviving media.
	if _, err := tx.Exec(`UPDATE playlist SET media = ? WHERE media = ?`, other.ID, int64(media.ID)); err != nil {
		return fmt.Errorf("failed to repoint playlist row: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM media WHERE id = ?`, int64(media.ID)); err != nil {
		return fmt.Errorf("failed to delete merged media: %w", err)
	}

	// Rewrite the caller's id so the field update lands on the survivor.
	media.ID = domain.MediaID(other.ID)
	return nil
}
