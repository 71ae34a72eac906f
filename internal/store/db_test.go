package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/vheinola/utuputki/internal/domain"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(Options{File: filepath.Join(t.TempDir(), "test.sqlite")})
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func addReadyMedia(t *testing.T, db *DB, url, filename string) domain.Media {
	t.Helper()

	media, err := db.GetOrAddMediaByURL(url)
	if err != nil {
		t.Fatalf("GetOrAddMediaByURL failed: %v", err)
	}
	media.Status = domain.MediaReady
	media.Filename = filename
	if err := db.UpdateMediaInfo(&media); err != nil {
		t.Fatalf("UpdateMediaInfo failed: %v", err)
	}
	return media
}

func TestGetOrAddMediaByURL(t *testing.T) {
	db := setupTestDB(t)

	media, err := db.GetOrAddMediaByURL("https://youtu.be/AAA")
	if err != nil {
		t.Fatalf("GetOrAddMediaByURL failed: %v", err)
	}
	if media.ID == 0 {
		t.Error("Expected a positive id")
	}
	if media.Status != domain.MediaInitial {
		t.Errorf("Expected status initial, got %s", media.Status)
	}

	// Same canonical URL returns the same id every time
	for i := 0; i < 3; i++ {
		again, err := db.GetOrAddMediaByURL("https://youtu.be/AAA")
		if err != nil {
			t.Fatalf("GetOrAddMediaByURL failed: %v", err)
		}
		if again.ID != media.ID {
			t.Errorf("Expected id %d, got %d", media.ID, again.ID)
		}
	}

	other, err := db.GetOrAddMediaByURL("https://youtu.be/BBB")
	if err != nil {
		t.Fatalf("GetOrAddMediaByURL failed: %v", err)
	}
	if other.ID == media.ID {
		t.Error("Different URLs must get different ids")
	}

	if _, err := db.GetOrAddMediaByURL(""); err == nil {
		t.Error("Expected error for empty url")
	}
}

func TestGetMediaInfo(t *testing.T) {
	db := setupTestDB(t)

	media, err := db.GetOrAddMediaByURL("https://youtu.be/AAA")
	if err != nil {
		t.Fatalf("GetOrAddMediaByURL failed: %v", err)
	}

	fetched, err := db.GetMediaInfo(media.ID)
	if err != nil {
		t.Fatalf("GetMediaInfo failed: %v", err)
	}
	if fetched.URL != media.URL {
		t.Errorf("Expected url %s, got %s", media.URL, fetched.URL)
	}

	if _, err := db.GetMediaInfo(domain.MediaID(9999)); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestUpdateMediaInfoRoundTrip(t *testing.T) {
	db := setupTestDB(t)

	media, err := db.GetOrAddMediaByURL("https://youtu.be/AAA")
	if err != nil {
		t.Fatalf("GetOrAddMediaByURL failed: %v", err)
	}

	media.Status = domain.MediaDownloading
	media.Filename = "AAA.mp4"
	media.Title = "Test Title"
	media.Length = 42
	media.Filesize = 12345678
	media.Metadata = `{"title": "Test Title", "duration": 42}`
	media.MetadataTime = time.Date(2024, 5, 17, 12, 30, 45, 123456789, time.UTC)
	if err := db.UpdateMediaInfo(&media); err != nil {
		t.Fatalf("UpdateMediaInfo failed: %v", err)
	}

	fetched, err := db.GetMediaInfo(media.ID)
	if err != nil {
		t.Fatalf("GetMediaInfo failed: %v", err)
	}
	if fetched.Status != domain.MediaDownloading {
		t.Errorf("Expected status downloading, got %s", fetched.Status)
	}
	if fetched.Filename != "AAA.mp4" || fetched.Title != "Test Title" {
		t.Errorf("Unexpected fields: %+v", fetched)
	}
	if fetched.Length != 42 || fetched.Filesize != 12345678 {
		t.Errorf("Unexpected numeric fields: %+v", fetched)
	}
	if fetched.Metadata != media.Metadata {
		t.Errorf("Metadata blob changed: %q", fetched.Metadata)
	}
	// Timestamps round-trip up to microsecond truncation
	want := domain.TruncateToMicros(media.MetadataTime)
	if !fetched.MetadataTime.Equal(want) {
		t.Errorf("Expected metadata time %v, got %v", want, fetched.MetadataTime)
	}
}

func TestAddToPlaylistIdempotent(t *testing.T) {
	db := setupTestDB(t)

	media, err := db.GetOrAddMediaByURL("https://youtu.be/AAA")
	if err != nil {
		t.Fatalf("GetOrAddMediaByURL failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := db.AddToPlaylist(media.ID); err != nil {
			t.Fatalf("AddToPlaylist failed: %v", err)
		}
	}

	playlist, err := db.GetPlaylist()
	if err != nil {
		t.Fatalf("GetPlaylist failed: %v", err)
	}
	if len(playlist) != 1 {
		t.Fatalf("Expected 1 playlist item, got %d", len(playlist))
	}
	if playlist[0].Media.ID != media.ID {
		t.Errorf("Expected media id %d, got %d", media.ID, playlist[0].Media.ID)
	}
	if playlist[0].QueueTime.IsZero() {
		t.Error("Expected queue time to be set")
	}
}

func TestGetPlaylistOrder(t *testing.T) {
	db := setupTestDB(t)

	first, err := db.GetOrAddMediaByURL("https://youtu.be/AAA")
	if err != nil {
		t.Fatalf("GetOrAddMediaByURL failed: %v", err)
	}
	if err := db.AddToPlaylist(first.ID); err != nil {
		t.Fatalf("AddToPlaylist failed: %v", err)
	}

	time.Sleep(2 * time.Millisecond)

	second, err := db.GetOrAddMediaByURL("https://youtu.be/BBB")
	if err != nil {
		t.Fatalf("GetOrAddMediaByURL failed: %v", err)
	}
	if err := db.AddToPlaylist(second.ID); err != nil {
		t.Fatalf("AddToPlaylist failed: %v", err)
	}

	playlist, err := db.GetPlaylist()
	if err != nil {
		t.Fatalf("GetPlaylist failed: %v", err)
	}
	if len(playlist) != 2 {
		t.Fatalf("Expected 2 playlist items, got %d", len(playlist))
	}
	if playlist[0].Media.ID != first.ID || playlist[1].Media.ID != second.ID {
		t.Error("Playlist should be ordered by queue time ascending")
	}
}

func TestGetAllMedia(t *testing.T) {
	db := setupTestDB(t)

	urls := []string{"https://youtu.be/AAA", "https://youtu.be/BBB", "https://youtu.be/CCC"}
	for _, u := range urls {
		if _, err := db.GetOrAddMediaByURL(u); err != nil {
			t.Fatalf("GetOrAddMediaByURL failed: %v", err)
		}
	}

	all, err := db.GetAllMedia()
	if err != nil {
		t.Fatalf("GetAllMedia failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 media, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].ID <= all[i-1].ID {
			t.Error("GetAllMedia should be ordered by id ascending")
		}
	}
}
