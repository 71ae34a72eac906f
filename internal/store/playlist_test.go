package store

import (
	"testing"
	"time"

	"github.com/vheinola/utuputki/internal/domain"
)

func TestPopNextPlaylistItem(t *testing.T) {
	db := setupTestDB(t)

	// Nothing queued
	if item := db.PopNextPlaylistItem(); item != nil {
		t.Errorf("Expected nil from empty playlist, got %+v", item)
	}

	// Queued but not Ready yet
	pending, err := db.GetOrAddMediaByURL("https://youtu.be/AAA")
	if err != nil {
		t.Fatalf("GetOrAddMediaByURL failed: %v", err)
	}
	if err := db.AddToPlaylist(pending.ID); err != nil {
		t.Fatalf("AddToPlaylist failed: %v", err)
	}
	if item := db.PopNextPlaylistItem(); item != nil {
		t.Errorf("Expected nil while media is not ready, got %+v", item)
	}

	pending.Status = domain.MediaReady
	pending.Filename = "AAA.mp4"
	pending.Title = "T"
	pending.Length = 42
	if err := db.UpdateMediaInfo(&pending); err != nil {
		t.Fatalf("UpdateMediaInfo failed: %v", err)
	}

	item := db.PopNextPlaylistItem()
	if item == nil {
		t.Fatal("Expected an item once media is ready")
	}
	if item.Media.ID != pending.ID {
		t.Errorf("Expected media id %d, got %d", pending.ID, item.Media.ID)
	}
	if item.Media.Title != "T" || item.Media.Length != 42 {
		t.Errorf("Unexpected media snapshot: %+v", item.Media)
	}
	if item.StartTime.IsZero() {
		t.Error("Expected start time to be set")
	}
	if item.StartTime.Before(item.QueueTime) {
		t.Error("Start time must not precede queue time")
	}
	if item.Finish.Finished() {
		t.Error("Fresh history item must be unfinished")
	}

	// The playlist row is gone, so a second pop returns nothing
	if again := db.PopNextPlaylistItem(); again != nil {
		t.Errorf("Expected nil after item was claimed, got %+v", again)
	}

	// The history row exists
	history, err := db.GetHistory()
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected 1 history row, got %d", len(history))
	}
	if history[0].ID != item.ID {
		t.Errorf("Expected history id %d, got %d", item.ID, history[0].ID)
	}
}

func TestPopNextPlaylistItemOrder(t *testing.T) {
	db := setupTestDB(t)

	first := addReadyMedia(t, db, "https://youtu.be/AAA", "AAA.mp4")
	if err := db.AddToPlaylist(first.ID); err != nil {
		t.Fatalf("AddToPlaylist failed: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	second := addReadyMedia(t, db, "https://youtu.be/BBB", "BBB.mp4")
	if err := db.AddToPlaylist(second.ID); err != nil {
		t.Fatalf("AddToPlaylist failed: %v", err)
	}

	a := db.PopNextPlaylistItem()
	b := db.PopNextPlaylistItem()
	if a == nil || b == nil {
		t.Fatal("Expected two items")
	}
	if a.Media.ID != first.ID || b.Media.ID != second.ID {
		t.Error("Dequeue order must follow queue time")
	}
	if b.QueueTime.Before(a.QueueTime) {
		t.Error("Queue times of consecutive pops must be non-decreasing")
	}
}

func TestPopSkipsUnreadyHead(t *testing.T) {
	db := setupTestDB(t)

	// Head of the queue is still downloading, the later item is ready.
	stuck, err := db.GetOrAddMediaByURL("https://youtu.be/AAA")
	if err != nil {
		t.Fatalf("GetOrAddMediaByURL failed: %v", err)
	}
	stuck.Status = domain.MediaDownloading
	if err := db.UpdateMediaInfo(&stuck); err != nil {
		t.Fatalf("UpdateMediaInfo failed: %v", err)
	}
	if err := db.AddToPlaylist(stuck.ID); err != nil {
		t.Fatalf("AddToPlaylist failed: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	ready := addReadyMedia(t, db, "https://youtu.be/BBB", "BBB.mp4")
	if err := db.AddToPlaylist(ready.ID); err != nil {
		t.Fatalf("AddToPlaylist failed: %v", err)
	}

	item := db.PopNextPlaylistItem()
	if item == nil {
		t.Fatal("Expected the ready item")
	}
	if item.Media.ID != ready.ID {
		t.Errorf("Expected media id %d, got %d", ready.ID, item.Media.ID)
	}

	// The unready head stays queued
	playlist, err := db.GetPlaylist()
	if err != nil {
		t.Fatalf("GetPlaylist failed: %v", err)
	}
	if len(playlist) != 1 || playlist[0].Media.ID != stuck.ID {
		t.Error("Downloading item should remain on the playlist")
	}
}

func TestFailedMediaLeavesPlaylist(t *testing.T) {
	db := setupTestDB(t)

	media, err := db.GetOrAddMediaByURL("https://youtu.be/AAA")
	if err != nil {
		t.Fatalf("GetOrAddMediaByURL failed: %v", err)
	}
	if err := db.AddToPlaylist(media.ID); err != nil {
		t.Fatalf("AddToPlaylist failed: %v", err)
	}

	media.Status = domain.MediaFailed
	media.ErrorMessage = "Too long (100 > 30)"
	if err := db.UpdateMediaInfo(&media); err != nil {
		t.Fatalf("UpdateMediaInfo failed: %v", err)
	}

	playlist, err := db.GetPlaylist()
	if err != nil {
		t.Fatalf("GetPlaylist failed: %v", err)
	}
	if len(playlist) != 0 {
		t.Errorf("Expected empty playlist after failure, got %d items", len(playlist))
	}

	fetched, err := db.GetMediaInfo(media.ID)
	if err != nil {
		t.Fatalf("GetMediaInfo failed: %v", err)
	}
	if fetched.Status != domain.MediaFailed || fetched.ErrorMessage != "Too long (100 > 30)" {
		t.Errorf("Unexpected failed media: %+v", fetched)
	}
}

func TestURLChangeMerge(t *testing.T) {
	db := setupTestDB(t)

	// Two rows for what the fetcher will reveal to be the same media;
	// the short-URL row was queued first.
	keep, err := db.GetOrAddMediaByURL("https://youtu.be/X")
	if err != nil {
		t.Fatalf("GetOrAddMediaByURL failed: %v", err)
	}
	if err := db.AddToPlaylist(keep.ID); err != nil {
		t.Fatalf("AddToPlaylist failed: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	dupe, err := db.GetOrAddMediaByURL("https://www.youtube.com/watch?v=X")
	if err != nil {
		t.Fatalf("GetOrAddMediaByURL failed: %v", err)
	}
	if err := db.AddToPlaylist(dupe.ID); err != nil {
		t.Fatalf("AddToPlaylist failed: %v", err)
	}

	// The fetcher canonicalises the long URL to the short one.
	dupe.URL = keep.URL
	dupe.Status = domain.MediaDownloading
	dupe.Title = "canonical"
	if err := db.UpdateMediaInfo(&dupe); err != nil {
		t.Fatalf("UpdateMediaInfo failed: %v", err)
	}

	// The caller's id is rewritten to the survivor
	if dupe.ID != keep.ID {
		t.Errorf("Expected id rewritten to %d, got %d", keep.ID, dupe.ID)
	}

	// The duplicate media row is gone
	all, err := db.GetAllMedia()
	if err != nil {
		t.Fatalf("GetAllMedia failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("Expected 1 media row after merge, got %d", len(all))
	}
	if all[0].ID != keep.ID || all[0].Title != "canonical" {
		t.Errorf("Unexpected surviving media: %+v", all[0])
	}

	// Only the earlier-queued playlist row remains, pointing at the survivor
	playlist, err := db.GetPlaylist()
	if err != nil {
		t.Fatalf("GetPlaylist failed: %v", err)
	}
	if len(playlist) != 1 {
		t.Fatalf("Expected 1 playlist row after merge, got %d", len(playlist))
	}
	if playlist[0].Media.ID != keep.ID {
		t.Errorf("Playlist should point at media %d, got %d", keep.ID, playlist[0].Media.ID)
	}
}

func TestURLChangeWithoutCollision(t *testing.T) {
	db := setupTestDB(t)

	media, err := db.GetOrAddMediaByURL("https://youtu.be/X")
	if err != nil {
		t.Fatalf("GetOrAddMediaByURL failed: %v", err)
	}
	media.URL = "https://www.youtube.com/watch?v=X"
	media.Status = domain.MediaDownloading
	if err := db.UpdateMediaInfo(&media); err != nil {
		t.Fatalf("UpdateMediaInfo failed: %v", err)
	}

	fetched, err := db.GetMediaInfo(media.ID)
	if err != nil {
		t.Fatalf("GetMediaInfo failed: %v", err)
	}
	if fetched.URL != "https://www.youtube.com/watch?v=X" {
		t.Errorf("Expected updated url, got %s", fetched.URL)
	}
}
