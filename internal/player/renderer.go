// Package player owns the output side: a renderer that puts frames on the
// screen and the loop that feeds it from the playlist.
package player

import (
	_ "embed"
)

// Renderer is the playback backend. Starting a new file or the standby
// image implicitly tears down whatever was playing before.
type Renderer interface {
	// Play starts playback of the file at path.
	Play(path string) error
	// PlayStandby loops the placeholder image until something else starts.
	PlayStandby() error
	// Stop tears down the current playback session, if any.
	Stop()
	// OnEndReached registers the callback fired when a file finishes on its
	// own. Must be set before the first Play call.
	OnEndReached(fn func())
}

// standbyPNG is shown whenever the playlist has nothing ready to play.
//
//go:embed standby.png
var standbyPNG []byte
