package httpapp

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vheinola/utuputki/internal/domain"
	"github.com/vheinola/utuputki/internal/jukebox"
	"github.com/vheinola/utuputki/internal/logger"
)

type handler struct {
	jukebox *jukebox.Jukebox
	debug   bool
	log     *logger.Logger
}

type addMediaRequest struct {
	URL string `json:"url"`
}

type skipRequest struct {
	MediaID domain.MediaID `json:"mediaId"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handler) addMedia(w http.ResponseWriter, r *http.Request) {
	var req addMediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		h.writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	media, err := h.jukebox.AddMedia(req.URL)
	if err != nil {
		if errors.Is(err, jukebox.ErrBadHost) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.serverError(w, "Failed to add media", err)
		return
	}

	h.writeJSON(w, http.StatusOK, media)
}

func (h *handler) listMedia(w http.ResponseWriter, r *http.Request) {
	media, err := h.jukebox.GetAllMedia()
	if err != nil {
		h.serverError(w, "Failed to list media", err)
		return
	}
	h.writeJSON(w, http.StatusOK, media)
}

func (h *handler) playlist(w http.ResponseWriter, r *http.Request) {
	playlist, err := h.jukebox.GetPlaylist()
	if err != nil {
		h.serverError(w, "Failed to fetch playlist", err)
		return
	}
	h.writeJSON(w, http.StatusOK, playlist)
}

func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	history, err := h.jukebox.GetHistory()
	if err != nil {
		h.serverError(w, "Failed to fetch history", err)
		return
	}
	h.writeJSON(w, http.StatusOK, history)
}

func (h *handler) nowPlaying(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.jukebox.GetNowPlaying())
}

func (h *handler) skip(w http.ResponseWriter, r *http.Request) {
	var req skipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.jukebox.SkipVideo(req.MediaID, clientFromContext(r.Context()))
	h.writeJSON(w, http.StatusOK, h.jukebox.GetNowPlaying())
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "error", err)
	}
}

func (h *handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}

// serverError hides internals from clients unless debug mode is on.
func (h *handler) serverError(w http.ResponseWriter, msg string, err error) {
	h.log.Error(msg, "error", err)
	if h.debug {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeError(w, http.StatusInternalServerError, "internal error")
}
