package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huedash/internal/hue"
	"github.com/dokzlo13/huedash/internal/presets"
	"github.com/dokzlo13/huedash/internal/remote"
	"github.com/dokzlo13/huedash/internal/spotify"
)

// Error is the body of every error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	CodeBadRequest  = "bad_request"
	CodeNotFound    = "not_found"
	CodeConflict    = "conflict"
	CodeRejected    = "remote_rejected"
	CodeUnavailable = "remote_unavailable"
	CodeInternal    = "internal_error"
	CodeDisabled    = "disabled"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			log.Debug().Err(err).Msg("Failed to write response")
		}
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

// writeServiceError maps domain and remote errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, hue.ErrUnknownEntity), errors.Is(err, presets.ErrUnknownPreset):
		writeError(w, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, hue.ErrNoFocus),
		errors.Is(err, presets.ErrEmptyPreset),
		errors.Is(err, presets.ErrNoCurrent),
		errors.Is(err, spotify.ErrNoPlayback):
		writeError(w, http.StatusConflict, CodeConflict, err.Error())
	case remote.IsTransient(err):
		writeError(w, http.StatusServiceUnavailable, CodeUnavailable, err.Error())
	default:
		if rej, ok := remote.IsRejection(err); ok {
			writeError(w, http.StatusBadGateway, CodeRejected, rej.Message)
			return
		}
		log.Error().Err(err).Msg("Unhandled service error")
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
	}
}

// decodeBody decodes a JSON request body. An empty body leaves out untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
