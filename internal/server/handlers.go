package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dokzlo13/huedash/internal/color"
	"github.com/dokzlo13/huedash/internal/entity"
	"github.com/dokzlo13/huedash/internal/hue"
	"github.com/dokzlo13/huedash/internal/ledger"
)

const (
	defaultCommandLimit = 50
	maxCommandLimit     = 500
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if err := s.deps.Ready(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready", "reason": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleHueView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Lights.View())
}

type focusRequest struct {
	Entity string `json:"entity"`
}

func (s *Server) handleHueFocus(w http.ResponseWriter, r *http.Request) {
	var req focusRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	key, err := entity.ParseKey(req.Entity)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	if err := s.deps.Lights.SetFocus(key); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Lights.View())
}

// colorRequest edits an entity. Omitted fields keep their displayed value;
// an omitted entity means the focused one.
type colorRequest struct {
	Entity string       `json:"entity,omitempty"`
	Color  *color.Color `json:"color,omitempty"`
	On     *bool        `json:"on,omitempty"`
}

func (s *Server) handleHueColor(w http.ResponseWriter, r *http.Request) {
	var req colorRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	view := s.deps.Lights.View()
	current, key, err := targetEntity(view, req.Entity)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	col, on := current.Color, current.On
	if req.Color != nil {
		col = *req.Color
	}
	if req.On != nil {
		on = *req.On
	}

	if req.Entity == "" {
		err = s.deps.Lights.UpdateFocused(col, on)
	} else {
		err = s.deps.Lights.SetEntity(key, col, on)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.deps.Lights.View())
}

// targetEntity resolves the displayed entity an edit applies to.
func targetEntity(view hue.View, raw string) (entity.Entity, entity.Key, error) {
	if raw == "" {
		if !view.HasFocus {
			return entity.Entity{}, entity.Key{}, hue.ErrNoFocus
		}
		if !view.Available {
			return entity.Entity{}, entity.Key{}, hue.ErrUnknownEntity
		}
		return view.Current, view.Focus, nil
	}

	key, err := entity.ParseKey(raw)
	if err != nil {
		return entity.Entity{}, entity.Key{}, hue.ErrUnknownEntity
	}
	for _, e := range view.Entities {
		if e.Key == key {
			return e, key, nil
		}
	}
	return entity.Entity{}, key, hue.ErrUnknownEntity
}

func (s *Server) handleHueRefresh(w http.ResponseWriter, _ *http.Request) {
	s.deps.Lights.RefreshNow()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

func (s *Server) handleListPresets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Presets.List())
}

type savePresetRequest struct {
	Color *color.Color `json:"color,omitempty"`
}

// handleSavePreset stores the given color, or the focused entity's color
// when the body has none.
func (s *Server) handleSavePreset(w http.ResponseWriter, r *http.Request) {
	var req savePresetRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	var err error
	if req.Color != nil {
		_, err = s.deps.Presets.Save(id, *req.Color)
	} else {
		_, err = s.deps.Presets.SaveCurrent(id)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Presets.List())
}

func (s *Server) handleApplyPreset(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Presets.Apply(chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.deps.Lights.View())
}

func (s *Server) handlePlaybackView(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Player == nil {
		writeError(w, http.StatusNotFound, CodeDisabled, "spotify is not enabled")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Player.View())
}

func (s *Server) handlePlaybackCommand(w http.ResponseWriter, r *http.Request) {
	p := s.deps.Player
	if p == nil {
		writeError(w, http.StatusNotFound, CodeDisabled, "spotify is not enabled")
		return
	}

	var err error
	switch command := chi.URLParam(r, "command"); command {
	case "play-pause":
		err = p.TogglePlaying(r.Context())
	case "shuffle":
		err = p.ToggleShuffle(r.Context())
	case "repeat":
		err = p.StepRepeat(r.Context())
	case "next":
		err = p.SkipNext(r.Context())
	case "previous":
		err = p.SkipPrevious(r.Context())
	case "refresh":
		p.RefreshNow()
	default:
		writeError(w, http.StatusNotFound, CodeNotFound, "unknown command: "+command)
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p.View())
}

func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	limit := defaultCommandLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxCommandLimit)
	}

	var (
		entries []*ledger.Entry
		err     error
	)
	if eventType := r.URL.Query().Get("type"); eventType != "" {
		entries, err = s.deps.Commands.GetByType(ledger.EventType(eventType), limit)
	} else {
		entries, err = s.deps.Commands.Recent(limit)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
