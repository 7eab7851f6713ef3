package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/story-runtime/pkg/actions"
	"github.com/jwebster45206/story-runtime/pkg/engine"
	"github.com/jwebster45206/story-runtime/pkg/saves"
	"github.com/jwebster45206/story-runtime/pkg/state"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// NodeView is the renderable part of a node
type NodeView struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

// ChoiceView is a choice of the current node. Unavailable choices are still
// listed so clients can show them disabled.
type ChoiceView struct {
	Index     int    `json:"index"`
	Label     string `json:"label"`
	Target    string `json:"target"`
	Available bool   `json:"available"`
}

// SessionView is the state of a session as returned by every play endpoint
type SessionView struct {
	SessionID    string             `json:"sessionId"`
	Title        string             `json:"title"`
	Restored     bool               `json:"restored,omitempty"`
	NodeID       string             `json:"nodeId"`
	Node         *NodeView          `json:"node,omitempty"`
	Choices      []ChoiceView       `json:"choices"`
	CanGoBack    bool               `json:"canGoBack"`
	CanGoForward bool               `json:"canGoForward"`
	History      []string           `json:"history"`
	Forward      []string           `json:"forward"`
	PlayerState  *state.PlayerState `json:"playerState"`
}

// CreateSessionRequest optionally names the session to resume
type CreateSessionRequest struct {
	SessionID string `json:"sessionId,omitempty"`
}

type ChooseRequest struct {
	Index int `json:"index"`
}

// ActionResponse reports whether a client-issued action changed state
type ActionResponse struct {
	Applied bool        `json:"applied"`
	Session SessionView `json:"session"`
}

type SaveRequest struct {
	Name string `json:"name"`
}

type SlotRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type CopySlotRequest struct {
	TargetID string `json:"targetId,omitempty"`
	Name     string `json:"name,omitempty"`
}

// SessionHandler serves play sessions
type SessionHandler struct {
	registry *Registry
	logger   *slog.Logger
}

func NewSessionHandler(registry *Registry, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{
		registry: registry,
		logger:   logger,
	}
}

// ServeHTTP routes session requests
// Routes:
// POST   /v1/sessions                          - Start or resume a session
// GET    /v1/sessions/{id}                     - Read session state
// DELETE /v1/sessions/{id}                     - Close a session (progress is kept)
// POST   /v1/sessions/{id}/choose              - Activate a choice of the current node
// POST   /v1/sessions/{id}/back                - Go back
// POST   /v1/sessions/{id}/forward             - Go forward
// POST   /v1/sessions/{id}/reset               - Restart the story
// POST   /v1/sessions/{id}/actions             - Execute an action (e.g. use_item)
// GET    /v1/sessions/{id}/saves               - List full saves
// POST   /v1/sessions/{id}/saves               - Save the game under a name
// DELETE /v1/sessions/{id}/saves/{name}        - Delete a save
// POST   /v1/sessions/{id}/saves/{name}/load   - Load a save
// GET    /v1/sessions/{id}/slots               - List save slots
// POST   /v1/sessions/{id}/slots               - Create a save slot
// GET    /v1/sessions/{id}/slots/{slot}        - Read slot info
// PUT    /v1/sessions/{id}/slots/{slot}        - Overwrite a slot with the session
// PATCH  /v1/sessions/{id}/slots/{slot}        - Rename a slot
// DELETE /v1/sessions/{id}/slots/{slot}        - Delete a slot
// POST   /v1/sessions/{id}/slots/{slot}/load   - Load a slot
// POST   /v1/sessions/{id}/slots/{slot}/copy   - Copy a slot
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sessions"), "/")
	if path == "" {
		if r.Method != http.MethodPost {
			h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: POST")
			return
		}
		h.handleCreate(w, r)
		return
	}

	parts := strings.Split(path, "/")
	sessionID, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid session ID", "id", parts[0], "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid session ID format")
		return
	}
	session, ok := h.registry.Get(sessionID)
	if !ok {
		h.writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	switch {
	case len(parts) == 1:
		h.routeSession(w, r, session)
	case parts[1] == "saves":
		h.routeSaves(w, r, session, parts[2:])
	case parts[1] == "slots":
		h.routeSlots(w, r, session, parts[2:])
	case len(parts) == 2:
		h.routePlay(w, r, session, parts[1])
	default:
		h.writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *SessionHandler) routeSession(w http.ResponseWriter, r *http.Request, s *Session) {
	switch r.Method {
	case http.MethodGet:
		h.writeView(w, http.StatusOK, s, false)
	case http.MethodDelete:
		h.registry.Close(s.ID())
		w.WriteHeader(http.StatusNoContent)
	default:
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, DELETE")
	}
}

func (h *SessionHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("Invalid JSON in request body", "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	id := uuid.Nil
	if req.SessionID != "" {
		var err error
		if id, err = uuid.Parse(req.SessionID); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid session ID format")
			return
		}
	}

	session, restored := h.registry.Open(id)
	h.writeView(w, http.StatusCreated, session, restored)
}

func (h *SessionHandler) routePlay(w http.ResponseWriter, r *http.Request, s *Session, op string) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: POST")
		return
	}

	switch op {
	case "choose":
		var req ChooseRequest
		if !h.decode(w, r, &req) {
			return
		}
		var ok bool
		if err := s.Do(func(e *engine.Engine) error { ok = e.Choose(req.Index); return nil }); err != nil {
			h.writeEngineError(w, err)
			return
		}
		if !ok {
			h.writeError(w, http.StatusConflict, "Choice is not available")
			return
		}
	case "back":
		var ok bool
		if err := s.Do(func(e *engine.Engine) error { ok = e.GoBack(); return nil }); err != nil {
			h.writeEngineError(w, err)
			return
		}
		if !ok {
			h.writeError(w, http.StatusConflict, "Cannot go back")
			return
		}
	case "forward":
		var ok bool
		if err := s.Do(func(e *engine.Engine) error { ok = e.GoForward(); return nil }); err != nil {
			h.writeEngineError(w, err)
			return
		}
		if !ok {
			h.writeError(w, http.StatusConflict, "Cannot go forward")
			return
		}
	case "reset":
		if err := s.Do(func(e *engine.Engine) error { e.Reset(); return nil }); err != nil {
			h.writeEngineError(w, err)
			return
		}
	case "actions":
		var a actions.Action
		if !h.decode(w, r, &a) {
			return
		}
		if !a.Type.Known() {
			h.writeError(w, http.StatusBadRequest, "Unknown action type: "+string(a.Type))
			return
		}
		var resp ActionResponse
		err := s.Do(func(e *engine.Engine) error {
			resp.Applied = e.Execute(a)
			resp.Session = buildView(e, false)
			return nil
		})
		if err != nil {
			h.writeEngineError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, resp)
		return
	default:
		h.writeError(w, http.StatusNotFound, "Not found")
		return
	}
	h.writeView(w, http.StatusOK, s, false)
}

func (h *SessionHandler) routeSaves(w http.ResponseWriter, r *http.Request, s *Session, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		var list []saves.SaveRecord
		err := s.Do(func(e *engine.Engine) (err error) {
			list, err = e.ListSaves()
			return err
		})
		if err != nil {
			h.writeEngineError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, list)

	case len(rest) == 0 && r.Method == http.MethodPost:
		var req SaveRequest
		if !h.decode(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			h.writeError(w, http.StatusBadRequest, "name field is required")
			return
		}
		var rec saves.SaveRecord
		err := s.Do(func(e *engine.Engine) (err error) {
			rec, err = e.SaveGame(req.Name)
			return err
		})
		if err != nil {
			h.writeEngineError(w, err)
			return
		}
		h.writeJSON(w, http.StatusCreated, rec)

	case len(rest) == 1 && r.Method == http.MethodDelete:
		err := s.Do(func(e *engine.Engine) error { return e.DeleteSave(rest[0]) })
		if err != nil {
			h.writeEngineError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case len(rest) == 2 && rest[1] == "load" && r.Method == http.MethodPost:
		err := s.Do(func(e *engine.Engine) error { return e.LoadSave(rest[0]) })
		if err != nil {
			h.writeEngineError(w, err)
			return
		}
		h.writeView(w, http.StatusOK, s, false)

	default:
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *SessionHandler) routeSlots(w http.ResponseWriter, r *http.Request, s *Session, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		var list []saves.SlotInfo
		err := s.Do(func(e *engine.Engine) (err error) {
			list, err = e.ListSlots()
			return err
		})
		if err != nil {
			h.writeEngineError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, list)

	case len(rest) == 0 && r.Method == http.MethodPost:
		var req SlotRequest
		if !h.decode(w, r, &req) {
			return
		}
		if req.ID == "" {
			req.ID = saves.NewSlotID()
		}
		var slot *saves.SaveSlot
		err := s.Do(func(e *engine.Engine) (err error) {
			slot, err = e.CreateSlot(req.ID, req.Name)
			return err
		})
		if err != nil {
			h.writeEngineError(w, err)
			return
		}
		h.writeJSON(w, http.StatusCreated, saves.SlotInfo{ID: slot.ID, Name: slot.Name, Meta: slot.Meta})

	case len(rest) == 1:
		h.routeSlot(w, r, s, rest[0])

	case len(rest) == 2 && rest[1] == "load" && r.Method == http.MethodPost:
		err := s.Do(func(e *engine.Engine) error { return e.LoadFromSlot(rest[0]) })
		if err != nil {
			h.writeEngineError(w, err)
			return
		}
		h.writeView(w, http.StatusOK, s, false)

	case len(rest) == 2 && rest[1] == "copy" && r.Method == http.MethodPost:
		var req CopySlotRequest
		if !h.decode(w, r, &req) {
			return
		}
		if req.TargetID == "" {
			req.TargetID = saves.NewSlotID()
		}
		var info *saves.SlotInfo
		err := s.Do(func(e *engine.Engine) (err error) {
			if err = e.CopySlot(rest[0], req.TargetID, req.Name); err != nil {
				return err
			}
			info, err = e.GetSlotInfo(req.TargetID)
			return err
		})
		if err != nil {
			h.writeEngineError(w, err)
			return
		}
		h.writeJSON(w, http.StatusCreated, info)

	default:
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *SessionHandler) routeSlot(w http.ResponseWriter, r *http.Request, s *Session, slotID string) {
	var info *saves.SlotInfo
	var err error

	switch r.Method {
	case http.MethodGet:
		err = s.Do(func(e *engine.Engine) (err error) {
			info, err = e.GetSlotInfo(slotID)
			return err
		})
	case http.MethodPut:
		err = s.Do(func(e *engine.Engine) error {
			slot, err := e.SaveToSlot(slotID)
			if err != nil {
				return err
			}
			info = &saves.SlotInfo{ID: slot.ID, Name: slot.Name, Meta: slot.Meta}
			return nil
		})
	case http.MethodPatch:
		var req SlotRequest
		if !h.decode(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			h.writeError(w, http.StatusBadRequest, "name field is required")
			return
		}
		err = s.Do(func(e *engine.Engine) (err error) {
			if err = e.RenameSlot(slotID, req.Name); err != nil {
				return err
			}
			info, err = e.GetSlotInfo(slotID)
			return err
		})
	case http.MethodDelete:
		err = s.Do(func(e *engine.Engine) error { return e.DeleteSlot(slotID) })
		if err != nil {
			h.writeEngineError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	default:
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, PUT, PATCH, DELETE")
		return
	}

	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

// buildView snapshots the engine. Callers hold the session lock.
func buildView(e *engine.Engine, restored bool) SessionView {
	v := SessionView{
		SessionID:    e.SessionID(),
		Title:        e.Graph().Title,
		Restored:     restored,
		NodeID:       e.NodeID(),
		Choices:      []ChoiceView{},
		CanGoBack:    e.CanGoBack(),
		CanGoForward: e.CanGoForward(),
		History:      e.History(),
		Forward:      e.Forward(),
		PlayerState:  e.PlayerState(),
	}
	if n := e.Node(); n != nil {
		v.Node = &NodeView{ID: n.ID, Title: n.Title, Text: n.Text, Image: n.Image}
		for i, c := range n.Choices {
			v.Choices = append(v.Choices, ChoiceView{
				Index:     i,
				Label:     c.Label,
				Target:    c.Target,
				Available: e.Graph().Has(c.Target) && e.CheckConditions(c.Conditions),
			})
		}
	}
	return v
}

func (h *SessionHandler) writeView(w http.ResponseWriter, status int, s *Session, restored bool) {
	var v SessionView
	if err := s.Do(func(e *engine.Engine) error { v = buildView(e, restored); return nil }); err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, status, v)
}

func (h *SessionHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.logger.Warn("Invalid JSON in request body", "error", err, "path", r.URL.Path)
		h.writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return false
	}
	return true
}

// writeEngineError maps session and save manager errors to status codes
func (h *SessionHandler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionClosed):
		h.writeError(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, saves.ErrSlotNotFound), errors.Is(err, saves.ErrNoRecord):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, saves.ErrSlotExists), errors.Is(err, saves.ErrTitleMismatch):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("Save operation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to access saved games")
	}
}

func (h *SessionHandler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, ErrorResponse{Error: msg})
}

func (h *SessionHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}
