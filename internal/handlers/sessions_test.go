package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/story-runtime/pkg/saves"
	"github.com/jwebster45206/story-runtime/pkg/storage"
)

func newTestSessionHandler(t *testing.T) (*SessionHandler, *Registry) {
	t.Helper()
	r := NewRegistry(testFactory(storage.NewMockStorage()), testLogger())
	t.Cleanup(r.CloseAll)
	return NewSessionHandler(r, testLogger()), r
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeView(t *testing.T, rr *httptest.ResponseRecorder) SessionView {
	t.Helper()
	var v SessionView
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v))
	return v
}

// openSession starts a fresh session and returns its path prefix
func openSession(t *testing.T, h http.Handler) (string, SessionView) {
	t.Helper()
	rr := serve(h, http.MethodPost, "/v1/sessions", "")
	require.Equal(t, http.StatusCreated, rr.Code)
	v := decodeView(t, rr)
	return "/v1/sessions/" + v.SessionID, v
}

func TestSessionHandler_Create(t *testing.T) {
	h, r := newTestSessionHandler(t)

	_, v := openSession(t, h)
	assert.Equal(t, "The Lighthouse", v.Title)
	assert.Equal(t, "start", v.NodeID)
	require.NotNil(t, v.Node)
	assert.Equal(t, "The keeper's door is ajar.", v.Node.Text)
	assert.False(t, v.Restored)
	assert.False(t, v.CanGoBack)
	assert.Empty(t, v.History)
	assert.Equal(t, 1, r.Len())

	require.Len(t, v.Choices, 3)
	assert.Equal(t, ChoiceView{Index: 0, Label: "climb", Target: "stairs", Available: false}, v.Choices[0])
	assert.True(t, v.Choices[1].Available)
	assert.False(t, v.Choices[2].Available, "missing target")
}

func TestSessionHandler_CreateErrors(t *testing.T) {
	h, _ := newTestSessionHandler(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"bad json", http.MethodPost, "/v1/sessions", "{", http.StatusBadRequest},
		{"bad session id in body", http.MethodPost, "/v1/sessions", `{"sessionId":"nope"}`, http.StatusBadRequest},
		{"list not supported", http.MethodGet, "/v1/sessions", "", http.StatusMethodNotAllowed},
		{"bad session id in path", http.MethodGet, "/v1/sessions/nope", "", http.StatusBadRequest},
		{"unknown session", http.MethodGet, "/v1/sessions/" + uuid.NewString(), "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestSessionHandler_ResumeByID(t *testing.T) {
	h, r := newTestSessionHandler(t)

	base, v := openSession(t, h)
	require.Equal(t, http.StatusOK, serve(h, http.MethodPost, base+"/choose", `{"index":1}`).Code)

	// Closing keeps progress; opening the same ID restores it
	assert.Equal(t, http.StatusNoContent, serve(h, http.MethodDelete, base, "").Code)
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, base, "").Code)
	assert.Equal(t, 0, r.Len())

	rr := serve(h, http.MethodPost, "/v1/sessions", `{"sessionId":"`+v.SessionID+`"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	resumed := decodeView(t, rr)
	assert.True(t, resumed.Restored)
	assert.Equal(t, v.SessionID, resumed.SessionID)
	assert.Equal(t, "shed", resumed.NodeID)
	assert.Equal(t, []string{"start"}, resumed.History)
}

func TestSessionHandler_Play(t *testing.T) {
	h, _ := newTestSessionHandler(t)
	base, _ := openSession(t, h)

	steps := []struct {
		name        string
		op          string
		body        string
		status      int
		wantNode    string
		wantBack    bool
		wantFwd     bool
		wantLantern bool
	}{
		{"gated choice", "/choose", `{"index":0}`, http.StatusConflict, "", false, false, false},
		{"missing target", "/choose", `{"index":2}`, http.StatusConflict, "", false, false, false},
		{"out of range", "/choose", `{"index":9}`, http.StatusConflict, "", false, false, false},
		{"nothing to go back to", "/back", "", http.StatusConflict, "", false, false, false},
		{"search the shed", "/choose", `{"index":1}`, http.StatusOK, "shed", true, false, true},
		{"back", "/back", "", http.StatusOK, "start", false, true, true},
		{"forward", "/forward", "", http.StatusOK, "shed", true, false, true},
		{"nothing ahead", "/forward", "", http.StatusConflict, "", false, false, false},
		{"return", "/choose", `{"index":0}`, http.StatusOK, "start", true, false, true},
		{"climb with the lantern", "/choose", `{"index":0}`, http.StatusOK, "stairs", true, false, true},
		{"reset", "/reset", "", http.StatusOK, "start", false, false, false},
		{"bad body", "/choose", "{", http.StatusBadRequest, "", false, false, false},
		{"unknown op", "/dance", "", http.StatusNotFound, "", false, false, false},
	}
	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			rr := serve(h, http.MethodPost, base+step.op, step.body)
			require.Equal(t, step.status, rr.Code, rr.Body.String())
			if step.status != http.StatusOK {
				return
			}
			v := decodeView(t, rr)
			assert.Equal(t, step.wantNode, v.NodeID)
			assert.Equal(t, step.wantBack, v.CanGoBack)
			assert.Equal(t, step.wantFwd, v.CanGoForward)
			require.NotNil(t, v.PlayerState)
			assert.Equal(t, step.wantLantern, v.PlayerState.Inventory.Has("lantern", 1))
		})
	}

	assert.Equal(t, http.StatusMethodNotAllowed, serve(h, http.MethodGet, base+"/back", "").Code)
}

func TestSessionHandler_NodeView(t *testing.T) {
	h, _ := newTestSessionHandler(t)
	base, _ := openSession(t, h)

	serve(h, http.MethodPost, base+"/choose", `{"index":1}`)
	serve(h, http.MethodPost, base+"/choose", `{"index":0}`)
	v := decodeView(t, serve(h, http.MethodPost, base+"/choose", `{"index":0}`))

	require.NotNil(t, v.Node)
	assert.Equal(t, NodeView{ID: "stairs", Title: "Stairs", Text: "The steps spiral up.", Image: "stairs.png"}, *v.Node)
	assert.Equal(t, []string{"start", "shed", "start"}, v.History)
	assert.Equal(t, []ChoiceView{{Index: 0, Label: "up", Target: "lamp", Available: true}}, v.Choices)
}

func TestSessionHandler_Actions(t *testing.T) {
	h, _ := newTestSessionHandler(t)
	base, _ := openSession(t, h)

	rr := serve(h, http.MethodPost, base+"/actions", `{"type":"add_item","itemId":"potion","quantity":2}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp ActionResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.True(t, resp.Applied)
	assert.Equal(t, 2, resp.Session.PlayerState.Inventory.Count("potion"))

	rr = serve(h, http.MethodPost, base+"/actions", `{"type":"remove_item","itemId":"lantern"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.False(t, resp.Applied)

	rr = serve(h, http.MethodPost, base+"/actions", `{"type":"summon"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSessionHandler_Saves(t *testing.T) {
	h, _ := newTestSessionHandler(t)
	base, _ := openSession(t, h)
	serve(h, http.MethodPost, base+"/choose", `{"index":1}`)

	rr := serve(h, http.MethodPost, base+"/saves", `{"name":"before climb"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	var rec saves.SaveRecord
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&rec))
	assert.Equal(t, "before climb", rec.SlotName)
	assert.Equal(t, "shed", rec.NodeID)

	assert.Equal(t, http.StatusBadRequest, serve(h, http.MethodPost, base+"/saves", `{"name":"  "}`).Code)

	rr = serve(h, http.MethodGet, base+"/saves", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []saves.SaveRecord
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&list))
	require.Len(t, list, 1)

	serve(h, http.MethodPost, base+"/reset", "")
	rr = serve(h, http.MethodPost, base+"/saves/before%20climb/load", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "shed", decodeView(t, rr).NodeID)

	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodPost, base+"/saves/missing/load", "").Code)
	assert.Equal(t, http.StatusNoContent, serve(h, http.MethodDelete, base+"/saves/before%20climb", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodDelete, base+"/saves/before%20climb", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(h, http.MethodPut, base+"/saves", "").Code)
}

func TestSessionHandler_Slots(t *testing.T) {
	h, _ := newTestSessionHandler(t)
	base, _ := openSession(t, h)
	serve(h, http.MethodPost, base+"/choose", `{"index":1}`)

	rr := serve(h, http.MethodPost, base+"/slots", `{"id":"one","name":"First"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	var info saves.SlotInfo
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&info))
	assert.Equal(t, "one", info.ID)
	assert.Equal(t, "First", info.Name)
	assert.Equal(t, "Shed", info.Meta.CurrentLocation)

	assert.Equal(t, http.StatusConflict, serve(h, http.MethodPost, base+"/slots", `{"id":"one"}`).Code)

	rr = serve(h, http.MethodPost, base+"/slots", `{"name":"Generated"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&info))
	assert.True(t, strings.HasPrefix(info.ID, "slot_"))

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		status   int
		wantName string
	}{
		{"info", http.MethodGet, "/slots/one", "", http.StatusOK, "First"},
		{"rename", http.MethodPatch, "/slots/one", `{"name":"Renamed"}`, http.StatusOK, "Renamed"},
		{"rename needs a name", http.MethodPatch, "/slots/one", `{}`, http.StatusBadRequest, ""},
		{"overwrite", http.MethodPut, "/slots/one", "", http.StatusOK, "Renamed"},
		{"save creates missing", http.MethodPut, "/slots/two", "", http.StatusOK, "two"},
		{"copy", http.MethodPost, "/slots/one/copy", `{"targetId":"three","name":"Copy"}`, http.StatusCreated, "Copy"},
		{"copy onto existing", http.MethodPost, "/slots/one/copy", `{"targetId":"two"}`, http.StatusConflict, ""},
		{"copy missing", http.MethodPost, "/slots/zzz/copy", `{}`, http.StatusNotFound, ""},
		{"info missing", http.MethodGet, "/slots/zzz", "", http.StatusNotFound, ""},
		{"rename missing", http.MethodPatch, "/slots/zzz", `{"name":"x"}`, http.StatusNotFound, ""},
		{"bad method", http.MethodPost, "/slots/one", "", http.StatusMethodNotAllowed, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(h, tt.method, base+tt.path, tt.body)
			require.Equal(t, tt.status, rr.Code, rr.Body.String())
			if tt.wantName == "" {
				return
			}
			var got saves.SlotInfo
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
			assert.Equal(t, tt.wantName, got.Name)
		})
	}

	rr = serve(h, http.MethodGet, base+"/slots", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []saves.SlotInfo
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&list))
	assert.Len(t, list, 4)

	serve(h, http.MethodPost, base+"/reset", "")
	rr = serve(h, http.MethodPost, base+"/slots/three/load", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "shed", decodeView(t, rr).NodeID)
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodPost, base+"/slots/zzz/load", "").Code)

	assert.Equal(t, http.StatusNoContent, serve(h, http.MethodDelete, base+"/slots/three", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodDelete, base+"/slots/three", "").Code)
}
