package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/story-runtime/pkg/inventory"
	"github.com/jwebster45206/story-runtime/pkg/story"
)

// StoryResponse summarizes the loaded story
type StoryResponse struct {
	Title     string   `json:"title"`
	Start     string   `json:"start"`
	NodeCount int      `json:"nodeCount"`
	NodeIDs   []string `json:"nodeIds"`
	Issues    []string `json:"issues"`
}

// StoryHandler serves the read-only story graph
type StoryHandler struct {
	graph  *story.Graph
	issues []string
	logger *slog.Logger
}

// NewStoryHandler validates graph once against catalog and serves the result
func NewStoryHandler(graph *story.Graph, catalog *inventory.Catalog, logger *slog.Logger) *StoryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	issues := []string{}
	for _, issue := range story.Validate(graph, catalog).Issues {
		issues = append(issues, issue.String())
	}
	return &StoryHandler{
		graph:  graph,
		issues: issues,
		logger: logger,
	}
}

// ServeHTTP routes story requests
// GET /v1/story             - Story summary and validation issues
// GET /v1/story/nodes/{id}  - A single node
func (h *StoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		h.writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "Method not allowed. Only GET is supported."})
		return
	}

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/story"), "/")
	if path == "" {
		h.writeJSON(w, http.StatusOK, StoryResponse{
			Title:     h.graph.Title,
			Start:     h.graph.StartNode(),
			NodeCount: h.graph.Len(),
			NodeIDs:   h.graph.NodeIDs(),
			Issues:    h.issues,
		})
		return
	}

	nodeID, ok := strings.CutPrefix(path, "nodes/")
	if !ok || nodeID == "" || strings.Contains(nodeID, "/") {
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Not found"})
		return
	}
	node, ok := h.graph.Node(nodeID)
	if !ok {
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Node not found"})
		return
	}
	h.writeJSON(w, http.StatusOK, node)
}

func (h *StoryHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err, "status", status)
	}
}
