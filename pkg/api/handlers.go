package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ethpandaops/timingtree/pkg/config"
	"github.com/ethpandaops/timingtree/pkg/frame"
	"github.com/ethpandaops/timingtree/pkg/timing"
	"github.com/ethpandaops/timingtree/pkg/timingdb"
)

// errorResponse is a standard error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// handleHealth returns server health status.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	db, loadedAt := s.database()

	resp := map[string]any{
		"status": "ok",
		"loaded": db != nil,
	}

	if db != nil {
		resp["samples"] = db.NSamples()
		resp["loaded_at"] = loadedAt
	}

	writeJSON(w, http.StatusOK, resp)
}

// requireDatabase writes 503 and returns nil when nothing is loaded yet.
func (s *server) requireDatabase(w http.ResponseWriter) *timingdb.Database {
	db, _ := s.database()
	if db == nil {
		writeJSON(w, http.StatusServiceUnavailable,
			errorResponse{"timing database not loaded"})
	}

	return db
}

// handleMeta returns the metadata fields of the database.
func (s *server) handleMeta(w http.ResponseWriter, _ *http.Request) {
	db := s.requireDatabase(w)
	if db == nil {
		return
	}

	writeJSON(w, http.StatusOK, db.Meta)
}

// handleSamples returns one row per merged sample.
func (s *server) handleSamples(w http.ResponseWriter, _ *http.Request) {
	db := s.requireDatabase(w)
	if db == nil {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"samples": db.Samples(),
	})
}

// tableFromRequest resolves the {table} URL parameter.
func (s *server) tableFromRequest(
	w http.ResponseWriter, r *http.Request, db *timingdb.Database,
) (*timing.Node, *frame.Frame, int, bool) {
	idx, err := strconv.Atoi(chi.URLParam(r, "table"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{"invalid table index"})

		return nil, nil, 0, false
	}

	root, data, err := db.Table(idx)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{err.Error()})

		return nil, nil, 0, false
	}

	return root, data, idx, true
}

// handleTree returns the region tree of one table.
func (s *server) handleTree(w http.ResponseWriter, r *http.Request) {
	db := s.requireDatabase(w)
	if db == nil {
		return
	}

	root, _, _, ok := s.tableFromRequest(w, r, db)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, root)
}

type nodeValues struct {
	Timestamp string              `json:"timestamp"`
	Values    map[string]*float64 `json:"values"`
}

type nodeResponse struct {
	Name     string       `json:"name"`
	Path     string       `json:"path"`
	Depth    int          `json:"depth"`
	Ancestry []string     `json:"ancestry"`
	Children []string     `json:"children"`
	Samples  []nodeValues `json:"samples"`
}

// handleNode returns one region with its values in every sample. The name
// may be a bare region name or a full path.
func (s *server) handleNode(w http.ResponseWriter, r *http.Request) {
	db := s.requireDatabase(w)
	if db == nil {
		return
	}

	root, data, _, ok := s.tableFromRequest(w, r, db)
	if !ok {
		return
	}

	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{"invalid region name"})

		return
	}

	var node *timing.Node
	if strings.Contains(name, timing.PathSeparator) {
		node = root.FindByPath(name)
	} else {
		node = root.FindByName(name)
	}

	if node == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{"region not found"})

		return
	}

	resp := nodeResponse{
		Name:     node.Name,
		Path:     node.Path(),
		Depth:    node.Depth(),
		Ancestry: node.Ancestry,
		Children: make([]string, 0, len(node.Children)),
		Samples:  []nodeValues{},
	}

	for _, c := range node.Children {
		resp.Children = append(resp.Children, c.Name)
	}

	for _, ts := range data.Timestamps() {
		i := data.Lookup(frame.Key{Name: node.Name, Timestamp: ts})
		if i < 0 {
			continue
		}

		vals := make(map[string]*float64, len(data.Columns()))

		for c, col := range data.Columns() {
			v := data.Row(i)[c]
			if math.IsNaN(v) {
				vals[col] = nil

				continue
			}

			vals[col] = &v
		}

		resp.Samples = append(resp.Samples, nodeValues{Timestamp: ts, Values: vals})
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleSeries returns the history of one timer column with summary
// statistics.
func (s *server) handleSeries(w http.ResponseWriter, r *http.Request) {
	db := s.requireDatabase(w)
	if db == nil {
		return
	}

	_, _, idx, ok := s.tableFromRequest(w, r, db)
	if !ok {
		return
	}

	column := r.URL.Query().Get("column")
	if column == "" {
		column = config.DefaultSeriesColumn
	}

	name := chi.URLParam(r, "name")

	points, err := db.ExtractSeries(idx, name, column)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, timingdb.ErrUnknownColumn) {
			status = http.StatusBadRequest
		}

		writeJSON(w, status, errorResponse{err.Error()})

		return
	}

	if points == nil {
		points = []timingdb.SeriesPoint{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"table":   idx,
		"name":    name,
		"column":  column,
		"points":  points,
		"summary": timingdb.Summarize(points),
	})
}
