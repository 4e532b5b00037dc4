package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ethpandaops/timingtree/pkg/config"
	"github.com/ethpandaops/timingtree/pkg/timingdb"
)

// handleIndexSamples lists the samples recorded in the index store.
func (s *server) handleIndexSamples(w http.ResponseWriter, r *http.Request) {
	samples, err := s.indexStore.ListSamples(r.Context(), s.indexName)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"listing samples: " + err.Error()})

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"store":   s.indexName,
		"samples": samples,
	})
}

// handleIndexSeries answers a series query from the index store instead of
// the loaded frames.
func (s *server) handleIndexSeries(w http.ResponseWriter, r *http.Request) {
	table, err := strconv.Atoi(chi.URLParam(r, "table"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{"invalid table index"})

		return
	}

	column := r.URL.Query().Get("column")
	if column == "" {
		column = config.DefaultSeriesColumn
	}

	name := chi.URLParam(r, "name")

	values, err := s.indexStore.ListTimerSeries(r.Context(), s.indexName, table, name, column)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"listing series: " + err.Error()})

		return
	}

	points := make([]timingdb.SeriesPoint, 0, len(values))
	for _, v := range values {
		points = append(points, timingdb.SeriesPoint{
			Timestamp: v.FinishTime,
			Revision:  v.Revision,
			Value:     v.Value,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"table":   table,
		"name":    name,
		"column":  column,
		"points":  points,
		"summary": timingdb.Summarize(points),
	})
}
