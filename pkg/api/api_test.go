package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/timingtree/pkg/config"
	"github.com/ethpandaops/timingtree/pkg/indexstore"
	"github.com/ethpandaops/timingtree/pkg/logtable"
	"github.com/ethpandaops/timingtree/pkg/logtable/logtabletest"
	"github.com/ethpandaops/timingtree/pkg/storage"
	"github.com/ethpandaops/timingtree/pkg/timingdb"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

func sampleDB(finish, revision string, factor float64) *timingdb.Database {
	regions := logtabletest.MainTable()
	for i := range regions {
		regions[i].Total *= factor
	}

	return timingdb.New(
		[]*logtable.Table{logtabletest.Table(regions)},
		&logtable.RunMeta{
			StartTime:  "2023-01-10 12:00:05",
			FinishTime: finish,
			Revision:   revision,
			Branch:     "main",
			NTables:    1,
			Entries:    []int{len(regions)},
		},
	)
}

// writeDatabase persists a two-sample database and returns its base path.
func writeDatabase(t *testing.T) string {
	t.Helper()

	db := sampleDB("2023-01-10 12:03:29", "rev1", 1)
	require.NoError(t, db.Add(sampleDB("2023-01-11 12:03:29", "rev2", 2), timingdb.MergeGrow))

	base := filepath.Join(t.TempDir(), "icon")
	require.NoError(t, db.Save(base, nil))

	return base
}

func newTestServer(t *testing.T, base string, cfg *config.APIConfig, opts ...Option) (*server, *httptest.Server) {
	t.Helper()

	if cfg == nil {
		cfg = &config.APIConfig{}
	}

	s, ok := NewServer(testLogger(), cfg, storage.NewLocalReader(""), base, opts...).(*server)
	require.True(t, ok)

	srv := httptest.NewServer(s.buildRouter())
	t.Cleanup(func() {
		srv.Close()

		for _, l := range s.limiters {
			l.stop()
		}
	})

	return s, srv
}

func getJSON(t *testing.T, srv *httptest.Server, path string, v any) int {
	t.Helper()

	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}

	return resp.StatusCode
}

func TestHealth_NotLoaded(t *testing.T) {
	_, srv := newTestServer(t, filepath.Join(t.TempDir(), "missing"), nil)

	var body map[string]any
	assert.Equal(t, http.StatusOK, getJSON(t, srv, "/api/v1/health", &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["loaded"])

	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, srv, "/api/v1/meta", nil))
}

func TestReload_Missing(t *testing.T) {
	s, _ := newTestServer(t, filepath.Join(t.TempDir(), "missing"), nil)

	err := s.reload(context.Background())
	assert.ErrorIs(t, err, timingdb.ErrNotFound)
}

func TestServer_StopTwice(t *testing.T) {
	cfg := &config.APIConfig{
		Listen:         "127.0.0.1:0",
		ReloadInterval: time.Hour,
		RateLimit: config.RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 60,
		},
	}

	srv := NewServer(testLogger(), cfg, storage.NewLocalReader(""),
		filepath.Join(t.TempDir(), "missing"))

	require.NoError(t, srv.Start(context.Background()))
	require.NoError(t, srv.Stop())
	assert.NotPanics(t, func() { assert.NoError(t, srv.Stop()) })
}

func TestHandlers(t *testing.T) {
	base := writeDatabase(t)
	s, srv := newTestServer(t, base, nil)
	require.NoError(t, s.reload(context.Background()))

	t.Run("health", func(t *testing.T) {
		var body map[string]any
		require.Equal(t, http.StatusOK, getJSON(t, srv, "/api/v1/health", &body))
		assert.Equal(t, true, body["loaded"])
		assert.InDelta(t, 2, body["samples"], 0)
	})

	t.Run("meta", func(t *testing.T) {
		var body map[string]any
		require.Equal(t, http.StatusOK, getJSON(t, srv, "/api/v1/meta", &body))
		assert.Equal(t, []any{"2023-01-10 12:03:29", "2023-01-11 12:03:29"}, body[timingdb.KeyFinishTime])
	})

	t.Run("samples", func(t *testing.T) {
		var body struct {
			Samples []timingdb.Sample `json:"samples"`
		}
		require.Equal(t, http.StatusOK, getJSON(t, srv, "/api/v1/samples", &body))
		require.Len(t, body.Samples, 2)
		assert.Equal(t, "rev2", body.Samples[1].Revision)
	})

	t.Run("tree", func(t *testing.T) {
		var body struct {
			Name     string `json:"name"`
			Children []struct {
				Name string `json:"name"`
			} `json:"children"`
		}
		require.Equal(t, http.StatusOK, getJSON(t, srv, "/api/v1/tables/0/tree", &body))
		assert.Equal(t, "root", body.Name)
		require.Len(t, body.Children, 1)
		assert.Equal(t, "total", body.Children[0].Name)
	})

	t.Run("tree bad index", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, getJSON(t, srv, "/api/v1/tables/x/tree", nil))
		assert.Equal(t, http.StatusNotFound, getJSON(t, srv, "/api/v1/tables/3/tree", nil))
	})

	t.Run("node by name", func(t *testing.T) {
		var body nodeResponse
		require.Equal(t, http.StatusOK, getJSON(t, srv, "/api/v1/tables/0/nodes/nh_solve", &body))
		assert.Equal(t, "root>total>integrate_nh>nh_solve", body.Path)
		assert.Equal(t, []string{"nh_solve.edgecomp"}, body.Children)
		require.Len(t, body.Samples, 2)
		require.NotNil(t, body.Samples[1].Values[config.DefaultSeriesColumn])
		assert.InDelta(t, 240.5, *body.Samples[1].Values[config.DefaultSeriesColumn], 1e-9)
	})

	t.Run("node by path", func(t *testing.T) {
		var body nodeResponse
		path := "/api/v1/tables/0/nodes/" + url.PathEscape("root>total>physics>radiation")
		require.Equal(t, http.StatusOK, getJSON(t, srv, path, &body))
		assert.Equal(t, "radiation", body.Name)
	})

	t.Run("node missing", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, getJSON(t, srv, "/api/v1/tables/0/nodes/nope", nil))
	})

	t.Run("series default column", func(t *testing.T) {
		var body struct {
			Column  string                 `json:"column"`
			Points  []timingdb.SeriesPoint `json:"points"`
			Summary timingdb.SeriesSummary `json:"summary"`
		}
		require.Equal(t, http.StatusOK, getJSON(t, srv, "/api/v1/tables/0/series/total", &body))
		assert.Equal(t, config.DefaultSeriesColumn, body.Column)
		require.Len(t, body.Points, 2)
		assert.InDelta(t, 204.163, body.Points[0].Value, 1e-9)
		assert.Equal(t, 2, body.Summary.Count)
		assert.InDelta(t, 408.326, body.Summary.Max, 1e-9)
	})

	t.Run("series unknown column", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest,
			getJSON(t, srv, "/api/v1/tables/0/series/total?column=nope", nil))
	})

	t.Run("series unknown timer", func(t *testing.T) {
		var body struct {
			Points []timingdb.SeriesPoint `json:"points"`
		}
		require.Equal(t, http.StatusOK, getJSON(t, srv, "/api/v1/tables/0/series/nope", &body))
		assert.Empty(t, body.Points)
	})
}

func TestRateLimit(t *testing.T) {
	base := writeDatabase(t)
	s, srv := newTestServer(t, base, &config.APIConfig{
		RateLimit: config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2},
	})
	require.NoError(t, s.reload(context.Background()))

	assert.Equal(t, http.StatusOK, getJSON(t, srv, "/api/v1/meta", nil))
	assert.Equal(t, http.StatusOK, getJSON(t, srv, "/api/v1/meta", nil))

	resp, err := http.Get(srv.URL + "/api/v1/meta")
	require.NoError(t, err)

	_ = resp.Body.Close()

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "30", resp.Header.Get("Retry-After"))

	// Health is never limited.
	assert.Equal(t, http.StatusOK, getJSON(t, srv, "/api/v1/health", nil))
}

func TestIndexEndpoints(t *testing.T) {
	ctx := context.Background()

	store := indexstore.NewStore(testLogger(), &config.IndexConfig{
		Driver: config.DriverSQLite,
		SQLite: config.SQLiteDatabaseConfig{Path: ":memory:"},
	})
	require.NoError(t, store.Start(ctx))

	t.Cleanup(func() { _ = store.Stop() })

	base := writeDatabase(t)

	db, err := timingdb.LoadFile(ctx, base)
	require.NoError(t, err)

	_, err = indexstore.Sync(ctx, testLogger(), store, "icon", db)
	require.NoError(t, err)

	_, srv := newTestServer(t, base, nil, WithIndex(store, "icon"))

	var samples struct {
		Samples []indexstore.Sample `json:"samples"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/api/v1/index/samples", &samples))
	assert.Len(t, samples.Samples, 2)

	var series struct {
		Points []timingdb.SeriesPoint `json:"points"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/api/v1/index/tables/0/series/radiation", &series))
	require.Len(t, series.Points, 2)
	assert.InDelta(t, 16.25, series.Points[1].Value, 1e-9)
}

func TestClientAddr(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		realIP string
		remote string
		want   string
	}{
		{name: "remote addr", remote: "10.0.0.1:1234", want: "10.0.0.1"},
		{name: "forwarded chain", xff: "1.2.3.4, 10.0.0.1", remote: "10.0.0.1:1234", want: "1.2.3.4"},
		{name: "no port", remote: "10.0.0.2", want: "10.0.0.2"},
		{name: "real ip header", realIP: "5.6.7.8", remote: "10.0.0.1:1234", want: "5.6.7.8"},
		{name: "forwarded wins over real ip", xff: "1.2.3.4", realIP: "5.6.7.8", remote: "10.0.0.1:1234", want: "1.2.3.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote

			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}

			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}

			assert.Equal(t, tt.want, clientAddr(r))
		})
	}
}

func TestClientLimiters(t *testing.T) {
	cl := newClientLimiters(60)
	t.Cleanup(cl.stop)

	now := time.Date(2023, 1, 10, 12, 0, 0, 0, time.UTC)
	cl.now = func() time.Time { return now }

	for i := 0; i < 60; i++ {
		require.Zero(t, cl.reserve("1.2.3.4"))
	}

	assert.Equal(t, time.Second, cl.reserve("1.2.3.4"))
	assert.Zero(t, cl.reserve("5.6.7.8"), "clients have separate budgets")

	now = now.Add(time.Second)
	assert.Zero(t, cl.reserve("1.2.3.4"), "one token refills per second")
	assert.Equal(t, 2, cl.sweep())

	now = now.Add(clientIdleTTL + time.Second)
	assert.Equal(t, 0, cl.sweep())

	cl.stop()
	cl.stop()
}
