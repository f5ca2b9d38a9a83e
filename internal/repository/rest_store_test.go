package repository

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"vetorial-dashboard/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestRestStore_ListRecordRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/records", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": "rec-1", "locality_id": "loc-1", "cycle": "1", "properties_inspected": 40},
		})
	}))
	defer srv.Close()

	s := NewRestStore(srv.URL, "secret", zap.NewNop())
	rows, err := s.ListRecordRows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "loc-1", rows[0].LocalityID())
}

func TestRestStore_InsertAndUpdate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, hasID := body["id"]
		assert.False(t, hasID)

		switch r.Method {
		case http.MethodPost:
			assert.Nil(t, body["start_date"], "empty dates are sent as null")
			writeJSON(w, http.StatusCreated, []map[string]any{{"id": "rec-9"}})
		case http.MethodPatch:
			if r.URL.Query().Get("id") == "eq.rec-9" {
				writeJSON(w, http.StatusOK, []map[string]any{{"id": "rec-9"}})
				return
			}
			writeJSON(w, http.StatusOK, []map[string]any{})
		}
	}))
	defer srv.Close()

	s := NewRestStore(srv.URL, "", zap.NewNop())
	id, err := s.InsertRecord(context.Background(), domain.Record{Cycle: "1"})
	require.NoError(t, err)
	assert.Equal(t, "rec-9", id)

	require.NoError(t, s.UpdateRecord(context.Background(), domain.Record{ID: "rec-9", Cycle: "2"}))
	err = s.UpdateRecord(context.Background(), domain.Record{ID: "other", Cycle: "2"})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRestStore_LocalitiesAndUsers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/rest/v1/localities" && r.Method == http.MethodPost:
			assert.Equal(t, "name", r.URL.Query().Get("on_conflict"))
			writeJSON(w, http.StatusCreated, []map[string]any{{"id": "loc-1", "name": "Centro", "active": true}})
		case r.URL.Path == "/rest/v1/localities":
			writeJSON(w, http.StatusOK, []map[string]any{{"id": "loc-1", "name": "Centro", "active": true}})
		case r.URL.Path == "/rest/v1/users" && r.URL.Query().Get("id") == "eq.u1":
			writeJSON(w, http.StatusOK, []map[string]any{{"id": "u1", "name": nil, "role": "user", "access_level_id": "lvl", "active": true}})
		case r.URL.Path == "/rest/v1/users":
			writeJSON(w, http.StatusOK, []map[string]any{})
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
		}
	}))
	defer srv.Close()

	s := NewRestStore(srv.URL, "", zap.NewNop())
	ctx := context.Background()

	l, err := s.EnsureLocality(ctx, "Centro")
	require.NoError(t, err)
	assert.Equal(t, "loc-1", l.ID)

	names, err := LocalityNameMap(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, "Centro", names["loc-1"])

	u, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "lvl", u.AccessLevelID)

	_, err = s.GetUser(ctx, "u2")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRestStore_ClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "JWT expired"})
	}))
	defer srv.Close()

	s := NewRestStore(srv.URL, "expired", zap.NewNop())
	_, err := s.ListGrantsByUser(context.Background(), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestRestStore_ListRecordRows_SingleAttempt(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		hj, ok := w.(http.Hijacker)
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		// 不返回响应直接断开连接
		conn, _, err := hj.Hijack()
		if err != nil {
			return
		}
		_ = conn.Close()
	}))
	defer srv.Close()

	s := NewRestStore(srv.URL, "", zap.NewNop())
	_, err := s.ListRecordRows(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load(), "store tier is contacted once per call")
}

func TestRestStore_GetRecordRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/records", r.URL.Path)
		if r.URL.Query().Get("id") == "eq.rec-1" {
			writeJSON(w, http.StatusOK, []map[string]any{{"id": "rec-1", "locality_id": "loc-2"}})
			return
		}
		writeJSON(w, http.StatusOK, []map[string]any{})
	}))
	defer srv.Close()

	s := NewRestStore(srv.URL, "", zap.NewNop())
	row, err := s.GetRecordRow(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "loc-2", row.LocalityID())

	_, err = s.GetRecordRow(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRestyLogger_WritesToZap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := restyLogger{sugar: zap.New(core).Sugar()}

	l.Warnf("retry %d", 1)
	l.Errorf("request failed: %s", "EOF")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "retry 1", entries[0].Message)
	assert.Equal(t, "request failed: EOF", entries[1].Message)
}
