// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MKhiriev/go-table-replicator/internal/config"
	"github.com/MKhiriev/go-table-replicator/internal/logger"
	"github.com/MKhiriev/go-table-replicator/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestBackend создаёт postgrestBackend, направленный на тестовый сервер
func newTestBackend(t *testing.T, serverURL string) Backend {
	t.Helper()
	b, err := NewPostgRESTBackend(config.ReplicatorAdapter{
		RESTURL:        serverURL,
		APIKey:         "anon-key",
		RequestTimeout: 5 * time.Second,
	}, logger.Nop())
	require.NoError(t, err)
	return b
}

// ── Select ──────────────────────────────────────────────────────────────────

func TestPostgREST_Select_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/v1/humans", r.URL.Path)
		assert.Equal(t, "select=*&order=_modified.asc%2Cid.asc&limit=2", r.URL.RawQuery)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"name":"Alice","_modified":"2024-01-01T00:00:00.000000Z","_deleted":false}]`))
	}))
	defer srv.Close()

	b := newTestBackend(t, srv.URL)
	rows, err := b.Select(context.Background(), models.SelectQuery{
		Table:   "humans",
		OrderBy: []models.Order{{Field: "_modified"}, {Field: "id"}},
		Limit:   2,
	})

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, json.Number("1"), rows[0]["id"])
	assert.Equal(t, "Alice", rows[0]["name"])
	assert.Equal(t, false, rows[0]["_deleted"])
}

func TestPostgREST_Select_BadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	_, err := newTestBackend(t, srv.URL).Select(context.Background(), models.SelectQuery{Table: "humans"})

	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestPostgREST_Select_ServerUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestBackend(t, srv.URL).Select(context.Background(), models.SelectQuery{Table: "humans"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.True(t, IsRetryable(err))
}

func TestPostgREST_Select_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestBackend(t, url).Select(context.Background(), models.SelectQuery{Table: "humans"})

	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.True(t, IsRetryable(err))
}

func TestPostgREST_Select_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"PGRST301","message":"JWT expired"}`))
	}))
	defer srv.Close()

	_, err := newTestBackend(t, srv.URL).Select(context.Background(), models.SelectQuery{Table: "humans"})

	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, IsRetryable(err))
	assert.Contains(t, err.Error(), "JWT expired")
}

// ── Insert ──────────────────────────────────────────────────────────────────

func TestPostgREST_Insert_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/humans", r.URL.Path)
		assert.Empty(t, r.URL.RawQuery)
		assert.Equal(t, "return=minimal", r.Header.Get("Prefer"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Bob", body["name"])

		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := newTestBackend(t, srv.URL).Insert(context.Background(), "humans", models.Document{
		"id":       json.Number("2"),
		"name":     "Bob",
		"_deleted": false,
	})

	assert.NoError(t, err)
}

func TestPostgREST_Insert_UniqueViolation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":"23505","message":"duplicate key value violates unique constraint","details":"Key (id)=(2) already exists."}`))
	}))
	defer srv.Close()

	err := newTestBackend(t, srv.URL).Insert(context.Background(), "humans", models.Document{"id": 2})

	require.ErrorIs(t, err, ErrUniqueViolation)
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusConflict, be.Status)
	assert.Equal(t, "23505", be.Code)
	assert.False(t, be.Retryable)
}

func TestPostgREST_Insert_SerializationFailureIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"40001","message":"could not serialize access"}`))
	}))
	defer srv.Close()

	err := newTestBackend(t, srv.URL).Insert(context.Background(), "humans", models.Document{"id": 2})

	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.True(t, IsRetryable(err))
}

func TestPostgREST_Insert_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"PGRST204","message":"Could not find the 'x' column"}`))
	}))
	defer srv.Close()

	err := newTestBackend(t, srv.URL).Insert(context.Background(), "humans", models.Document{"x": 1})

	assert.ErrorIs(t, err, ErrRequestRejected)
	assert.False(t, IsRetryable(err))
}

// ── Update ──────────────────────────────────────────────────────────────────

func TestPostgREST_Update_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/rest/v1/humans", r.URL.Path)
		assert.Equal(t, "id=eq.1&name=eq.Alice&_deleted=is.false", r.URL.RawQuery)
		assert.Equal(t, "return=minimal,count=exact", r.Header.Get("Prefer"))

		w.Header().Set("Content-Range", "*/1")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n, err := newTestBackend(t, srv.URL).Update(context.Background(), "humans",
		models.Document{"id": json.Number("1"), "name": "Alice B", "_deleted": false},
		models.Filters{
			models.Eq("id", json.Number("1")),
			models.Eq("name", "Alice"),
			models.Is("_deleted", false),
		})

	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPostgREST_Update_NoRowsMatched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "*/0")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n, err := newTestBackend(t, srv.URL).Update(context.Background(), "humans",
		models.Document{"id": 1}, models.Filters{models.Eq("id", 1)})

	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPostgREST_Update_MissingContentRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	_, err := newTestBackend(t, srv.URL).Update(context.Background(), "humans",
		models.Document{"id": 1}, models.Filters{models.Eq("id", 1)})

	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestPostgREST_Update_StructuredPreconditionRejected(t *testing.T) {
	var called atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Store(true)
	}))
	defer srv.Close()

	_, err := newTestBackend(t, srv.URL).Update(context.Background(), "humans",
		models.Document{"id": 1}, models.Filters{models.Eq("tags", []any{"x"})})

	assert.ErrorIs(t, err, ErrUnsupportedFilter)
	assert.False(t, called.Load())
}

// ── Role token ──────────────────────────────────────────────────────────────

func TestPostgREST_RoleToken(t *testing.T) {
	const secret = "super-secret-jwt-key"

	var (
		mu     sync.Mutex
		tokens []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		tokens = append(tokens, r.Header.Get("Authorization"))
		mu.Unlock()
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	b, err := NewPostgRESTBackend(config.ReplicatorAdapter{
		RESTURL:     srv.URL,
		APIKey:      "anon-key",
		JWTSecret:   secret,
		JWTRole:     "service_role",
		JWTDuration: time.Hour,
	}, logger.Nop())
	require.NoError(t, err)

	for range 2 {
		_, err = b.Select(context.Background(), models.SelectQuery{Table: "humans"})
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, tokens, 2)
	assert.Equal(t, tokens[0], tokens[1], "token should be reused until refresh")

	raw := tokens[0][len("Bearer "):]
	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "service_role", claims["role"])
}

// ── helpers ─────────────────────────────────────────────────────────────────

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "full url", raw: "https://xyz.supabase.co/", want: "https://xyz.supabase.co"},
		{name: "host and port", raw: "localhost:3000", want: "http://localhost:3000"},
		{name: "spaces", raw: "  http://db:3000  ", want: "http://db:3000"},
		{name: "empty", raw: "", wantErr: true},
		{name: "no host", raw: "http://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeBaseURL(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseContentRangeTotal(t *testing.T) {
	tests := []struct {
		header  string
		want    int64
		wantErr bool
	}{
		{header: "0-4/5", want: 5},
		{header: "*/0", want: 0},
		{header: "*/12", want: 12},
		{header: "0-4/*", wantErr: true},
		{header: "", wantErr: true},
		{header: "*/abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, err := parseContentRangeTotal(tt.header)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewPostgRESTBackend_InvalidURL(t *testing.T) {
	_, err := NewPostgRESTBackend(config.ReplicatorAdapter{RESTURL: " "}, logger.Nop())
	assert.Error(t, err)
}
