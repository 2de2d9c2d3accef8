// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MKhiriev/go-table-replicator/internal/config"
	"github.com/MKhiriev/go-table-replicator/internal/logger"
	"github.com/MKhiriev/go-table-replicator/internal/utils"
	"github.com/MKhiriev/go-table-replicator/models"
	"github.com/go-resty/resty/v2"
)

const restPathPrefix = "/rest/v1/"

type postgrestBackend struct {
	client *utils.HTTPClient
	apiKey string
	tokens *roleTokenSource

	logger *logger.Logger
}

// NewPostgRESTBackend constructs a [Backend] speaking the PostgREST dialect
// used by Supabase. It normalises adapterCfg.RESTURL, sets the request
// timeout, and attaches the apikey header to every request.
//
// The bearer token is a role token minted from adapterCfg.JWTSecret when
// one is configured, and the API key otherwise.
//
// Returns an error if the URL is empty or cannot be parsed.
func NewPostgRESTBackend(adapterCfg config.ReplicatorAdapter, log *logger.Logger) (Backend, error) {
	baseURL, err := normalizeBaseURL(adapterCfg.RESTURL)
	if err != nil {
		return nil, fmt.Errorf("invalid postgrest url: %w", err)
	}

	client := utils.NewHTTPClient(baseURL, adapterCfg.RequestTimeout)
	if adapterCfg.APIKey != "" {
		client.SetHeader("apikey", adapterCfg.APIKey)
	}

	b := &postgrestBackend{
		client: client,
		apiKey: adapterCfg.APIKey,
		logger: log,
	}
	if adapterCfg.JWTSecret != "" {
		b.tokens = &roleTokenSource{
			role:     adapterCfg.JWTRole,
			secret:   adapterCfg.JWTSecret,
			duration: adapterCfg.JWTDuration,
		}
	}

	return b, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

// Select implements [Backend]. It issues GET /rest/v1/<table>?<query>.
func (b *postgrestBackend) Select(ctx context.Context, q models.SelectQuery) ([]models.Document, error) {
	log := logger.FromContext(ctx)

	query, err := encodeSelect(q)
	if err != nil {
		return nil, err
	}

	req, err := b.request(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := req.Get(tableURL(q.Table, query))
	if err != nil {
		return nil, mapTransportError("select", err)
	}
	if err = mapHTTPError(resp); err != nil {
		log.Err(err).
			Str("func", "postgrestBackend.Select").
			Str("table", q.Table).
			Str("query", query).
			Msg("select failed")
		return nil, err
	}

	rows, err := models.DecodeDocuments(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}

	return rows, nil
}

// Insert implements [Backend]. It issues POST /rest/v1/<table> with row as
// the JSON body.
func (b *postgrestBackend) Insert(ctx context.Context, table string, row models.Document) error {
	req, err := b.request(ctx)
	if err != nil {
		return err
	}

	resp, err := req.
		SetHeader("Content-Type", "application/json").
		SetHeader("Prefer", "return=minimal").
		SetBody(row).
		Post(tableURL(table, ""))
	if err != nil {
		return mapTransportError("insert", err)
	}

	return mapHTTPError(resp)
}

// Update implements [Backend]. It issues PATCH /rest/v1/<table>?<where>
// asking for an exact count, and reads the number of updated rows from the
// Content-Range header.
func (b *postgrestBackend) Update(ctx context.Context, table string, row models.Document, where models.Filters) (int64, error) {
	query, err := encodeFilters(where)
	if err != nil {
		return 0, err
	}

	req, err := b.request(ctx)
	if err != nil {
		return 0, err
	}
	resp, err := req.
		SetHeader("Content-Type", "application/json").
		SetHeader("Prefer", "return=minimal,count=exact").
		SetBody(row).
		Patch(tableURL(table, query))
	if err != nil {
		return 0, mapTransportError("update", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return 0, err
	}

	return parseContentRangeTotal(resp.Header().Get("Content-Range"))
}

func (b *postgrestBackend) request(ctx context.Context) (*resty.Request, error) {
	req := b.client.R().SetContext(ctx)

	token := b.apiKey
	if b.tokens != nil {
		var err error
		if token, err = b.tokens.Token(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
	}
	if token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}

	return req, nil
}

// tableURL builds the request path. The query string is appended verbatim
// so that resty does not re-encode or reorder it.
func tableURL(table, query string) string {
	path := restPathPrefix + url.PathEscape(table)
	if query == "" {
		return path
	}
	return path + "?" + query
}

// parseContentRangeTotal reads the total of a "first-last/total" or
// "*/total" Content-Range value.
func parseContentRangeTotal(header string) (int64, error) {
	_, total, found := strings.Cut(header, "/")
	if !found || total == "" || total == "*" {
		return 0, fmt.Errorf("%w: no row count in content-range %q", ErrBadResponse, header)
	}

	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: content-range %q: %w", ErrBadResponse, header, err)
	}
	return n, nil
}

// roleTokenSource mints PostgREST role tokens and reuses them until shortly
// before they expire.
type roleTokenSource struct {
	role     string
	secret   string
	duration time.Duration

	mu        sync.Mutex
	token     string
	refreshAt time.Time
}

func (s *roleTokenSource) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Before(s.refreshAt) {
		return s.token, nil
	}

	token, expiresAt, err := utils.GenerateRoleToken(s.role, s.duration, s.secret)
	if err != nil {
		return "", err
	}

	s.token = token
	s.refreshAt = expiresAt.Add(-s.duration / 10)
	return token, nil
}
