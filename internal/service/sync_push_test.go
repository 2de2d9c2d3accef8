package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/MKhiriev/go-table-replicator/internal/adapter"
	"github.com/MKhiriev/go-table-replicator/internal/logger"
	"github.com/MKhiriev/go-table-replicator/internal/mock"
	"github.com/MKhiriev/go-table-replicator/internal/validators"
	"github.com/MKhiriev/go-table-replicator/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func remoteAlice() models.Document {
	return models.Document{"id": "1", "name": "Remote Alice", "age": json.Number("42"), "_deleted": false}
}

// ── insert ──────────────────────────────────────────────────────────────────

func TestPush_InsertNewRow(t *testing.T) {
	backend := adapter.NewMemoryBackend("id", "_modified")
	source := newTestSource(backend)

	conflicts, err := source.Push(context.Background(), []models.WriteRow{{
		NewDocumentState: models.Document{"id": "1", "name": "Alice", "_deleted": false},
	}})
	require.NoError(t, err)
	assert.NotNil(t, conflicts)
	assert.Empty(t, conflicts)

	rows := backend.Rows(testTable)
	require.Len(t, rows, 1)
	assert.Equal(t, "Alice", rows[0]["name"])
	assert.NotEmpty(t, rows[0]["_modified"], "timestamp is assigned by the backend")
}

func TestPush_InsertNeverSendsModified(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mock.NewMockBackend(ctrl)
	source := NewTableSource(backend, nil, SourceOptions{Table: testTable, Codec: testCodec()}, logger.Nop())

	backend.EXPECT().Insert(gomock.Any(), testTable, models.Document{"id": "1", "name": "Alice"}).Return(nil)

	_, err := source.Push(context.Background(), []models.WriteRow{{
		NewDocumentState: models.Document{"id": "1", "name": "Alice", "_modified": modifiedAt(1)},
	}})
	require.NoError(t, err)
}

func TestPush_InsertExistingRowConflicts(t *testing.T) {
	backend := adapter.NewMemoryBackend("id", "_modified")
	seeded := remoteAlice()
	seeded["_modified"] = modifiedAt(1)
	backend.Seed(testTable, seeded)

	conflicts, err := newTestSource(backend).Push(context.Background(), []models.WriteRow{{
		NewDocumentState: models.Document{"id": "1", "name": "Local Alice", "_deleted": false},
	}})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, remoteAlice(), conflicts[0], "conflict carries the document form of the row")
}

func TestPush_InsertIsIdempotentUnderRetry(t *testing.T) {
	backend := adapter.NewMemoryBackend("id", "_modified")
	source := newTestSource(backend)
	ctx := context.Background()

	row := models.WriteRow{NewDocumentState: models.Document{"id": "1", "name": "Alice", "_deleted": false}}

	conflicts, err := source.Push(ctx, []models.WriteRow{row})
	require.NoError(t, err)
	require.Empty(t, conflicts)

	// the response was lost, the same insert is replayed
	conflicts, err = source.Push(ctx, []models.WriteRow{row})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)

	resolution, err := NewDefaultConflictResolver(testCodec()).Resolve(ctx, models.ConflictInput{
		NewDocumentState: row.NewDocumentState,
		RealMasterState:  conflicts[0],
	})
	require.NoError(t, err)
	assert.True(t, resolution.IsEqual)
	assert.Len(t, backend.Rows(testTable), 1)
}

func TestPush_InsertTransientFailure(t *testing.T) {
	backend := adapter.NewMemoryBackend("id", "_modified")
	backend.FailNext(&adapter.BackendError{Status: 503, Err: adapter.ErrBackendUnavailable, Retryable: true})

	_, err := newTestSource(backend).Push(context.Background(), []models.WriteRow{{
		NewDocumentState: models.Document{"id": "1"},
	}})
	require.ErrorIs(t, err, adapter.ErrBackendUnavailable)
	assert.False(t, IsFatal(err))
}

// ── update ──────────────────────────────────────────────────────────────────

func TestPush_UpdateWithMatchingPreconditions(t *testing.T) {
	backend := adapter.NewMemoryBackend("id", "_modified")
	seeded := remoteAlice()
	seeded["_modified"] = modifiedAt(1)
	backend.Seed(testTable, seeded)

	newState := remoteAlice()
	newState["name"] = "Alice"

	conflicts, err := newTestSource(backend).Push(context.Background(), []models.WriteRow{{
		NewDocumentState:   newState,
		AssumedMasterState: remoteAlice(),
	}})
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	rows := backend.Rows(testTable)
	require.Len(t, rows, 1)
	assert.Equal(t, "Alice", rows[0]["name"])
	assert.Greater(t, rows[0]["_modified"], modifiedAt(1))
}

func TestPush_UpdateWithStaleAssumedState(t *testing.T) {
	backend := adapter.NewMemoryBackend("id", "_modified")
	seeded := remoteAlice()
	seeded["_modified"] = modifiedAt(1)
	backend.Seed(testTable, seeded)

	assumed := remoteAlice()
	assumed["name"] = "Alice"
	newState := remoteAlice()
	newState["name"] = "Local Alice"

	conflicts, err := newTestSource(backend).Push(context.Background(), []models.WriteRow{{
		NewDocumentState:   newState,
		AssumedMasterState: assumed,
	}})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, remoteAlice(), conflicts[0])
	assert.Equal(t, "Remote Alice", backend.Rows(testTable)[0]["name"], "row must be left untouched")
}

func TestPush_UpdateFilters(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mock.NewMockBackend(ctrl)
	source := NewTableSource(backend, nil, SourceOptions{Table: testTable, Codec: testCodec()}, logger.Nop())
	ctx := context.Background()

	assumed := models.Document{"id": "1", "name": "Remote Alice", "age": json.Number("42"), "nickname": nil}
	resolved := models.Document{"id": "1", "name": "Resolved Alice", "age": json.Number("42"), "nickname": nil}

	backend.EXPECT().Update(ctx, testTable, resolved, models.Filters{
		models.Eq("id", "1"),
		models.Eq("age", json.Number("42")),
		models.Eq("name", "Remote Alice"),
		models.Is("nickname", nil),
	}).Return(int64(1), nil)

	conflicts, err := source.Push(ctx, []models.WriteRow{{NewDocumentState: resolved, AssumedMasterState: assumed}})
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestPush_UpdateStructuredFieldIsFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mock.NewMockBackend(ctrl)
	source := NewTableSource(backend, nil, SourceOptions{Table: testTable, Codec: testCodec()}, logger.Nop())

	assumed := models.Document{"id": "1", "tags": []any{"a"}}

	// no request reaches the backend
	_, err := source.Push(context.Background(), []models.WriteRow{{
		NewDocumentState:   models.Document{"id": "1", "tags": []any{"b"}},
		AssumedMasterState: assumed,
	}})
	require.ErrorIs(t, err, ErrUnsupportedFieldType)
	assert.True(t, IsFatal(err))
}

func TestPush_UpdateAssumedStateForAnotherRowIsFatal(t *testing.T) {
	tests := []struct {
		name    string
		assumed models.Document
	}{
		{name: "assumed state without key", assumed: models.Document{"_deleted": false}},
		{name: "assumed state of another row", assumed: models.Document{"id": json.Number("1"), "_deleted": false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := adapter.NewMemoryBackend("id", "_modified")
			seedHumans(backend, 3)
			before := backend.Rows(testTable)

			_, err := newTestSource(backend).Push(context.Background(), []models.WriteRow{{
				NewDocumentState:   models.Document{"id": json.Number("2"), "name": "Two", "_deleted": false},
				AssumedMasterState: tt.assumed,
			}})
			require.ErrorIs(t, err, ErrMalformedRow)
			require.ErrorIs(t, err, validators.ErrAssumedStateKeyDiff)
			assert.True(t, IsFatal(err))
			assert.Equal(t, before, backend.Rows(testTable), "no row may be touched")
		})
	}
}

func TestPush_ConflictRowMissing(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mock.NewMockBackend(ctrl)
	source := NewTableSource(backend, nil, SourceOptions{Table: testTable, Codec: testCodec()}, logger.Nop())
	ctx := context.Background()

	gomock.InOrder(
		backend.EXPECT().Update(ctx, testTable, gomock.Any(), gomock.Any()).Return(int64(0), nil),
		backend.EXPECT().Select(ctx, models.SelectQuery{
			Table: testTable,
			Where: models.Filters{models.Eq("id", "1")},
			Limit: 1,
		}).Return([]models.Document{}, nil),
	)

	_, err := source.Push(ctx, []models.WriteRow{{
		NewDocumentState:   models.Document{"id": "1", "name": "a"},
		AssumedMasterState: models.Document{"id": "1", "name": "b"},
	}})
	require.ErrorIs(t, err, ErrConflictRowMissing)
	assert.False(t, IsFatal(err))
}

func TestPush_CustomUpdateHandler(t *testing.T) {
	backend := adapter.NewMemoryBackend("id", "_modified")
	seeded := remoteAlice()
	seeded["_modified"] = modifiedAt(1)
	backend.Seed(testTable, seeded)

	var got models.WriteRow
	handler := func(_ context.Context, row models.WriteRow) (bool, error) {
		got = row
		return false, nil
	}
	source := NewTableSource(backend, backend, SourceOptions{
		Table:         testTable,
		Codec:         testCodec(),
		UpdateHandler: handler,
	}, logger.Nop())

	row := models.WriteRow{NewDocumentState: models.Document{"id": "1", "name": "x"}, AssumedMasterState: remoteAlice()}
	conflicts, err := source.Push(context.Background(), []models.WriteRow{row})
	require.NoError(t, err)
	assert.Equal(t, row, got)
	require.Len(t, conflicts, 1)
	assert.Equal(t, remoteAlice(), conflicts[0])
}

func TestPush_CustomUpdateHandlerError(t *testing.T) {
	handlerErr := errors.New("rpc failed")
	source := NewTableSource(adapter.NewMemoryBackend("id", "_modified"), nil, SourceOptions{
		Table: testTable,
		Codec: testCodec(),
		UpdateHandler: func(context.Context, models.WriteRow) (bool, error) {
			return false, handlerErr
		},
	}, logger.Nop())

	_, err := source.Push(context.Background(), []models.WriteRow{{
		NewDocumentState:   models.Document{"id": "1"},
		AssumedMasterState: models.Document{"id": "1"},
	}})
	require.ErrorIs(t, err, handlerErr)
}

// ── validation ──────────────────────────────────────────────────────────────

func TestPush_BatchSizeMustBeOne(t *testing.T) {
	source := newTestSource(adapter.NewMemoryBackend("id", "_modified"))
	row := models.WriteRow{NewDocumentState: models.Document{"id": "1"}}

	for _, rows := range [][]models.WriteRow{nil, {row, row}} {
		_, err := source.Push(context.Background(), rows)
		require.ErrorIs(t, err, ErrInvalidBatchSize)
	}
}

func TestPush_MissingPrimaryKey(t *testing.T) {
	source := newTestSource(adapter.NewMemoryBackend("id", "_modified"))

	_, err := source.Push(context.Background(), []models.WriteRow{{NewDocumentState: models.Document{"name": "x"}}})
	require.ErrorIs(t, err, ErrMissingPrimaryKey)
}
