package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/MKhiriev/go-table-replicator/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConflictResolver(t *testing.T) {
	resolver := NewDefaultConflictResolver(testCodec())
	ctx := context.Background()

	t.Run("equal ignoring modified", func(t *testing.T) {
		res, err := resolver.Resolve(ctx, models.ConflictInput{
			NewDocumentState: models.Document{"id": "1", "age": json.Number("42"), "_modified": modifiedAt(1)},
			RealMasterState:  models.Document{"id": "1", "age": float64(42)},
		})
		require.NoError(t, err)
		assert.True(t, res.IsEqual)
		assert.Nil(t, res.Document)
	})

	t.Run("remote wins", func(t *testing.T) {
		master := remoteAlice()
		res, err := resolver.Resolve(ctx, models.ConflictInput{
			NewDocumentState: models.Document{"id": "1", "name": "Local Alice"},
			RealMasterState:  master,
		})
		require.NoError(t, err)
		assert.False(t, res.IsEqual)
		assert.Equal(t, master, res.Document)

		res.Document["name"] = "changed"
		assert.Equal(t, "Remote Alice", master["name"], "resolution must not alias the input")
	})
}

func TestConflictResolverFunc(t *testing.T) {
	var called bool
	resolver := ConflictResolverFunc(func(_ context.Context, input models.ConflictInput) (models.ConflictResolution, error) {
		called = true
		return models.ConflictResolution{Document: input.NewDocumentState}, nil
	})

	res, err := resolver.Resolve(context.Background(), models.ConflictInput{NewDocumentState: models.Document{"id": "1"}})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, models.Document{"id": "1"}, res.Document)
}
