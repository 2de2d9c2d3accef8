package service

import (
	"context"

	"github.com/MKhiriev/go-table-replicator/models"
)

// ConflictResolverFunc adapts a function to ConflictResolver.
type ConflictResolverFunc func(ctx context.Context, input models.ConflictInput) (models.ConflictResolution, error)

func (f ConflictResolverFunc) Resolve(ctx context.Context, input models.ConflictInput) (models.ConflictResolution, error) {
	return f(ctx, input)
}

// NewDefaultConflictResolver returns the resolver used when none is
// configured: equal documents are reported as equal, otherwise the remote
// state wins.
func NewDefaultConflictResolver(codec RowCodec) ConflictResolver {
	return ConflictResolverFunc(func(_ context.Context, input models.ConflictInput) (models.ConflictResolution, error) {
		local := input.NewDocumentState.Without(codec.ModifiedField)
		remote := input.RealMasterState.Without(codec.ModifiedField)

		if models.DocumentsEqual(local, remote) {
			return models.ConflictResolution{IsEqual: true}, nil
		}
		return models.ConflictResolution{Document: input.RealMasterState.Clone()}, nil
	})
}
