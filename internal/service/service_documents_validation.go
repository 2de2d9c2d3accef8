package service

import (
	"context"
	"fmt"

	"github.com/MKhiriev/go-table-replicator/internal/validators"
	"github.com/MKhiriev/go-table-replicator/models"
)

// DocumentServiceWrapper defines middleware composition for DocumentService.
type DocumentServiceWrapper interface {
	Wrap(DocumentService) DocumentService
}

type DocumentValidationService struct {
	inner     DocumentService
	validator validators.Validator
}

// NewDocumentValidationService validates every written document before it
// reaches the wrapped service.
func NewDocumentValidationService(codec RowCodec) DocumentServiceWrapper {
	return &DocumentValidationService{
		validator: validators.NewDocumentValidator(validators.DocumentFields{
			PrimaryKey:    codec.PrimaryKey,
			ModifiedField: codec.ModifiedField,
			DeletedField:  codec.DeletedField,
		}),
	}
}

func (v *DocumentValidationService) Get(ctx context.Context, id string) (models.Document, error) {
	return v.inner.Get(ctx, id)
}

func (v *DocumentValidationService) List(ctx context.Context) ([]models.Document, error) {
	return v.inner.List(ctx)
}

func (v *DocumentValidationService) Put(ctx context.Context, id string, doc models.Document) (models.Document, error) {
	// the primary key may be omitted, it is filled from id
	fields := []string{validators.FieldDeleted, validators.FieldValues}
	if err := v.validator.Validate(ctx, doc, fields...); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	return v.inner.Put(ctx, id, doc)
}

func (v *DocumentValidationService) Delete(ctx context.Context, id string) error {
	return v.inner.Delete(ctx, id)
}

func (v *DocumentValidationService) Wrap(inner DocumentService) DocumentService {
	v.inner = inner
	return v
}
