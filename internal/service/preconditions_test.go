// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"encoding/json"
	"testing"

	"github.com/MKhiriev/go-table-replicator/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowCodec_Preconditions(t *testing.T) {
	tests := []struct {
		name    string
		assumed models.Document
		want    models.Filters
		wantErr error
	}{
		{
			name:    "primary key first, rest by name",
			assumed: models.Document{"name": "Remote Alice", "id": "1", "age": json.Number("42")},
			want: models.Filters{
				models.Eq("id", "1"),
				models.Eq("age", json.Number("42")),
				models.Eq("name", "Remote Alice"),
			},
		},
		{
			name:    "null and booleans use is",
			assumed: models.Document{"id": json.Number("7"), "nickname": nil, "_deleted": false},
			want: models.Filters{
				models.Eq("id", json.Number("7")),
				models.Is("_deleted", false),
				models.Is("nickname", nil),
			},
		},
		{
			name:    "float number",
			assumed: models.Document{"id": "1", "score": 1.5},
			want: models.Filters{
				models.Eq("id", "1"),
				models.Eq("score", 1.5),
			},
		},
		{
			name:    "object is rejected",
			assumed: models.Document{"id": "1", "address": map[string]any{"city": "Baku"}},
			wantErr: ErrUnsupportedFieldType,
		},
		{
			name:    "array is rejected",
			assumed: models.Document{"id": "1", "tags": []any{"a", "b"}},
			wantErr: ErrUnsupportedFieldType,
		},
		{
			name:    "empty state",
			assumed: models.Document{},
			want:    models.Filters{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := testCodec().Preconditions(tt.assumed)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.True(t, IsFatal(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
