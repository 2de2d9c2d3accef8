// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		value any
		want  ValueKind
	}{
		{nil, KindNull},
		{true, KindBool},
		{"alice", KindString},
		{time.Now(), KindString},
		{json.Number("1.5"), KindNumber},
		{42, KindNumber},
		{3.14, KindNumber},
		{[]any{"x"}, KindStructured},
		{map[string]any{"a": 1}, KindStructured},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.value), "value %#v", tt.value)
	}
}

func TestFormatScalar(t *testing.T) {
	assert.Equal(t, "null", FormatScalar(nil))
	assert.Equal(t, "true", FormatScalar(true))
	assert.Equal(t, "alice", FormatScalar("alice"))
	assert.Equal(t, "30", FormatScalar(json.Number("30")))
	assert.Equal(t, "0.1", FormatScalar(0.1))
	assert.Equal(t, "-7", FormatScalar(int64(-7)))
	assert.Equal(t,
		"2026-01-02T03:04:05.000006Z",
		FormatScalar(time.Date(2026, 1, 2, 3, 4, 5, 6000, time.UTC)))
}

func TestFormatTimestamp_SortsLikeTime(t *testing.T) {
	earlier := time.Date(2026, 1, 1, 0, 0, 0, 900_000_000, time.UTC)
	later := time.Date(2026, 1, 1, 0, 0, 1, 0, time.FixedZone("CET", 3600)).Add(time.Hour)

	assert.Less(t, FormatTimestamp(earlier), FormatTimestamp(later))
	assert.Len(t, FormatTimestamp(earlier), len("2026-01-01T00:00:00.900000Z"))
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, ValuesEqual(json.Number("30"), 30))
	assert.True(t, ValuesEqual(json.Number("1.50"), 1.5))
	assert.False(t, ValuesEqual(json.Number("30"), "30"))
	assert.True(t, ValuesEqual(nil, nil))
	assert.True(t, ValuesEqual([]any{json.Number("1"), "a"}, []any{1, "a"}))
	assert.False(t, ValuesEqual([]any{1}, []any{1, 2}))
	assert.True(t, ValuesEqual(map[string]any{"n": json.Number("2")}, Document{"n": 2.0}))
}

func TestDocumentsEqual(t *testing.T) {
	a := Document{"id": "a", "age": json.Number("30"), "_deleted": false}

	assert.True(t, DocumentsEqual(a, Document{"id": "a", "age": 30, "_deleted": false}))
	assert.False(t, DocumentsEqual(a, Document{"id": "a", "age": 30}))
	assert.False(t, DocumentsEqual(a, Document{"id": "a", "age": 31, "_deleted": false}))
}

func TestDocument_Helpers(t *testing.T) {
	doc := Document{"id": "a", "_modified": "m", "_deleted": true}

	without := doc.Without("_modified")
	assert.NotContains(t, without, "_modified")
	assert.Contains(t, doc, "_modified", "Without must not touch the receiver")

	assert.True(t, doc.Bool("_deleted"))
	assert.False(t, doc.Bool("id"))
	assert.False(t, doc.Bool("missing"))
	assert.Nil(t, Document(nil).Clone())

	decoded, err := DecodeDocuments([]byte(`[{"id":1},{"id":"b"}]`))
	require.NoError(t, err)
	assert.Equal(t, []Document{{"id": json.Number("1")}, {"id": "b"}}, decoded)

	_, err = DecodeDocument([]byte(`[`))
	assert.Error(t, err)
}
