// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
)

// Document is a single replicated record: a remote table row or a local
// document. Keys are column names, values are JSON-compatible scalars.
// Numbers decoded from the wire are kept as json.Number so that integer
// primary keys survive a round trip unchanged.
type Document map[string]any

// Clone returns a shallow copy of the document. Nested values are shared,
// which is fine because replication never mutates them in place.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return maps.Clone(d)
}

// Without returns a copy of the document with the given fields removed.
func (d Document) Without(fields ...string) Document {
	out := d.Clone()
	for _, f := range fields {
		delete(out, f)
	}
	return out
}

// Bool reads a boolean field. Missing or non-boolean values yield false.
func (d Document) Bool(field string) bool {
	v, ok := d[field].(bool)
	return ok && v
}

// DecodeDocuments decodes a JSON array of objects keeping numbers as
// json.Number.
func DecodeDocuments(data []byte) ([]Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var docs []Document
	if err := dec.Decode(&docs); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	return docs, nil
}

// DecodeDocument decodes a single JSON object keeping numbers as json.Number.
func DecodeDocument(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}
