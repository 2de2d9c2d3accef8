// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"encoding/json"
	"strings"
)

// Checkpoint is a replication cursor: the position of a row in the total
// order (modified ascending, then primary key ascending).
//
// A nil *Checkpoint means "before the first row of the table".
type Checkpoint struct {
	// Modified is the row's modification timestamp exactly as the backend
	// renders it. Ordering relies on the backend's text form sorting like
	// the timestamps themselves.
	Modified string `json:"modified"`

	// PrimaryKeyValue is the row's primary key value. Numbers stay
	// json.Number, text stays string.
	PrimaryKeyValue any `json:"primaryKeyValue"`
}

// Compare orders two checkpoints by Modified, then by PrimaryKeyValue.
// Numeric keys compare numerically, everything else by text.
// It returns -1, 0 or +1.
func (c Checkpoint) Compare(o Checkpoint) int {
	if cmp := strings.Compare(c.Modified, o.Modified); cmp != 0 {
		return cmp
	}
	return ComparePrimaryKeys(c.PrimaryKeyValue, o.PrimaryKeyValue)
}

// CompareCheckpoints compares two optional checkpoints. nil sorts before
// every non-nil checkpoint.
func CompareCheckpoints(a, b *Checkpoint) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return a.Compare(*b)
	}
}

// ComparePrimaryKeys compares two primary key values. When both are numbers
// the comparison is numeric, otherwise both are compared as text.
func ComparePrimaryKeys(a, b any) int {
	if cmp, ok := CompareNumbers(a, b); ok {
		return cmp
	}
	return strings.Compare(FormatScalar(a), FormatScalar(b))
}

// UnmarshalJSON keeps numeric primary keys as json.Number.
func (c *Checkpoint) UnmarshalJSON(data []byte) error {
	var raw struct {
		Modified        string          `json:"modified"`
		PrimaryKeyValue json.RawMessage `json:"primaryKeyValue"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.Modified = raw.Modified
	c.PrimaryKeyValue = nil
	if len(raw.PrimaryKeyValue) == 0 {
		return nil
	}

	doc, err := DecodeDocument([]byte(`{"v":` + string(raw.PrimaryKeyValue) + `}`))
	if err != nil {
		return err
	}
	c.PrimaryKeyValue = doc["v"]
	return nil
}
