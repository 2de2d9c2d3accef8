// Package validators checks documents and pending writes before they reach
// the local store or the remote table.
//
// Validation is field-scoped: callers name the rules to apply, so a client
// document can be checked before the service fills in its primary key.
package validators

import "context"

// Validator checks value against the named rules. With no fields given all
// rules apply.
type Validator interface {
	Validate(ctx context.Context, value any, fields ...string) error
}
