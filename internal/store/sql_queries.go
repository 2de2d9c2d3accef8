// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

const (
	getDocument = `
		SELECT data, deleted
		FROM documents
		WHERE collection = ? AND id = ?;`

	listDocuments = `
		SELECT data
		FROM documents
		WHERE collection = ? AND deleted = 0
		ORDER BY id;`

	// putLocalDocument records a local edit: the revision is bumped and the
	// document is queued for push behind every earlier write.
	putLocalDocument = `
		INSERT INTO documents (
			collection,
			id,
			data,
			deleted,
			revision,
			dirty,
			write_seq,
			updated_at
		) VALUES (?, ?, ?, ?, 1, 1, (SELECT COALESCE(MAX(write_seq), 0) + 1 FROM documents WHERE collection = ?), ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			data       = excluded.data,
			deleted    = excluded.deleted,
			revision   = documents.revision + 1,
			dirty      = 1,
			write_seq  = excluded.write_seq,
			updated_at = excluded.updated_at;`

	getDocumentState = `
		SELECT dirty, master_checkpoint
		FROM documents
		WHERE collection = ? AND id = ?;`

	// applyRemoteDocument never overwrites a document with unpushed changes.
	applyRemoteDocument = `
		INSERT INTO documents (
			collection,
			id,
			data,
			deleted,
			revision,
			dirty,
			write_seq,
			master,
			master_checkpoint,
			updated_at
		) VALUES (?, ?, ?, ?, 0, 0, 0, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			data              = excluded.data,
			deleted           = excluded.deleted,
			master            = excluded.master,
			master_checkpoint = excluded.master_checkpoint,
			updated_at        = excluded.updated_at
		WHERE documents.dirty = 0;`

	getPendingWrites = `
		SELECT data, master, revision
		FROM documents
		WHERE collection = ? AND dirty = 1
		ORDER BY write_seq
		LIMIT ?;`

	// ackWrite moves the assumed master forward and clears the dirty flag
	// only if no local edit happened since the write was read.
	ackWrite = `
		UPDATE documents SET
			master = ?,
			dirty  = CASE WHEN revision = ? THEN 0 ELSE dirty END
		WHERE collection = ? AND id = ?;`

	getDocumentRevision = `
		SELECT revision
		FROM documents
		WHERE collection = ? AND id = ?;`

	setMaster = `
		UPDATE documents SET
			master = ?
		WHERE collection = ? AND id = ?;`

	resolveEqual = `
		UPDATE documents SET
			master = ?,
			dirty  = 0
		WHERE collection = ? AND id = ?;`

	resolveWithDocument = `
		UPDATE documents SET
			data       = ?,
			deleted    = ?,
			master     = ?,
			dirty      = ?,
			updated_at = ?
		WHERE collection = ? AND id = ?;`

	getCheckpoint = `
		SELECT checkpoint
		FROM checkpoints
		WHERE replication_id = ?;`

	saveCheckpoint = `
		INSERT INTO checkpoints (replication_id, checkpoint, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (replication_id) DO UPDATE SET
			checkpoint = excluded.checkpoint,
			updated_at = excluded.updated_at;`
)
