package service

import (
	"context"
	"encoding/json"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/MKhiriev/go-table-replicator/internal/adapter"
	"github.com/MKhiriev/go-table-replicator/internal/logger"
	"github.com/MKhiriev/go-table-replicator/models"
)

const testTable = "humans"

var testEpoch = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// modifiedAt returns the i-th timestamp of a strictly increasing sequence.
func modifiedAt(i int) string {
	return models.FormatTimestamp(testEpoch.Add(time.Duration(i) * time.Microsecond))
}

// seedHumans stores n rows with ids 1..n, each modified one microsecond
// after the previous one.
func seedHumans(m *adapter.MemoryBackend, n int) {
	for i := 1; i <= n; i++ {
		m.Seed(testTable, models.Document{
			"id":        json.Number(strconv.Itoa(i)),
			"name":      "Human " + strconv.Itoa(i),
			"_deleted":  false,
			"_modified": modifiedAt(i),
		})
	}
}

func newTestSource(m *adapter.MemoryBackend) SyncSource {
	return NewTableSource(m, m, SourceOptions{Table: testTable, Codec: testCodec()}, logger.Nop())
}

// fakeStore is an in-memory LocalStore with the same bookkeeping as the
// SQLite store: a dirty flag and a revision per document, and the last
// known remote state as the assumed master.
type fakeStore struct {
	codec RowCodec

	mu          sync.Mutex
	entries     map[string]*fakeEntry
	checkpoints map[string]models.Checkpoint
	seq         int64
	applyErr    error
}

type fakeEntry struct {
	doc        models.Document
	master     models.Document
	checkpoint *models.Checkpoint
	dirty      bool
	revision   int64
	seq        int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		codec:       testCodec(),
		entries:     make(map[string]*fakeEntry),
		checkpoints: make(map[string]models.Checkpoint),
	}
}

// write records a local change the way a client edit would.
func (s *fakeStore) write(doc models.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.FormatScalar(doc[s.codec.PrimaryKey])
	e, ok := s.entries[key]
	if !ok {
		e = &fakeEntry{}
		s.entries[key] = e
	}
	s.seq++
	e.doc = doc.Clone()
	e.dirty = true
	e.revision++
	e.seq = s.seq
}

func (s *fakeStore) get(id string) (models.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return e.doc.Clone(), true
}

func (s *fakeStore) isDirty(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	return ok && e.dirty
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *fakeStore) ApplyRemote(_ context.Context, docs []models.RemoteDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.applyErr != nil {
		return s.applyErr
	}

	for _, rd := range docs {
		key := models.FormatScalar(rd.Document[s.codec.PrimaryKey])
		e, ok := s.entries[key]
		if ok && e.dirty {
			continue
		}
		if ok && e.checkpoint != nil && rd.Checkpoint.Compare(*e.checkpoint) <= 0 {
			continue
		}
		if !ok {
			e = &fakeEntry{}
			s.entries[key] = e
		}
		cp := rd.Checkpoint
		e.doc = rd.Document.Clone()
		e.master = rd.Document.Clone()
		e.checkpoint = &cp
	}
	return nil
}

func (s *fakeStore) PendingWrites(_ context.Context, limit int) ([]models.PendingWrite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dirty []*fakeEntry
	for _, e := range s.entries {
		if e.dirty {
			dirty = append(dirty, e)
		}
	}
	slices.SortFunc(dirty, func(a, b *fakeEntry) int { return int(a.seq - b.seq) })
	if len(dirty) > limit {
		dirty = dirty[:limit]
	}

	out := make([]models.PendingWrite, 0, len(dirty))
	for _, e := range dirty {
		out = append(out, models.PendingWrite{
			Row:      models.WriteRow{NewDocumentState: e.doc.Clone(), AssumedMasterState: e.master.Clone()},
			Revision: e.revision,
		})
	}
	return out, nil
}

func (s *fakeStore) AckWrite(_ context.Context, write models.PendingWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[models.FormatScalar(write.Row.NewDocumentState[s.codec.PrimaryKey])]
	if !ok {
		return nil
	}
	e.master = write.Row.NewDocumentState.Clone()
	if e.revision == write.Revision {
		e.dirty = false
	}
	return nil
}

func (s *fakeStore) ResolveConflict(_ context.Context, write models.PendingWrite, master models.Document, resolution models.ConflictResolution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[models.FormatScalar(write.Row.NewDocumentState[s.codec.PrimaryKey])]
	if !ok {
		return nil
	}
	e.master = master.Clone()
	if e.revision != write.Revision {
		return nil
	}
	if resolution.IsEqual {
		e.dirty = false
		return nil
	}
	e.doc = resolution.Document.Clone()
	e.dirty = !models.DocumentsEqual(e.doc, master)
	return nil
}

func (s *fakeStore) LoadCheckpoint(_ context.Context, replicationID string) (*models.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp, ok := s.checkpoints[replicationID]
	if !ok {
		return nil, nil
	}
	return &cp, nil
}

func (s *fakeStore) SaveCheckpoint(_ context.Context, replicationID string, checkpoint models.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[replicationID] = checkpoint
	return nil
}

func (s *fakeStore) checkpoint(replicationID string) (models.Checkpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.checkpoints[replicationID]
	return cp, ok
}
