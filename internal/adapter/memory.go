package adapter

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/MKhiriev/go-table-replicator/models"
	"github.com/jackc/pgerrcode"
)

// MemoryBackend is an in-process [Backend] and [ChangeFeed]. It behaves like
// a table with a primary key, a trigger maintaining the modification
// timestamp, and a change notification per write.
//
// It is used by tests and by the "memory" adapter kind for local
// experiments.
type MemoryBackend struct {
	primaryKey    string
	modifiedField string

	mu       sync.Mutex
	tables   map[string]map[string]models.Document
	lastTime time.Time
	failNext []error

	subsMu sync.Mutex
	subs   map[*memorySubscription]struct{}

	now func() time.Time
}

// NewMemoryBackend creates an empty backend keyed by primaryKey and stamping
// modifiedField on every write.
func NewMemoryBackend(primaryKey, modifiedField string) *MemoryBackend {
	return &MemoryBackend{
		primaryKey:    primaryKey,
		modifiedField: modifiedField,
		tables:        make(map[string]map[string]models.Document),
		subs:          make(map[*memorySubscription]struct{}),
		now:           time.Now,
	}
}

// Seed stores rows as they are, without stamping or notifications.
func (m *MemoryBackend) Seed(table string, rows ...models.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.table(table)
	for _, row := range rows {
		t[models.FormatScalar(row[m.primaryKey])] = row.Clone()
	}
}

// Rows returns a copy of every row of table ordered by primary key.
func (m *MemoryBackend) Rows(table string) []models.Document {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Document, 0, len(m.tables[table]))
	for _, row := range m.tables[table] {
		out = append(out, row.Clone())
	}
	slices.SortFunc(out, func(a, b models.Document) int {
		return models.ComparePrimaryKeys(a[m.primaryKey], b[m.primaryKey])
	})
	return out
}

// FailNext makes the next call to Select, Insert or Update return err.
// Calls queue up.
func (m *MemoryBackend) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = append(m.failNext, err)
}

// Select implements [Backend].
func (m *MemoryBackend) Select(ctx context.Context, q models.SelectQuery) ([]models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.popFailure(); err != nil {
		return nil, err
	}

	out := make([]models.Document, 0)
	for _, row := range m.tables[q.Table] {
		ok, err := matchFilters(row, q.Where)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row.Clone())
		}
	}

	slices.SortStableFunc(out, func(a, b models.Document) int {
		for _, o := range q.OrderBy {
			cmp := compareValues(a[o.Field], b[o.Field])
			if o.Direction == models.OrderDesc {
				cmp = -cmp
			}
			if cmp != 0 {
				return cmp
			}
		}
		return 0
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Insert implements [Backend]. A duplicate primary key fails with an error
// matching [ErrUniqueViolation].
func (m *MemoryBackend) Insert(ctx context.Context, table string, row models.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if err := m.popFailure(); err != nil {
		m.mu.Unlock()
		return err
	}

	t := m.table(table)
	key := models.FormatScalar(row[m.primaryKey])
	if _, exists := t[key]; exists {
		m.mu.Unlock()
		return &BackendError{
			Status:  http.StatusConflict,
			Code:    pgerrcode.UniqueViolation,
			Message: "duplicate key value violates unique constraint",
			Err:     ErrUniqueViolation,
		}
	}

	stored := row.Clone()
	stored[m.modifiedField] = m.stamp()
	t[key] = stored
	event := models.ChangeEvent{EventType: models.EventInsert, Table: table, New: stored.Clone()}
	m.mu.Unlock()

	m.publish(event)
	return nil
}

// Update implements [Backend]. Fields of row are merged into every matching
// row and the number of changed rows is returned.
func (m *MemoryBackend) Update(ctx context.Context, table string, row models.Document, where models.Filters) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	if err := m.popFailure(); err != nil {
		m.mu.Unlock()
		return 0, err
	}

	var events []models.ChangeEvent
	for key, existing := range m.tables[table] {
		ok, err := matchFilters(existing, where)
		if err != nil {
			m.mu.Unlock()
			return 0, err
		}
		if !ok {
			continue
		}

		updated := existing.Clone()
		for k, v := range row {
			updated[k] = v
		}
		updated[m.modifiedField] = m.stamp()
		m.tables[table][key] = updated

		events = append(events, models.ChangeEvent{
			EventType: models.EventUpdate,
			Table:     table,
			New:       updated.Clone(),
			Old:       existing.Clone(),
		})
	}
	m.mu.Unlock()

	for _, e := range events {
		m.publish(e)
	}
	return int64(len(events)), nil
}

// Delete removes the row with the given primary key and emits a DELETE
// event. It reports whether a row was removed.
func (m *MemoryBackend) Delete(table string, primaryKey any) bool {
	m.mu.Lock()
	key := models.FormatScalar(primaryKey)
	existing, ok := m.tables[table][key]
	if ok {
		delete(m.tables[table], key)
	}
	m.mu.Unlock()

	if ok {
		m.publish(models.ChangeEvent{EventType: models.EventDelete, Table: table, Old: existing})
	}
	return ok
}

// Subscribe implements [ChangeFeed]. Events are delivered in order on a
// dedicated goroutine.
func (m *MemoryBackend) Subscribe(ctx context.Context, table string, handler ChangeHandler) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &memorySubscription{
		owner:  m,
		table:  table,
		events: make(chan models.ChangeEvent, 256),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}

	m.subsMu.Lock()
	m.subs[sub] = struct{}{}
	m.subsMu.Unlock()

	go sub.run(handler)

	return sub, nil
}

func (m *MemoryBackend) publish(event models.ChangeEvent) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	for sub := range m.subs {
		if sub.table != event.Table {
			continue
		}
		select {
		case sub.events <- event:
		case <-sub.done:
		}
	}
}

func (m *MemoryBackend) table(name string) map[string]models.Document {
	t, ok := m.tables[name]
	if !ok {
		t = make(map[string]models.Document)
		m.tables[name] = t
	}
	return t
}

func (m *MemoryBackend) popFailure() error {
	if len(m.failNext) == 0 {
		return nil
	}
	err := m.failNext[0]
	m.failNext = m.failNext[1:]
	return err
}

// stamp returns a strictly increasing modification timestamp.
func (m *MemoryBackend) stamp() string {
	t := m.now().UTC().Truncate(time.Microsecond)
	if !t.After(m.lastTime) {
		t = m.lastTime.Add(time.Microsecond)
	}
	m.lastTime = t
	return models.FormatTimestamp(t)
}

type memorySubscription struct {
	owner  *MemoryBackend
	table  string
	events chan models.ChangeEvent
	done   chan struct{}
	exited chan struct{}

	once sync.Once
}

func (s *memorySubscription) run(handler ChangeHandler) {
	defer close(s.exited)
	for {
		select {
		case <-s.done:
			return
		case e := <-s.events:
			handler(e)
		}
	}
}

// Unsubscribe implements [Subscription].
func (s *memorySubscription) Unsubscribe() error {
	err := ErrNotSubscribed
	s.once.Do(func() {
		// done must close first: a publisher blocked on a full buffer holds
		// subsMu until it observes done.
		close(s.done)

		s.owner.subsMu.Lock()
		delete(s.owner.subs, s)
		s.owner.subsMu.Unlock()

		<-s.exited
		err = nil
	})
	return err
}
