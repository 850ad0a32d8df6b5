package mocks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	monitorDomain "github.com/davicafu/hexapulse/internal/monitor/domain"
)

// InMemoryChangeSource simula el almacén vigilado: guarda documentos por
// colección, reparte los cambios a los streams abiertos y responde al sondeo.
type InMemoryChangeSource struct {
	mu         sync.Mutex
	docs       map[string][]storedDoc
	streams    map[string][]*memoryStream
	failWatch  map[string]bool
	Results    []monitorDomain.Document
	ResultsErr error
	closeCalls int
	now        func() time.Time
}

type storedDoc struct {
	id  string
	doc monitorDomain.Document
	ts  time.Time
}

var _ monitorDomain.ChangeSource = (*InMemoryChangeSource)(nil)

func NewInMemoryChangeSource() *InMemoryChangeSource {
	return &InMemoryChangeSource{
		docs:      make(map[string][]storedDoc),
		streams:   make(map[string][]*memoryStream),
		failWatch: make(map[string]bool),
		now:       time.Now,
	}
}

// FailWatch hace que Watch falle para esa colección.
func (s *InMemoryChangeSource) FailWatch(collection string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWatch[collection] = true
}

// Insert guarda el documento y lo notifica a los streams abiertos.
func (s *InMemoryChangeSource) Insert(collection, id string, doc monitorDomain.Document) {
	s.write(collection, id, doc, monitorDomain.OpInsert)
}

// Update reemplaza el documento y lo notifica como update.
func (s *InMemoryChangeSource) Update(collection, id string, doc monitorDomain.Document) {
	s.write(collection, id, doc, monitorDomain.OpUpdate)
}

func (s *InMemoryChangeSource) write(collection, id string, doc monitorDomain.Document, op string) {
	s.mu.Lock()
	ts := s.now()
	docs := s.docs[collection]
	replaced := false
	for i := range docs {
		if docs[i].id == id {
			docs[i] = storedDoc{id: id, doc: doc, ts: ts}
			replaced = true
		}
	}
	if !replaced {
		docs = append(docs, storedDoc{id: id, doc: doc, ts: ts})
	}
	s.docs[collection] = docs
	streams := append([]*memoryStream(nil), s.streams[collection]...)
	s.mu.Unlock()

	change := monitorDomain.RawChange{Collection: collection, Operation: op, DocumentID: id, Document: doc, Timestamp: ts}
	for _, st := range streams {
		st.push(change)
	}
}

// BreakStreams hace fallar los streams abiertos de la colección.
func (s *InMemoryChangeSource) BreakStreams(collection string, err error) {
	s.mu.Lock()
	streams := s.streams[collection]
	s.streams[collection] = nil
	s.mu.Unlock()

	for _, st := range streams {
		st.fail(err)
	}
}

func (s *InMemoryChangeSource) Watch(_ context.Context, collection string) (monitorDomain.ChangeStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWatch[collection] {
		return nil, fmt.Errorf("change streams not supported on %s", collection)
	}
	st := &memoryStream{ch: make(chan monitorDomain.RawChange, 64), errCh: make(chan error, 1), done: make(chan struct{})}
	s.streams[collection] = append(s.streams[collection], st)
	return st, nil
}

func (s *InMemoryChangeSource) LatestMark(_ context.Context, collection string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var mark time.Time
	for _, d := range s.docs[collection] {
		if d.ts.After(mark) {
			mark = d.ts
		}
	}
	if mark.IsZero() {
		mark = s.now()
	}
	return mark, nil
}

func (s *InMemoryChangeSource) PollSince(_ context.Context, collection string, mark time.Time) ([]monitorDomain.RawChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []monitorDomain.RawChange
	for _, d := range s.docs[collection] {
		if d.ts.After(mark) {
			out = append(out, monitorDomain.RawChange{
				Collection: collection, Operation: monitorDomain.OpInsert, DocumentID: d.id, Document: d.doc, Timestamp: d.ts,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *InMemoryChangeSource) RecentDocuments(_ context.Context, collection string, limit int) ([]monitorDomain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.docs[collection]
	out := make([]monitorDomain.Document, 0, len(docs))
	for i := len(docs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, docs[i].doc)
	}
	return out, nil
}

func (s *InMemoryChangeSource) LatestDocument(_ context.Context, collection string) (monitorDomain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.docs[collection]
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[len(docs)-1].doc, nil
}

func (s *InMemoryChangeSource) InsertResult(_ context.Context, _ string, doc monitorDomain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ResultsErr != nil {
		return s.ResultsErr
	}
	s.Results = append(s.Results, doc)
	return nil
}

// StoredResults copia los resultados guardados.
func (s *InMemoryChangeSource) StoredResults() []monitorDomain.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]monitorDomain.Document(nil), s.Results...)
}

func (s *InMemoryChangeSource) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	return nil
}

func (s *InMemoryChangeSource) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

type memoryStream struct {
	ch    chan monitorDomain.RawChange
	errCh chan error
	done  chan struct{}
	once  sync.Once
}

func (m *memoryStream) push(c monitorDomain.RawChange) {
	select {
	case m.ch <- c:
	case <-m.done:
	}
}

func (m *memoryStream) fail(err error) {
	select {
	case m.errCh <- err:
	default:
	}
}

func (m *memoryStream) Next(ctx context.Context) (monitorDomain.RawChange, error) {
	select {
	case c := <-m.ch:
		return c, nil
	case err := <-m.errCh:
		return monitorDomain.RawChange{}, err
	case <-m.done:
		return monitorDomain.RawChange{}, monitorDomain.ErrStreamClosed
	case <-ctx.Done():
		return monitorDomain.RawChange{}, ctx.Err()
	}
}

func (m *memoryStream) Close(_ context.Context) error {
	m.once.Do(func() { close(m.done) })
	return nil
}

// ErrStreamBroken es el error típico para BreakStreams en los tests.
var ErrStreamBroken = errors.New("stream broken")
