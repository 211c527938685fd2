// Package memstore implementa docstore.Store em memória, para testes e
// desenvolvimento local sem dependências externas.
package memstore

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/planejafacil/api/internal/docstore"
	"github.com/planejafacil/api/internal/util"
)

type entry struct {
	data    map[string]any
	created time.Time
	seq     uint64
}

// Store guarda documentos indexados pelo caminho completo.
type Store struct {
	mu   sync.RWMutex
	docs map[string]*entry
	seq  uint64
	now  func() time.Time

	// FailCommit, quando definido, faz Commit falhar sem aplicar nada.
	FailCommit error
}

var _ docstore.Store = (*Store)(nil)

// New cria store vazio.
func New() *Store {
	return &Store{docs: make(map[string]*entry), now: time.Now}
}

// WithClock troca a fonte de horário usada nos ServerTimestamp.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Get(_ context.Context, path string) (*docstore.Document, error) {
	if !docstore.IsDocumentPath(path) {
		return nil, docstore.ErrInvalidPath
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.docs[clean(path)]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return toDocument(clean(path), e), nil
}

func (s *Store) Set(_ context.Context, path string, data map[string]any) error {
	if !docstore.IsDocumentPath(path) {
		return docstore.ErrInvalidPath
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(clean(path), data)
	return nil
}

func (s *Store) setLocked(path string, data map[string]any) {
	now := s.now()
	resolved := deepCopy(docstore.ResolveTimestamps(data, now)).(map[string]any)
	if e, ok := s.docs[path]; ok {
		e.data = resolved
		return
	}
	s.seq++
	s.docs[path] = &entry{data: resolved, created: now, seq: s.seq}
}

func (s *Store) Update(_ context.Context, path string, data map[string]any) error {
	if !docstore.IsDocumentPath(path) {
		return docstore.ErrInvalidPath
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(clean(path), data)
}

func (s *Store) updateLocked(path string, data map[string]any) error {
	e, ok := s.docs[path]
	if !ok {
		return docstore.ErrNotFound
	}
	resolved := deepCopy(docstore.ResolveTimestamps(data, s.now())).(map[string]any)
	for k, v := range resolved {
		e.data[k] = v
	}
	return nil
}

func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	if !docstore.IsCollectionPath(collection) {
		return "", docstore.ErrInvalidPath
	}
	id := util.NewID()
	if err := s.Set(ctx, docstore.Join(clean(collection), id), data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Delete(_ context.Context, path string) error {
	if !docstore.IsDocumentPath(path) {
		return docstore.ErrInvalidPath
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, clean(path))
	return nil
}

func (s *Store) Query(_ context.Context, collection string, filters ...docstore.Filter) ([]docstore.Document, error) {
	if !docstore.IsCollectionPath(collection) {
		return nil, docstore.ErrInvalidPath
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := s.childrenLocked(clean(collection))
	out := make([]docstore.Document, 0, len(paths))
	for _, p := range paths {
		e, ok := s.docs[p]
		if !ok || !matches(e.data, filters) {
			continue
		}
		out = append(out, *toDocument(p, e))
	}
	return out, nil
}

func (s *Store) ListDocumentPaths(_ context.Context, collection string, limit int) ([]string, error) {
	if !docstore.IsCollectionPath(collection) {
		return nil, docstore.ErrInvalidPath
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := s.childrenLocked(clean(collection))
	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}
	return paths, nil
}

// childrenLocked devolve os documentos diretos da coleção, incluindo pais
// implícitos de documentos mais profundos, ordenados por criação.
func (s *Store) childrenLocked(collection string) []string {
	prefix := collection + "/"
	seen := make(map[string]uint64)
	for p, e := range s.docs {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		id, _, _ := strings.Cut(rest, "/")
		docPath := prefix + id
		if cur, ok := seen[docPath]; !ok || e.seq < cur {
			seen[docPath] = e.seq
		}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		if seen[paths[i]] == seen[paths[j]] {
			return paths[i] < paths[j]
		}
		return seen[paths[i]] < seen[paths[j]]
	})
	return paths
}

func (s *Store) Collections(_ context.Context, docPath string) ([]string, error) {
	if !docstore.IsDocumentPath(docPath) {
		return nil, docstore.ErrInvalidPath
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := clean(docPath) + "/"
	set := make(map[string]struct{})
	for p := range s.docs {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		name, _, _ := strings.Cut(strings.TrimPrefix(p, prefix), "/")
		set[prefix+name] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) Commit(_ context.Context, batch *docstore.Batch) error {
	if batch == nil || batch.Len() == 0 {
		return nil
	}
	if batch.Len() > docstore.MaxBatchWrites {
		return docstore.ErrBatchTooLarge
	}
	for _, w := range batch.Writes() {
		if !docstore.IsDocumentPath(w.Path) {
			return docstore.ErrInvalidPath
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCommit != nil {
		return s.FailCommit
	}
	// atualizações exigem alvo existente, considerando o efeito das escritas
	// anteriores do mesmo lote
	exists := make(map[string]bool)
	for _, w := range batch.Writes() {
		p := clean(w.Path)
		switch w.Op {
		case docstore.OpDelete:
			exists[p] = false
		case docstore.OpSet:
			exists[p] = true
		case docstore.OpUpdate:
			present, seen := exists[p]
			if !seen {
				_, present = s.docs[p]
			}
			if !present {
				return docstore.ErrNotFound
			}
		}
	}
	for _, w := range batch.Writes() {
		switch w.Op {
		case docstore.OpDelete:
			delete(s.docs, clean(w.Path))
		case docstore.OpSet:
			s.setLocked(clean(w.Path), w.Data)
		case docstore.OpUpdate:
			_ = s.updateLocked(clean(w.Path), w.Data)
		}
	}
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// Len devolve a quantidade de documentos armazenados.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func clean(path string) string {
	return strings.Trim(path, "/")
}

func toDocument(path string, e *entry) *docstore.Document {
	_, id, _ := docstore.Split(path)
	return &docstore.Document{ID: id, Path: path, Data: deepCopy(e.data).(map[string]any)}
}

func matches(data map[string]any, filters []docstore.Filter) bool {
	for _, f := range filters {
		v, ok := data[f.Field]
		if !ok || !reflect.DeepEqual(v, f.Value) {
			return false
		}
	}
	return true
}

func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = deepCopy(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopy(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopy(item)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	default:
		return v
	}
}
