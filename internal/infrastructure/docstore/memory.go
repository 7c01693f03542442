package docstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type memDoc struct {
	data map[string]any
	seq  int64
}

// MemoryStore is an in-process document store with push subscriptions.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]*memDoc // collection -> id -> doc
	seq  int64

	subMu   sync.Mutex
	subs    map[int]*subscription
	nextSub int
}

type stagedWrite struct {
	collection, id string
	data           map[string]any
}

type subscription struct {
	collection string
	where      []Where
	orderBy    *OrderBy
	onNext     func([]Document)
	onError    func(error)
	notify     chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
}

func (s *subscription) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]map[string]*memDoc),
		subs: make(map[int]*subscription),
	}
}

func (ms *MemoryStore) AddDocument(ctx context.Context, collection string, data any) (string, error) {
	id := uuid.New().String()
	if err := ms.AtomicMultiWrite(ctx, []Write{{Kind: WriteSet, Collection: collection, ID: id, Data: data}}); err != nil {
		return "", err
	}
	return id, nil
}

func (ms *MemoryStore) GetDocuments(ctx context.Context, collection string) ([]Document, error) {
	return ms.QueryDocuments(ctx, collection, nil, nil)
}

func (ms *MemoryStore) GetDocumentByID(ctx context.Context, collection, id string) (*Document, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	doc, ok := ms.data[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	data, err := Normalize(doc.data)
	if err != nil {
		return nil, err
	}
	return &Document{ID: id, Data: data}, nil
}

func (ms *MemoryStore) UpdateDocument(ctx context.Context, collection, id string, partial map[string]any) error {
	return ms.AtomicMultiWrite(ctx, []Write{{Kind: WriteUpdate, Collection: collection, ID: id, Data: partial}})
}

func (ms *MemoryStore) QueryDocuments(ctx context.Context, collection string, where []Where, orderBy *OrderBy) ([]Document, error) {
	normalized, err := normalizeWhere(where)
	if err != nil {
		return nil, err
	}

	ms.mu.RLock()
	docs, err := ms.snapshotLocked(collection)
	ms.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return applyQuery(docs, normalized, orderBy), nil
}

// snapshotLocked copies a collection in insertion order. Caller holds mu.
func (ms *MemoryStore) snapshotLocked(collection string) ([]Document, error) {
	coll := ms.data[collection]
	type entry struct {
		id  string
		doc *memDoc
	}
	entries := make([]entry, 0, len(coll))
	for id, doc := range coll {
		entries = append(entries, entry{id, doc})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].doc.seq < entries[j].doc.seq })

	out := make([]Document, 0, len(entries))
	for _, e := range entries {
		data, err := Normalize(e.doc.data)
		if err != nil {
			return nil, err
		}
		out = append(out, Document{ID: e.id, Data: data})
	}
	return out, nil
}

// AtomicMultiWrite applies every write or none of them.
func (ms *MemoryStore) AtomicMultiWrite(ctx context.Context, writes []Write) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	plan := make([]stagedWrite, 0, len(writes))

	ms.mu.Lock()
	for _, w := range writes {
		if err := w.validate(); err != nil {
			ms.mu.Unlock()
			return err
		}
		data, err := Normalize(w.Data)
		if err != nil {
			ms.mu.Unlock()
			return err
		}
		if w.Kind == WriteUpdate {
			current := ms.stagedData(plan, w.Collection, w.ID)
			if current == nil {
				ms.mu.Unlock()
				return ErrNotFound
			}
			data = mergeTopLevel(current, data)
		}
		plan = append(plan, stagedWrite{w.Collection, w.ID, data})
	}

	touched := make(map[string]bool)
	for _, p := range plan {
		coll := ms.data[p.collection]
		if coll == nil {
			coll = make(map[string]*memDoc)
			ms.data[p.collection] = coll
		}
		if existing, ok := coll[p.id]; ok {
			existing.data = p.data
		} else {
			ms.seq++
			coll[p.id] = &memDoc{data: p.data, seq: ms.seq}
		}
		touched[p.collection] = true
	}
	ms.mu.Unlock()

	for collection := range touched {
		ms.notify(collection)
	}
	return nil
}

// stagedData returns the latest view of a document including earlier writes in
// the same batch. Caller holds mu.
func (ms *MemoryStore) stagedData(plan []stagedWrite, collection, id string) map[string]any {
	for i := len(plan) - 1; i >= 0; i-- {
		if plan[i].collection == collection && plan[i].id == id {
			return plan[i].data
		}
	}
	if doc, ok := ms.data[collection][id]; ok {
		return doc.data
	}
	return nil
}

func (ms *MemoryStore) SubscribeToQuery(ctx context.Context, collection string, where []Where, orderBy *OrderBy, onNext func([]Document), onError func(error)) (func(), error) {
	normalized, err := normalizeWhere(where)
	if err != nil {
		return nil, err
	}

	sub := &subscription{
		collection: collection,
		where:      normalized,
		orderBy:    orderBy,
		onNext:     onNext,
		onError:    onError,
		notify:     make(chan struct{}, 1),
		done:       make(chan struct{}),
	}

	ms.subMu.Lock()
	id := ms.nextSub
	ms.nextSub++
	ms.subs[id] = sub
	ms.subMu.Unlock()

	sub.notify <- struct{}{}
	go ms.run(ctx, sub)

	return func() {
		ms.subMu.Lock()
		delete(ms.subs, id)
		ms.subMu.Unlock()
		sub.stop()
	}, nil
}

func (ms *MemoryStore) run(ctx context.Context, sub *subscription) {
	for {
		select {
		case <-sub.done:
			return
		case <-ctx.Done():
			return
		case <-sub.notify:
		}

		select {
		case <-sub.done:
			return
		default:
		}

		ms.mu.RLock()
		docs, err := ms.snapshotLocked(sub.collection)
		ms.mu.RUnlock()
		if err != nil {
			if sub.onError != nil {
				sub.onError(err)
			}
			continue
		}
		sub.onNext(applyQuery(docs, sub.where, sub.orderBy))
	}
}

// notify wakes every subscriber on collection. Pending wake-ups coalesce.
func (ms *MemoryStore) notify(collection string) {
	ms.subMu.Lock()
	defer ms.subMu.Unlock()
	for _, sub := range ms.subs {
		if sub.collection != collection {
			continue
		}
		select {
		case sub.notify <- struct{}{}:
		default:
		}
	}
}
