package storage

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory implements Repository and ChunkStore on process-local maps.
// Documents are stored as marshaled BSON so reads get deep copies and the
// same codec behavior as the Mongo backend (millisecond times, typed
// strings). Safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	docs   map[string]map[primitive.ObjectID]bson.Raw
	chunks map[primitive.ObjectID]map[int][]byte
}

func NewMemory() *Memory {
	return &Memory{
		docs:   make(map[string]map[primitive.ObjectID]bson.Raw),
		chunks: make(map[primitive.ObjectID]map[int][]byte),
	}
}

func (m *Memory) FindByID(ctx context.Context, collection string, id primitive.ObjectID, out any) error {
	m.mu.RLock()
	raw, ok := m.docs[collection][id]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	return bson.Unmarshal(raw, out)
}

func (m *Memory) Insert(ctx context.Context, collection string, doc any) error {
	raw, id, err := marshalDoc(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	col := m.docs[collection]
	if col == nil {
		col = make(map[primitive.ObjectID]bson.Raw)
		m.docs[collection] = col
	}
	if _, exists := col[id]; exists {
		return ErrDuplicateID
	}
	col[id] = raw
	return nil
}

func (m *Memory) Replace(ctx context.Context, collection string, id primitive.ObjectID, doc any) error {
	raw, docID, err := marshalDoc(doc)
	if err != nil {
		return err
	}
	if docID != id {
		return errors.New("document id is immutable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	col := m.docs[collection]
	if _, ok := col[id]; !ok {
		return ErrNotFound
	}
	col[id] = raw
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection string, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	col := m.docs[collection]
	if _, ok := col[id]; !ok {
		return ErrNotFound
	}
	delete(col, id)
	return nil
}

func (m *Memory) List(ctx context.Context, collection string, filter map[string]any, out any) error {
	outv := reflect.ValueOf(out)
	if outv.Kind() != reflect.Pointer || outv.Elem().Kind() != reflect.Slice {
		return errors.New("list result must be a pointer to a slice")
	}

	m.mu.RLock()
	matched := make([]bson.Raw, 0)
	for _, raw := range m.docs[collection] {
		if matchesFilter(raw, filter) {
			matched = append(matched, raw)
		}
	}
	m.mu.RUnlock()

	// Stable insertion-ish order: ObjectIDs are time-prefixed.
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Lookup("_id").ObjectID().Hex() < matched[j].Lookup("_id").ObjectID().Hex()
	})

	elemType := outv.Elem().Type().Elem()
	result := reflect.MakeSlice(outv.Elem().Type(), 0, len(matched))
	for _, raw := range matched {
		elem := reflect.New(elemType)
		if err := bson.Unmarshal(raw, elem.Interface()); err != nil {
			return err
		}
		result = reflect.Append(result, elem.Elem())
	}
	outv.Elem().Set(result)
	return nil
}

func (m *Memory) Count(ctx context.Context, collection string, filter map[string]any) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, raw := range m.docs[collection] {
		if matchesFilter(raw, filter) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

func marshalDoc(doc any) (bson.Raw, primitive.ObjectID, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, primitive.NilObjectID, err
	}
	id, ok := bson.Raw(raw).Lookup("_id").ObjectIDOK()
	if !ok {
		return nil, primitive.NilObjectID, errors.New("document has no _id")
	}
	return raw, id, nil
}

func matchesFilter(doc bson.Raw, filter map[string]any) bool {
	for field, want := range filter {
		rv, err := doc.LookupErr(field)
		if err != nil {
			return false
		}
		if !rawValueEquals(rv, want) {
			return false
		}
	}
	return true
}

func rawValueEquals(rv bson.RawValue, want any) bool {
	if oid, ok := want.(primitive.ObjectID); ok {
		got, ok := rv.ObjectIDOK()
		return ok && got == oid
	}
	v := reflect.ValueOf(want)
	switch v.Kind() {
	case reflect.String:
		got, ok := rv.StringValueOK()
		return ok && got == v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		got, ok := rv.AsInt64OK()
		return ok && got == v.Int()
	case reflect.Bool:
		got, ok := rv.BooleanOK()
		return ok && got == v.Bool()
	}
	return false
}

// ---------------- CHUNKS ----------------

func (m *Memory) PutChunk(ctx context.Context, assetID primitive.ObjectID, seq int, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty chunk for asset %s", assetID.Hex())
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	m.mu.Lock()
	defer m.mu.Unlock()
	byAsset := m.chunks[assetID]
	if byAsset == nil {
		byAsset = make(map[int][]byte)
		m.chunks[assetID] = byAsset
	}
	byAsset[seq] = cp
	return nil
}

func (m *Memory) OpenChunks(ctx context.Context, assetID primitive.ObjectID) (ChunkCursor, error) {
	m.mu.RLock()
	byAsset := m.chunks[assetID]
	seqs := make([]int, 0, len(byAsset))
	for seq := range byAsset {
		seqs = append(seqs, seq)
	}
	sort.Ints(seqs)
	snapshot := make([]Chunk, 0, len(seqs))
	for _, seq := range seqs {
		data := byAsset[seq]
		cp := make([]byte, len(data))
		copy(cp, data)
		snapshot = append(snapshot, Chunk{AssetID: assetID, Seq: seq, Data: cp})
	}
	m.mu.RUnlock()
	return &memoryChunkCursor{chunks: snapshot, pos: -1}, nil
}

func (m *Memory) CountChunks(ctx context.Context, assetID primitive.ObjectID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.chunks[assetID])), nil
}

func (m *Memory) DeleteChunks(ctx context.Context, assetID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chunks, assetID)
	return nil
}

// DeleteChunk removes a single chunk by sequence number. Not part of the
// ChunkStore contract; used by operational tooling and tests.
func (m *Memory) DeleteChunk(ctx context.Context, assetID primitive.ObjectID, seq int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byAsset := m.chunks[assetID]
	if _, ok := byAsset[seq]; !ok {
		return ErrNotFound
	}
	delete(byAsset, seq)
	return nil
}

type memoryChunkCursor struct {
	chunks []Chunk
	pos    int
	err    error
}

func (c *memoryChunkCursor) Next(ctx context.Context) bool {
	if c.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	if c.pos+1 >= len(c.chunks) {
		return false
	}
	c.pos++
	return true
}

func (c *memoryChunkCursor) Chunk() Chunk {
	return c.chunks[c.pos]
}

func (c *memoryChunkCursor) Err() error {
	return c.err
}

func (c *memoryChunkCursor) Close(ctx context.Context) error {
	return nil
}
