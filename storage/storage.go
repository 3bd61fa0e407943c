package storage

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Collection names shared by every backend.
const (
	Venues    = "venues"
	Events    = "events"
	Attendees = "attendees"
	Bookings  = "bookings"
	Assets    = "assets"
	Chunks    = "chunks"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrDuplicateID = errors.New("duplicate document id")
)

// Repository is the uniform document contract. IDs are allocated by the
// caller with primitive.NewObjectID before Insert. Filters are exact-match
// field comparisons only.
type Repository interface {
	FindByID(ctx context.Context, collection string, id primitive.ObjectID, out any) error
	Insert(ctx context.Context, collection string, doc any) error
	Replace(ctx context.Context, collection string, id primitive.ObjectID, doc any) error
	Delete(ctx context.Context, collection string, id primitive.ObjectID) error
	List(ctx context.Context, collection string, filter map[string]any, out any) error
	Count(ctx context.Context, collection string, filter map[string]any) (int64, error)
	Ping(ctx context.Context) error
}

// Chunk is one ordered slice of an asset's bytes.
type Chunk struct {
	ID      primitive.ObjectID `bson:"_id,omitempty"`
	AssetID primitive.ObjectID `bson:"asset_id"`
	Seq     int                `bson:"seq"`
	Data    []byte             `bson:"data"`
}

// ChunkStore persists asset chunks. A chunk is durable once PutChunk
// returns. OpenChunks yields chunks in ascending seq order; it does not
// verify contiguity, that is the asset store's job.
type ChunkStore interface {
	PutChunk(ctx context.Context, assetID primitive.ObjectID, seq int, data []byte) error
	OpenChunks(ctx context.Context, assetID primitive.ObjectID) (ChunkCursor, error)
	CountChunks(ctx context.Context, assetID primitive.ObjectID) (int64, error)
	DeleteChunks(ctx context.Context, assetID primitive.ObjectID) error
}

// ChunkCursor iterates chunks one at a time so downloads never buffer a
// whole asset.
type ChunkCursor interface {
	Next(ctx context.Context) bool
	Chunk() Chunk
	Err() error
	Close(ctx context.Context) error
}
