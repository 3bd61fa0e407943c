package storage

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo backs Repository and ChunkStore with a single database handle.
type Mongo struct {
	db *mongo.Database
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{db: db}
}

func (m *Mongo) FindByID(ctx context.Context, collection string, id primitive.ObjectID, out any) error {
	err := m.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func (m *Mongo) Insert(ctx context.Context, collection string, doc any) error {
	_, err := m.db.Collection(collection).InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateID
	}
	return err
}

func (m *Mongo) Replace(ctx context.Context, collection string, id primitive.ObjectID, doc any) error {
	res, err := m.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) Delete(ctx context.Context, collection string, id primitive.ObjectID) error {
	res, err := m.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) List(ctx context.Context, collection string, filter map[string]any, out any) error {
	if filter == nil {
		filter = bson.M{}
	}
	cursor, err := m.db.Collection(collection).Find(ctx, bson.M(filter))
	if err != nil {
		return err
	}
	return cursor.All(ctx, out)
}

func (m *Mongo) Count(ctx context.Context, collection string, filter map[string]any) (int64, error) {
	if filter == nil {
		filter = bson.M{}
	}
	return m.db.Collection(collection).CountDocuments(ctx, bson.M(filter))
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.db.Client().Ping(ctx, nil)
}

// ---------------- CHUNKS ----------------

func (m *Mongo) PutChunk(ctx context.Context, assetID primitive.ObjectID, seq int, data []byte) error {
	chunk := Chunk{
		ID:      primitive.NewObjectID(),
		AssetID: assetID,
		Seq:     seq,
		Data:    data,
	}
	_, err := m.db.Collection(Chunks).InsertOne(ctx, chunk)
	return err
}

func (m *Mongo) OpenChunks(ctx context.Context, assetID primitive.ObjectID) (ChunkCursor, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	cursor, err := m.db.Collection(Chunks).Find(ctx, bson.M{"asset_id": assetID}, opts)
	if err != nil {
		return nil, err
	}
	return &mongoChunkCursor{cur: cursor}, nil
}

func (m *Mongo) CountChunks(ctx context.Context, assetID primitive.ObjectID) (int64, error) {
	return m.db.Collection(Chunks).CountDocuments(ctx, bson.M{"asset_id": assetID})
}

func (m *Mongo) DeleteChunks(ctx context.Context, assetID primitive.ObjectID) error {
	_, err := m.db.Collection(Chunks).DeleteMany(ctx, bson.M{"asset_id": assetID})
	return err
}

// DeleteChunk removes a single chunk by sequence number. Not part of the
// ChunkStore contract; used by operational tooling and tests.
func (m *Mongo) DeleteChunk(ctx context.Context, assetID primitive.ObjectID, seq int) error {
	res, err := m.db.Collection(Chunks).DeleteOne(ctx, bson.M{"asset_id": assetID, "seq": seq})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

type mongoChunkCursor struct {
	cur   *mongo.Cursor
	chunk Chunk
	err   error
}

func (c *mongoChunkCursor) Next(ctx context.Context) bool {
	if c.err != nil {
		return false
	}
	if !c.cur.Next(ctx) {
		return false
	}
	c.err = c.cur.Decode(&c.chunk)
	return c.err == nil
}

func (c *mongoChunkCursor) Chunk() Chunk {
	return c.chunk
}

func (c *mongoChunkCursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.cur.Err()
}

func (c *mongoChunkCursor) Close(ctx context.Context) error {
	return c.cur.Close(ctx)
}
