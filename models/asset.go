package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AssetKind string

const (
	AssetImage AssetKind = "image"
	AssetVideo AssetKind = "video"
)

type AssetStatus string

const (
	AssetReceiving AssetStatus = "receiving"
	AssetStored    AssetStatus = "stored"
)

type OwnerKind string

const (
	OwnerVenue OwnerKind = "venue"
	OwnerEvent OwnerKind = "event"
)

type Asset struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerKind   OwnerKind          `bson:"owner_kind" json:"owner_kind"`
	OwnerID     primitive.ObjectID `bson:"owner_id" json:"owner_id"`
	Kind        AssetKind          `bson:"kind" json:"kind"`
	Status      AssetStatus        `bson:"status" json:"status"` // receiving, stored
	ContentType string             `bson:"content_type,omitempty" json:"content_type,omitempty"`
	ChunkSize   int                `bson:"chunk_size" json:"chunk_size"`
	ChunkCount  int                `bson:"chunk_count" json:"chunk_count"`
	Length      int64              `bson:"length" json:"length"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}
