package utils

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GenerateETag derives a strong validator from a document id and its last
// update time. Times are compared at the store's millisecond precision.
func GenerateETag(id primitive.ObjectID, updatedAt time.Time) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s-%d", id.Hex(), updatedAt.UTC().UnixMilli())))
	return `"` + hex.EncodeToString(sum[:]) + `"`
}
