package integrity

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mwendwa/event-manager-go/storage"
)

// Kind names a referenceable entity type.
type Kind string

const (
	KindVenue    Kind = "venue"
	KindEvent    Kind = "event"
	KindAttendee Kind = "attendee"
)

var (
	ErrMalformedID = errors.New("malformed id")
	ErrNotFound    = errors.New("referenced document not found")
	ErrUnknownKind = errors.New("unknown reference kind")
)

// RefError names the request field holding the reference that failed.
type RefError struct {
	Field string
	Err   error
}

func (e *RefError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *RefError) Unwrap() error { return e.Err }

// Ref is one candidate reference to validate.
type Ref struct {
	Field string
	Kind  Kind
	ID    string
	Out   any
}

// Validator resolves candidate references against the document store.
// It holds no cache: every call re-reads, so a document deleted between
// two writes fails resolution on the second write. Read-only and safe
// for concurrent use.
type Validator struct {
	repo storage.Repository
}

func NewValidator(repo storage.Repository) *Validator {
	return &Validator{repo: repo}
}

// Resolve checks a single candidate id. A syntactically invalid id fails
// with ErrMalformedID before any store lookup. When out is non-nil the
// referenced document is decoded into it.
func (v *Validator) Resolve(ctx context.Context, kind Kind, hexID string, out any) (primitive.ObjectID, error) {
	col, err := collectionFor(kind)
	if err != nil {
		return primitive.NilObjectID, err
	}
	id, err := primitive.ObjectIDFromHex(hexID)
	if err != nil {
		return primitive.NilObjectID, ErrMalformedID
	}
	if out == nil {
		out = &bson.M{}
	}
	if err := v.repo.FindByID(ctx, col, id, out); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return primitive.NilObjectID, ErrNotFound
		}
		return primitive.NilObjectID, fmt.Errorf("resolve %s %s: %w", kind, hexID, err)
	}
	return id, nil
}

// ResolveAll validates refs in argument order and fails fast. The returned
// *RefError names the first failing field, so a request with several bad
// references always reports the same one.
func (v *Validator) ResolveAll(ctx context.Context, refs ...Ref) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, len(refs))
	for _, ref := range refs {
		id, err := v.Resolve(ctx, ref.Kind, ref.ID, ref.Out)
		if err != nil {
			return nil, &RefError{Field: ref.Field, Err: err}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func collectionFor(kind Kind) (string, error) {
	switch kind {
	case KindVenue:
		return storage.Venues, nil
	case KindEvent:
		return storage.Events, nil
	case KindAttendee:
		return storage.Attendees, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
