package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mwendwa/event-manager-go/integrity"
	"github.com/mwendwa/event-manager-go/models"
	"github.com/mwendwa/event-manager-go/storage"
)

// DefaultChunkSize bounds the memory held per chunk during uploads and
// downloads.
const DefaultChunkSize = 255 << 10

var (
	ErrNotFound      = errors.New("asset not found")
	ErrInvalidOwner  = errors.New("owner does not exist")
	ErrTruncated     = errors.New("asset is truncated")
	ErrNotReceiving  = errors.New("asset is not receiving chunks")
	ErrChunkTooLarge = errors.New("chunk exceeds configured chunk size")
	ErrChunkSequence = errors.New("chunk out of sequence")
	ErrEmptyChunk    = errors.New("empty chunk")
	ErrBadKind       = errors.New("unknown asset kind")
)

// Store manages binary assets as ordered chunk sequences. An asset moves
// receiving -> stored -> deleted; chunks are written by a single uploader
// at a time, reads may run concurrently with anything.
type Store struct {
	repo      storage.Repository
	chunks    storage.ChunkStore
	refs      *integrity.Validator
	chunkSize int
	log       *zerolog.Logger
}

func NewStore(repo storage.Repository, chunks storage.ChunkStore, refs *integrity.Validator, chunkSize int, log *zerolog.Logger) *Store {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Store{
		repo:      repo,
		chunks:    chunks,
		refs:      refs,
		chunkSize: chunkSize,
		log:       log,
	}
}

// ChunkSize reports the configured chunk payload bound.
func (s *Store) ChunkSize() int {
	return s.chunkSize
}

// ParseKind maps a request value onto an asset kind.
func ParseKind(value string) (models.AssetKind, error) {
	switch models.AssetKind(strings.ToLower(value)) {
	case models.AssetImage:
		return models.AssetImage, nil
	case models.AssetVideo:
		return models.AssetVideo, nil
	}
	return "", fmt.Errorf("%w: %q", ErrBadKind, value)
}

// BeginUpload validates the owner reference and creates the asset record
// in the receiving state. A malformed owner id fails with the validator's
// ErrMalformedID; an owner that does not resolve fails with
// ErrInvalidOwner.
func (s *Store) BeginUpload(ctx context.Context, ownerKind models.OwnerKind, ownerHex string, kind models.AssetKind, contentType string) (*models.Asset, error) {
	refKind, err := refKindFor(ownerKind)
	if err != nil {
		return nil, err
	}
	if kind != models.AssetImage && kind != models.AssetVideo {
		return nil, fmt.Errorf("%w: %q", ErrBadKind, kind)
	}
	ownerID, err := s.refs.Resolve(ctx, refKind, ownerHex, nil)
	if err != nil {
		if errors.Is(err, integrity.ErrNotFound) {
			return nil, ErrInvalidOwner
		}
		return nil, err
	}

	now := time.Now().UTC()
	asset := &models.Asset{
		ID:          primitive.NewObjectID(),
		OwnerKind:   ownerKind,
		OwnerID:     ownerID,
		Kind:        kind,
		Status:      models.AssetReceiving,
		ContentType: contentType,
		ChunkSize:   s.chunkSize,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, storage.Assets, asset); err != nil {
		return nil, fmt.Errorf("create asset record: %w", err)
	}
	s.log.Info().
		Str("asset_id", asset.ID.Hex()).
		Str("owner_kind", string(ownerKind)).
		Str("owner_id", ownerID.Hex()).
		Msg("upload started")
	return asset, nil
}

// WriteChunk appends one chunk. seq must equal the number of chunks
// written so far; uploads are strictly sequential per asset.
func (s *Store) WriteChunk(ctx context.Context, assetID primitive.ObjectID, seq int, data []byte) error {
	if len(data) == 0 {
		return ErrEmptyChunk
	}
	if len(data) > s.chunkSize {
		return fmt.Errorf("%w: %d bytes over %d", ErrChunkTooLarge, len(data), s.chunkSize)
	}
	var asset models.Asset
	if err := s.repo.FindByID(ctx, storage.Assets, assetID, &asset); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if asset.Status != models.AssetReceiving {
		return ErrNotReceiving
	}
	if seq != asset.ChunkCount {
		return fmt.Errorf("%w: got %d, want %d", ErrChunkSequence, seq, asset.ChunkCount)
	}
	if err := s.chunks.PutChunk(ctx, assetID, seq, data); err != nil {
		return fmt.Errorf("store chunk %d: %w", seq, err)
	}
	asset.ChunkCount++
	asset.Length += int64(len(data))
	asset.UpdatedAt = time.Now().UTC()
	if err := s.repo.Replace(ctx, storage.Assets, assetID, asset); err != nil {
		return fmt.Errorf("advance chunk count: %w", err)
	}
	return nil
}

// FinalizeUpload verifies the stored chunk sequence and moves the asset
// to stored, then back-references it from the owner's media list. The two
// writes are not atomic: if the owner vanished in between, the asset
// stays stored but unreferenced and the sweep reclaims it.
func (s *Store) FinalizeUpload(ctx context.Context, assetID primitive.ObjectID) (*models.Asset, error) {
	var asset models.Asset
	if err := s.repo.FindByID(ctx, storage.Assets, assetID, &asset); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if asset.Status != models.AssetReceiving {
		return nil, ErrNotReceiving
	}

	length, count, err := s.scanChunks(ctx, assetID)
	if err != nil {
		return nil, err
	}
	asset.Status = models.AssetStored
	asset.ChunkCount = count
	asset.Length = length
	asset.UpdatedAt = time.Now().UTC()
	if err := s.repo.Replace(ctx, storage.Assets, assetID, asset); err != nil {
		return nil, fmt.Errorf("commit asset record: %w", err)
	}

	if err := s.appendOwnerMedia(ctx, asset); err != nil {
		s.log.Error().Err(err).
			Str("asset_id", assetID.Hex()).
			Msg("asset stored but owner back-reference failed")
		return nil, fmt.Errorf("attach media to owner: %w", err)
	}
	s.log.Info().
		Str("asset_id", assetID.Hex()).
		Int("chunks", count).
		Int64("length", length).
		Msg("upload finalized")
	return &asset, nil
}

// Upload drives a whole begin/write/finalize cycle from r, slicing the
// stream into chunks of the configured size. On failure the partial asset
// stays in receiving until the sweep reclaims it.
func (s *Store) Upload(ctx context.Context, ownerKind models.OwnerKind, ownerHex string, kind models.AssetKind, contentType string, r io.Reader) (*models.Asset, error) {
	asset, err := s.BeginUpload(ctx, ownerKind, ownerHex, kind, contentType)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, s.chunkSize)
	seq := 0
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if werr := s.WriteChunk(ctx, asset.ID, seq, buf[:n]); werr != nil {
				return nil, werr
			}
			seq++
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read upload stream: %w", err)
		}
	}
	return s.FinalizeUpload(ctx, asset.ID)
}

// OpenDownload opens a stored asset for reading. The chunk count is
// checked against the record up front; a gap discovered mid-stream
// surfaces as ErrTruncated from Read, never as a short body.
func (s *Store) OpenDownload(ctx context.Context, assetID primitive.ObjectID) (*Download, error) {
	var asset models.Asset
	if err := s.repo.FindByID(ctx, storage.Assets, assetID, &asset); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if asset.Status != models.AssetStored {
		return nil, ErrNotFound
	}
	count, err := s.chunks.CountChunks(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if count != int64(asset.ChunkCount) {
		return nil, fmt.Errorf("%w: have %d chunks, want %d", ErrTruncated, count, asset.ChunkCount)
	}
	cursor, err := s.chunks.OpenChunks(ctx, assetID)
	if err != nil {
		return nil, err
	}
	return &Download{Asset: asset, cursor: cursor, ctx: ctx}, nil
}

// Delete removes the chunks and then the record. Chunks go first so a
// partial failure leaves a record behind to retry against, never
// unreachable bytes. The owner's media list is left alone; the sweep
// prunes dangling entries.
func (s *Store) Delete(ctx context.Context, assetID primitive.ObjectID) error {
	var asset models.Asset
	if err := s.repo.FindByID(ctx, storage.Assets, assetID, &asset); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := s.chunks.DeleteChunks(ctx, assetID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if err := s.repo.Delete(ctx, storage.Assets, assetID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	s.log.Info().Str("asset_id", assetID.Hex()).Msg("asset deleted")
	return nil
}

// ListOwned returns every asset record owned by the given entity,
// receiving ones included.
func (s *Store) ListOwned(ctx context.Context, ownerKind models.OwnerKind, ownerID primitive.ObjectID) ([]models.Asset, error) {
	var owned []models.Asset
	filter := map[string]any{"owner_kind": ownerKind, "owner_id": ownerID}
	if err := s.repo.List(ctx, storage.Assets, filter, &owned); err != nil {
		return nil, err
	}
	return owned, nil
}

// DeleteOwned removes every asset owned by an entity. Used when the owner
// document itself is deleted.
func (s *Store) DeleteOwned(ctx context.Context, ownerKind models.OwnerKind, ownerID primitive.ObjectID) (int, error) {
	owned, err := s.ListOwned(ctx, ownerKind, ownerID)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, asset := range owned {
		if err := s.Delete(ctx, asset.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func (s *Store) scanChunks(ctx context.Context, assetID primitive.ObjectID) (int64, int, error) {
	cursor, err := s.chunks.OpenChunks(ctx, assetID)
	if err != nil {
		return 0, 0, err
	}
	defer cursor.Close(ctx)

	var length int64
	next := 0
	for cursor.Next(ctx) {
		chunk := cursor.Chunk()
		if chunk.Seq != next {
			return 0, 0, fmt.Errorf("%w: chunk %d missing", ErrTruncated, next)
		}
		length += int64(len(chunk.Data))
		next++
	}
	if err := cursor.Err(); err != nil {
		return 0, 0, err
	}
	return length, next, nil
}

func (s *Store) appendOwnerMedia(ctx context.Context, asset models.Asset) error {
	hex := asset.ID.Hex()
	switch asset.OwnerKind {
	case models.OwnerEvent:
		var event models.Event
		if err := s.repo.FindByID(ctx, storage.Events, asset.OwnerID, &event); err != nil {
			return err
		}
		if containsString(event.Media, hex) {
			return nil
		}
		event.Media = append(event.Media, hex)
		event.UpdatedAt = time.Now().UTC()
		return s.repo.Replace(ctx, storage.Events, asset.OwnerID, event)
	case models.OwnerVenue:
		var venue models.Venue
		if err := s.repo.FindByID(ctx, storage.Venues, asset.OwnerID, &venue); err != nil {
			return err
		}
		if containsString(venue.Media, hex) {
			return nil
		}
		venue.Media = append(venue.Media, hex)
		venue.UpdatedAt = time.Now().UTC()
		return s.repo.Replace(ctx, storage.Venues, asset.OwnerID, venue)
	}
	return fmt.Errorf("unknown owner kind %q", asset.OwnerKind)
}

func refKindFor(kind models.OwnerKind) (integrity.Kind, error) {
	switch kind {
	case models.OwnerVenue:
		return integrity.KindVenue, nil
	case models.OwnerEvent:
		return integrity.KindEvent, nil
	}
	return "", fmt.Errorf("unknown owner kind %q", kind)
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
