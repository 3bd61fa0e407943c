package assets

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mwendwa/event-manager-go/integrity"
	"github.com/mwendwa/event-manager-go/models"
	"github.com/mwendwa/event-manager-go/storage"
)

const testChunkSize = 16

func newTestStore(t *testing.T) (*Store, *storage.Memory) {
	t.Helper()
	mem := storage.NewMemory()
	log := zerolog.Nop()
	store := NewStore(mem, mem, integrity.NewValidator(mem), testChunkSize, &log)
	return store, mem
}

func seedVenue(t *testing.T, repo storage.Repository) models.Venue {
	t.Helper()
	venue := models.Venue{ID: primitive.NewObjectID(), Name: "Hall", Capacity: 100, Media: []string{}}
	require.NoError(t, repo.Insert(context.Background(), storage.Venues, venue))
	return venue
}

func seedEvent(t *testing.T, repo storage.Repository, venueID primitive.ObjectID) models.Event {
	t.Helper()
	event := models.Event{ID: primitive.NewObjectID(), VenueRef: venueID, Name: "Launch", MaxAttendees: 50, Media: []string{}}
	require.NoError(t, repo.Insert(context.Background(), storage.Events, event))
	return event
}

func payload(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i % 251)
	}
	return p
}

func TestNewStore_DefaultChunkSize(t *testing.T) {
	mem := storage.NewMemory()
	log := zerolog.Nop()
	store := NewStore(mem, mem, integrity.NewValidator(mem), 0, &log)
	assert.Equal(t, DefaultChunkSize, store.ChunkSize())
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind("image")
	require.NoError(t, err)
	assert.Equal(t, models.AssetImage, kind)

	kind, err = ParseKind("VIDEO")
	require.NoError(t, err)
	assert.Equal(t, models.AssetVideo, kind)

	_, err = ParseKind("audio")
	assert.ErrorIs(t, err, ErrBadKind)
}

// Uploads of one, a few and many chunks come back byte for byte.
func TestUpload_RoundTrip(t *testing.T) {
	for _, chunks := range []int{1, 5, 100} {
		store, mem := newTestStore(t)
		ctx := context.Background()
		venue := seedVenue(t, mem)

		// One partial final chunk, so the length is not chunk-aligned.
		data := payload(chunks*testChunkSize - 3)

		asset, err := store.Upload(ctx, models.OwnerVenue, venue.ID.Hex(), models.AssetImage, "image/png", bytes.NewReader(data))
		require.NoError(t, err, "%d chunks", chunks)
		assert.Equal(t, models.AssetStored, asset.Status)
		assert.Equal(t, chunks, asset.ChunkCount)
		assert.Equal(t, int64(len(data)), asset.Length)

		dl, err := store.OpenDownload(ctx, asset.ID)
		require.NoError(t, err)
		got, err := io.ReadAll(dl)
		require.NoError(t, err)
		require.NoError(t, dl.Close())
		assert.True(t, bytes.Equal(data, got), "%d chunks: body mismatch", chunks)
	}
}

func TestUpload_ChunkAlignedLength(t *testing.T) {
	store, mem := newTestStore(t)
	ctx := context.Background()
	venue := seedVenue(t, mem)

	data := payload(3 * testChunkSize)
	asset, err := store.Upload(ctx, models.OwnerVenue, venue.ID.Hex(), models.AssetImage, "image/png", bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 3, asset.ChunkCount)

	dl, err := store.OpenDownload(ctx, asset.ID)
	require.NoError(t, err)
	defer dl.Close()
	got, err := io.ReadAll(dl)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got))
}

func TestBeginUpload_MalformedOwner(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.BeginUpload(context.Background(), models.OwnerVenue, "not-hex", models.AssetImage, "")
	assert.ErrorIs(t, err, integrity.ErrMalformedID)
}

func TestBeginUpload_MissingOwner(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.BeginUpload(context.Background(), models.OwnerVenue, primitive.NewObjectID().Hex(), models.AssetImage, "")
	assert.ErrorIs(t, err, ErrInvalidOwner)
}

func TestBeginUpload_BadKind(t *testing.T) {
	store, mem := newTestStore(t)
	venue := seedVenue(t, mem)
	_, err := store.BeginUpload(context.Background(), models.OwnerVenue, venue.ID.Hex(), models.AssetKind("gif"), "")
	assert.ErrorIs(t, err, ErrBadKind)
}

func TestWriteChunk_Validation(t *testing.T) {
	store, mem := newTestStore(t)
	ctx := context.Background()
	venue := seedVenue(t, mem)

	asset, err := store.BeginUpload(ctx, models.OwnerVenue, venue.ID.Hex(), models.AssetImage, "")
	require.NoError(t, err)

	assert.ErrorIs(t, store.WriteChunk(ctx, asset.ID, 0, nil), ErrEmptyChunk)
	assert.ErrorIs(t, store.WriteChunk(ctx, asset.ID, 0, payload(testChunkSize+1)), ErrChunkTooLarge)
	assert.ErrorIs(t, store.WriteChunk(ctx, primitive.NewObjectID(), 0, payload(4)), ErrNotFound)

	// Appends are strictly sequential.
	assert.ErrorIs(t, store.WriteChunk(ctx, asset.ID, 1, payload(4)), ErrChunkSequence)
	require.NoError(t, store.WriteChunk(ctx, asset.ID, 0, payload(4)))
	assert.ErrorIs(t, store.WriteChunk(ctx, asset.ID, 0, payload(4)), ErrChunkSequence)
	assert.ErrorIs(t, store.WriteChunk(ctx, asset.ID, 2, payload(4)), ErrChunkSequence)
	require.NoError(t, store.WriteChunk(ctx, asset.ID, 1, payload(4)))
}

func TestWriteChunk_AfterFinalize(t *testing.T) {
	store, mem := newTestStore(t)
	ctx := context.Background()
	venue := seedVenue(t, mem)

	asset, err := store.BeginUpload(ctx, models.OwnerVenue, venue.ID.Hex(), models.AssetImage, "")
	require.NoError(t, err)
	require.NoError(t, store.WriteChunk(ctx, asset.ID, 0, payload(4)))
	_, err = store.FinalizeUpload(ctx, asset.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, store.WriteChunk(ctx, asset.ID, 1, payload(4)), ErrNotReceiving)
}

func TestFinalizeUpload_Twice(t *testing.T) {
	store, mem := newTestStore(t)
	ctx := context.Background()
	venue := seedVenue(t, mem)

	asset, err := store.BeginUpload(ctx, models.OwnerVenue, venue.ID.Hex(), models.AssetImage, "")
	require.NoError(t, err)
	require.NoError(t, store.WriteChunk(ctx, asset.ID, 0, payload(4)))

	_, err = store.FinalizeUpload(ctx, asset.ID)
	require.NoError(t, err)
	_, err = store.FinalizeUpload(ctx, asset.ID)
	assert.ErrorIs(t, err, ErrNotReceiving)
}

// An upload finalized with no chunks is a valid empty asset.
func TestFinalizeUpload_EmptyAsset(t *testing.T) {
	store, mem := newTestStore(t)
	ctx := context.Background()
	venue := seedVenue(t, mem)

	begun, err := store.BeginUpload(ctx, models.OwnerVenue, venue.ID.Hex(), models.AssetImage, "")
	require.NoError(t, err)
	asset, err := store.FinalizeUpload(ctx, begun.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssetStored, asset.Status)
	assert.Zero(t, asset.ChunkCount)
	assert.Zero(t, asset.Length)

	dl, err := store.OpenDownload(ctx, asset.ID)
	require.NoError(t, err)
	defer dl.Close()
	got, err := io.ReadAll(dl)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// A sequence gap at finalize time keeps the asset in receiving; it is
// never committed truncated.
func TestFinalizeUpload_GapStaysReceiving(t *testing.T) {
	store, mem := newTestStore(t)
	ctx := context.Background()
	venue := seedVenue(t, mem)

	asset, err := store.BeginUpload(ctx, models.OwnerVenue, venue.ID.Hex(), models.AssetImage, "")
	require.NoError(t, err)
	for seq := 0; seq < 3; seq++ {
		require.NoError(t, store.WriteChunk(ctx, asset.ID, seq, payload(testChunkSize)))
	}
	require.NoError(t, mem.DeleteChunk(ctx, asset.ID, 1))

	_, err = store.FinalizeUpload(ctx, asset.ID)
	assert.ErrorIs(t, err, ErrTruncated)

	var got models.Asset
	require.NoError(t, mem.FindByID(ctx, storage.Assets, asset.ID, &got))
	assert.Equal(t, models.AssetReceiving, got.Status)
}

func TestOpenDownload_NotStored(t *testing.T) {
	store, mem := newTestStore(t)
	ctx := context.Background()
	venue := seedVenue(t, mem)

	asset, err := store.BeginUpload(ctx, models.OwnerVenue, venue.ID.Hex(), models.AssetImage, "")
	require.NoError(t, err)

	// Still receiving: not downloadable.
	_, err = store.OpenDownload(ctx, asset.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.OpenDownload(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenDownload_MissingChunkDetectedAtOpen(t *testing.T) {
	store, mem := newTestStore(t)
	ctx := context.Background()
	venue := seedVenue(t, mem)

	asset, err := store.Upload(ctx, models.OwnerVenue, venue.ID.Hex(), models.AssetImage, "", bytes.NewReader(payload(3*testChunkSize)))
	require.NoError(t, err)
	require.NoError(t, mem.DeleteChunk(ctx, asset.ID, 1))

	_, err = store.OpenDownload(ctx, asset.ID)
	assert.ErrorIs(t, err, ErrTruncated)
}

// When the chunk count still matches but a sequence number is missing, the
// gap surfaces as ErrTruncated mid-read, never as a silently short body.
func TestDownload_SequenceGapMidStream(t *testing.T) {
	store, mem := newTestStore(t)
	ctx := context.Background()
	venue := seedVenue(t, mem)

	asset, err := store.Upload(ctx, models.OwnerVenue, venue.ID.Hex(), models.AssetImage, "", bytes.NewReader(payload(3*testChunkSize)))
	require.NoError(t, err)

	// Remove chunk 1 and plant a stray one so the count check passes.
	require.NoError(t, mem.DeleteChunk(ctx, asset.ID, 1))
	require.NoError(t, mem.PutChunk(ctx, asset.ID, 9, payload(testChunkSize)))

	dl, err := store.OpenDownload(ctx, asset.ID)
	require.NoError(t, err)
	defer dl.Close()

	_, err = io.ReadAll(dl)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDelete_RemovesRecordAndChunks(t *testing.T) {
	store, mem := newTestStore(t)
	ctx := context.Background()
	venue := seedVenue(t, mem)

	asset, err := store.Upload(ctx, models.OwnerVenue, venue.ID.Hex(), models.AssetImage, "", bytes.NewReader(payload(2*testChunkSize)))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, asset.ID))

	_, err = store.OpenDownload(ctx, asset.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := mem.CountChunks(ctx, asset.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.ErrorIs(t, store.Delete(ctx, asset.ID), ErrNotFound)
}

// A download opened before the delete sees a consistent snapshot.
func TestDelete_DuringOpenDownload(t *testing.T) {
	store, mem := newTestStore(t)
	ctx := context.Background()
	venue := seedVenue(t, mem)

	data := payload(3 * testChunkSize)
	asset, err := store.Upload(ctx, models.OwnerVenue, venue.ID.Hex(), models.AssetImage, "", bytes.NewReader(data))
	require.NoError(t, err)

	dl, err := store.OpenDownload(ctx, asset.ID)
	require.NoError(t, err)
	defer dl.Close()

	// Read part of the body, delete the asset, then finish the read.
	head := make([]byte, testChunkSize)
	_, err = io.ReadFull(dl, head)
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, asset.ID))

	tail, err := io.ReadAll(dl)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, append(head, tail...)))
}

func TestFinalizeUpload_AppendsOwnerMedia(t *testing.T) {
	store, mem := newTestStore(t)
	ctx := context.Background()
	venue := seedVenue(t, mem)
	event := seedEvent(t, mem, venue.ID)

	venueAsset, err := store.Upload(ctx, models.OwnerVenue, venue.ID.Hex(), models.AssetImage, "", bytes.NewReader(payload(4)))
	require.NoError(t, err)
	eventAsset, err := store.Upload(ctx, models.OwnerEvent, event.ID.Hex(), models.AssetVideo, "", bytes.NewReader(payload(4)))
	require.NoError(t, err)

	var gotVenue models.Venue
	require.NoError(t, mem.FindByID(ctx, storage.Venues, venue.ID, &gotVenue))
	assert.Equal(t, []string{venueAsset.ID.Hex()}, gotVenue.Media)

	var gotEvent models.Event
	require.NoError(t, mem.FindByID(ctx, storage.Events, event.ID, &gotEvent))
	assert.Equal(t, []string{eventAsset.ID.Hex()}, gotEvent.Media)
}

// If the owner vanishes between begin and finalize, the asset commits as
// stored but unreferenced; reclaiming it is the sweep's job.
func TestFinalizeUpload_OwnerDeletedLeavesOrphan(t *testing.T) {
	store, mem := newTestStore(t)
	ctx := context.Background()
	venue := seedVenue(t, mem)

	asset, err := store.BeginUpload(ctx, models.OwnerVenue, venue.ID.Hex(), models.AssetImage, "")
	require.NoError(t, err)
	require.NoError(t, store.WriteChunk(ctx, asset.ID, 0, payload(4)))
	require.NoError(t, mem.Delete(ctx, storage.Venues, venue.ID))

	_, err = store.FinalizeUpload(ctx, asset.ID)
	require.Error(t, err)

	var got models.Asset
	require.NoError(t, mem.FindByID(ctx, storage.Assets, asset.ID, &got))
	assert.Equal(t, models.AssetStored, got.Status)
}

func TestListOwned(t *testing.T) {
	store, mem := newTestStore(t)
	ctx := context.Background()
	venue := seedVenue(t, mem)
	other := seedVenue(t, mem)

	first, err := store.Upload(ctx, models.OwnerVenue, venue.ID.Hex(), models.AssetImage, "", bytes.NewReader(payload(4)))
	require.NoError(t, err)
	second, err := store.Upload(ctx, models.OwnerVenue, venue.ID.Hex(), models.AssetVideo, "", bytes.NewReader(payload(4)))
	require.NoError(t, err)
	_, err = store.Upload(ctx, models.OwnerVenue, other.ID.Hex(), models.AssetImage, "", bytes.NewReader(payload(4)))
	require.NoError(t, err)

	owned, err := store.ListOwned(ctx, models.OwnerVenue, venue.ID)
	require.NoError(t, err)
	require.Len(t, owned, 2)
	assert.Equal(t, first.ID, owned[0].ID)
	assert.Equal(t, second.ID, owned[1].ID)
}

func TestDeleteOwned(t *testing.T) {
	store, mem := newTestStore(t)
	ctx := context.Background()
	venue := seedVenue(t, mem)

	var ids []primitive.ObjectID
	for i := 0; i < 3; i++ {
		asset, err := store.Upload(ctx, models.OwnerVenue, venue.ID.Hex(), models.AssetImage, "", bytes.NewReader(payload(4)))
		require.NoError(t, err)
		ids = append(ids, asset.ID)
	}

	deleted, err := store.DeleteOwned(ctx, models.OwnerVenue, venue.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	for _, id := range ids {
		_, err := store.OpenDownload(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound)
	}
}

// Reads across chunk boundaries with a buffer smaller than the chunk size
// still produce the exact byte sequence.
func TestDownload_SmallReads(t *testing.T) {
	store, mem := newTestStore(t)
	ctx := context.Background()
	venue := seedVenue(t, mem)

	data := payload(2*testChunkSize + 5)
	asset, err := store.Upload(ctx, models.OwnerVenue, venue.ID.Hex(), models.AssetImage, "", bytes.NewReader(data))
	require.NoError(t, err)

	dl, err := store.OpenDownload(ctx, asset.ID)
	require.NoError(t, err)
	defer dl.Close()

	var got []byte
	buf := make([]byte, 7)
	for {
		n, err := dl.Read(buf)
		got = append(got, buf[:n]...)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	assert.True(t, bytes.Equal(data, got))
}
