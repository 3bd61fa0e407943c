package workers

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mwendwa/event-manager-go/assets"
	"github.com/mwendwa/event-manager-go/metrics"
	"github.com/mwendwa/event-manager-go/models"
	"github.com/mwendwa/event-manager-go/storage"
)

// Sweeper reconciles the asset store against owner documents. It removes
// stored assets no owner references (the finalize back-reference is not
// atomic), abandons half-finished uploads, and prunes media entries that
// point at no asset. Records younger than the grace window are left
// alone so in-flight uploads are never swept.
type Sweeper struct {
	repo     storage.Repository
	store    *assets.Store
	metrics  *metrics.Metrics
	interval time.Duration
	grace    time.Duration
	log      *zerolog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewSweeper(repo storage.Repository, store *assets.Store, m *metrics.Metrics, interval, grace time.Duration, log *zerolog.Logger) *Sweeper {
	return &Sweeper{
		repo:     repo,
		store:    store,
		metrics:  m,
		interval: interval,
		grace:    grace,
		log:      log,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the sweep loop until the context is canceled or Stop is
// called. Run it on its own goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	s.log.Info().
		Dur("interval", s.interval).
		Dur("grace", s.grace).
		Msg("maintenance sweep started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.doneCh)

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("maintenance sweep stopped by context")
			return
		case <-s.stopCh:
			s.log.Info().Msg("maintenance sweep stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.log.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

func (s *Sweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// Sweep runs one reconciliation pass and reports how many records it
// removed or pruned.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	removed := 0

	var all []models.Asset
	if err := s.repo.List(ctx, storage.Assets, nil, &all); err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-s.grace)
	for _, asset := range all {
		if asset.UpdatedAt.After(cutoff) {
			continue
		}
		switch asset.Status {
		case models.AssetReceiving:
			// Upload abandoned mid-flight.
			if err := s.store.Delete(ctx, asset.ID); err != nil && !errors.Is(err, assets.ErrNotFound) {
				s.log.Warn().Err(err).Str("asset_id", asset.ID.Hex()).Msg("could not remove abandoned upload")
				continue
			}
			s.metrics.SweepRemovalsTotal.WithLabelValues("abandoned").Inc()
			s.log.Info().Str("asset_id", asset.ID.Hex()).Msg("removed abandoned upload")
			removed++
		case models.AssetStored:
			orphaned, err := s.isOrphan(ctx, asset)
			if err != nil {
				s.log.Warn().Err(err).Str("asset_id", asset.ID.Hex()).Msg("could not check asset owner")
				continue
			}
			if !orphaned {
				continue
			}
			if err := s.store.Delete(ctx, asset.ID); err != nil && !errors.Is(err, assets.ErrNotFound) {
				s.log.Warn().Err(err).Str("asset_id", asset.ID.Hex()).Msg("could not remove orphaned asset")
				continue
			}
			s.metrics.SweepRemovalsTotal.WithLabelValues("orphan").Inc()
			s.log.Info().Str("asset_id", asset.ID.Hex()).Msg("removed orphaned asset")
			removed++
		}
	}

	pruned, err := s.pruneDanglingMedia(ctx)
	if err != nil {
		return removed, err
	}
	return removed + pruned, nil
}

// isOrphan reports whether a stored asset's owner is gone or no longer
// lists it.
func (s *Sweeper) isOrphan(ctx context.Context, asset models.Asset) (bool, error) {
	var media []string
	switch asset.OwnerKind {
	case models.OwnerEvent:
		var event models.Event
		if err := s.repo.FindByID(ctx, storage.Events, asset.OwnerID, &event); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return true, nil
			}
			return false, err
		}
		media = event.Media
	case models.OwnerVenue:
		var venue models.Venue
		if err := s.repo.FindByID(ctx, storage.Venues, asset.OwnerID, &venue); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return true, nil
			}
			return false, err
		}
		media = venue.Media
	default:
		return false, nil
	}

	hex := asset.ID.Hex()
	for _, entry := range media {
		if entry == hex {
			return false, nil
		}
	}
	return true, nil
}

// pruneDanglingMedia drops owner media entries whose asset record no
// longer exists. Deleting an asset leaves the owner untouched on
// purpose; this is where the mirror side gets cleaned.
func (s *Sweeper) pruneDanglingMedia(ctx context.Context) (int, error) {
	pruned := 0

	var venues []models.Venue
	if err := s.repo.List(ctx, storage.Venues, nil, &venues); err != nil {
		return pruned, err
	}
	for _, venue := range venues {
		kept, dropped := s.liveMedia(ctx, venue.Media)
		if dropped == 0 {
			continue
		}
		venue.Media = kept
		venue.UpdatedAt = time.Now().UTC()
		if err := s.repo.Replace(ctx, storage.Venues, venue.ID, venue); err != nil {
			s.log.Warn().Err(err).Str("venue_id", venue.ID.Hex()).Msg("could not prune media entries")
			continue
		}
		s.metrics.SweepRemovalsTotal.WithLabelValues("dangling_ref").Add(float64(dropped))
		pruned += dropped
	}

	var events []models.Event
	if err := s.repo.List(ctx, storage.Events, nil, &events); err != nil {
		return pruned, err
	}
	for _, event := range events {
		kept, dropped := s.liveMedia(ctx, event.Media)
		if dropped == 0 {
			continue
		}
		event.Media = kept
		event.UpdatedAt = time.Now().UTC()
		if err := s.repo.Replace(ctx, storage.Events, event.ID, event); err != nil {
			s.log.Warn().Err(err).Str("event_id", event.ID.Hex()).Msg("could not prune media entries")
			continue
		}
		s.metrics.SweepRemovalsTotal.WithLabelValues("dangling_ref").Add(float64(dropped))
		pruned += dropped
	}

	return pruned, nil
}

// liveMedia keeps the entries whose asset record still exists. Entries
// are kept on lookup failure; pruning only acts on certainty.
func (s *Sweeper) liveMedia(ctx context.Context, media []string) ([]string, int) {
	kept := make([]string, 0, len(media))
	dropped := 0
	for _, entry := range media {
		id, err := primitive.ObjectIDFromHex(entry)
		if err != nil {
			dropped++
			continue
		}
		var asset models.Asset
		err = s.repo.FindByID(ctx, storage.Assets, id, &asset)
		if errors.Is(err, storage.ErrNotFound) {
			dropped++
			continue
		}
		kept = append(kept, entry)
	}
	return kept, dropped
}
