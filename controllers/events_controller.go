package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mwendwa/event-manager-go/assets"
	"github.com/mwendwa/event-manager-go/integrity"
	"github.com/mwendwa/event-manager-go/models"
	"github.com/mwendwa/event-manager-go/storage"
	"github.com/mwendwa/event-manager-go/utils"
	"github.com/mwendwa/event-manager-go/validators"
)

// ---------------- CREATE ----------------
func CreateEvent(repo storage.Repository, refs *integrity.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Name         string    `json:"name" validate:"required"`
			Description  string    `json:"description"`
			Date         time.Time `json:"date" validate:"required"`
			MaxAttendees int       `json:"max_attendees" validate:"required,gt=0"`
			VenueRef     string    `json:"venue_ref" validate:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := validators.Validate(c, input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		// --- Resolve references before writing anything ---
		ids, err := refs.ResolveAll(ctx, integrity.Ref{Field: "venue_ref", Kind: integrity.KindVenue, ID: input.VenueRef})
		if err != nil {
			referenceErrorResponse(c, err)
			return
		}

		now := time.Now().UTC()
		event := models.Event{
			ID:           primitive.NewObjectID(),
			VenueRef:     ids[0],
			Name:         input.Name,
			Description:  input.Description,
			Date:         input.Date,
			MaxAttendees: input.MaxAttendees,
			Media:        []string{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := repo.Insert(ctx, storage.Events, event); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create event"})
			return
		}

		c.JSON(http.StatusCreated, event)
	}
}

// ---------------- LIST ----------------
func ListEvents(repo storage.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// --- Build filter ---
		filter := map[string]any{}
		if q := c.Query("venue_id"); q != "" {
			venueID, err := primitive.ObjectIDFromHex(q)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid venue id"})
				return
			}
			filter["venue_ref"] = venueID
		}

		var events []models.Event
		if err := repo.List(ctx, storage.Events, filter, &events); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch events"})
			return
		}

		if len(events) == 0 {
			c.JSON(http.StatusOK, []models.Event{})
			return
		}

		// --- Pick the most recently updated event ---
		latest := events[0]
		for _, ev := range events {
			if ev.UpdatedAt.After(latest.UpdatedAt) {
				latest = ev
			}
		}

		etag := utils.GenerateETag(latest.ID, latest.UpdatedAt)
		if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", etag)
		c.Header("Last-Modified", latest.UpdatedAt.UTC().Format(http.TimeFormat))

		c.JSON(http.StatusOK, events)
	}
}

// ---------------- GET ----------------
func GetEvent(repo storage.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var event models.Event
		if err := repo.FindByID(ctx, storage.Events, eventID, &event); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch event"})
			return
		}

		// --- Enrich with booking counts ---
		var bookings []models.Booking
		if err := repo.List(ctx, storage.Bookings, map[string]any{"event_ref": eventID}, &bookings); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch bookings"})
			return
		}
		var booked int64
		latest := event.UpdatedAt
		for _, b := range bookings {
			booked += int64(b.Tickets)
			if b.UpdatedAt.After(latest) {
				latest = b.UpdatedAt
			}
		}
		remaining := int64(event.MaxAttendees) - booked
		event.TicketsBooked = &booked
		event.TicketsRemaining = &remaining

		// ETag covers the event and its bookings, since the counts are
		// part of the representation.
		etag := utils.GenerateETag(event.ID, latest)
		if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", etag)

		c.JSON(http.StatusOK, event)
	}
}

// ---------------- UPDATE ----------------
func UpdateEvent(repo storage.Repository, refs *integrity.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
			return
		}

		var input struct {
			Name         string    `json:"name" validate:"required"`
			Description  string    `json:"description"`
			Date         time.Time `json:"date" validate:"required"`
			MaxAttendees int       `json:"max_attendees" validate:"required,gt=0"`
			VenueRef     string    `json:"venue_ref" validate:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := validators.Validate(c, input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var existing models.Event
		if err := repo.FindByID(ctx, storage.Events, eventID, &existing); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch event"})
			return
		}

		// --- References are re-validated on every write, changed or not ---
		ids, err := refs.ResolveAll(ctx, integrity.Ref{Field: "venue_ref", Kind: integrity.KindVenue, ID: input.VenueRef})
		if err != nil {
			referenceErrorResponse(c, err)
			return
		}

		event := models.Event{
			ID:           existing.ID,
			VenueRef:     ids[0],
			Name:         input.Name,
			Description:  input.Description,
			Date:         input.Date,
			MaxAttendees: input.MaxAttendees,
			Media:        existing.Media,
			CreatedAt:    existing.CreatedAt,
			UpdatedAt:    time.Now().UTC(),
		}
		if err := repo.Replace(ctx, storage.Events, eventID, event); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update event"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "event updated successfully",
			"event":   event,
		})
	}
}

// ---------------- DELETE ----------------
func DeleteEvent(repo storage.Repository, store *assets.Store, log *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var existing models.Event
		if err := repo.FindByID(ctx, storage.Events, eventID, &existing); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch event"})
			return
		}

		// --- Refuse while bookings still reference this event ---
		referencing, err := repo.Count(ctx, storage.Bookings, map[string]any{"event_ref": eventID})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not check references"})
			return
		}
		if referencing > 0 {
			c.JSON(http.StatusConflict, gin.H{
				"error":    "event is still referenced by bookings",
				"bookings": referencing,
			})
			return
		}

		if err := repo.Delete(ctx, storage.Events, eventID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete event"})
			return
		}

		// --- Cascade owned media; the sweep reclaims any leftovers ---
		if _, err := store.DeleteOwned(ctx, models.OwnerEvent, eventID); err != nil {
			log.Warn().Err(err).Str("event_id", eventID.Hex()).Msg("cascading event assets failed")
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "event deleted successfully",
			"id":      eventID.Hex(),
		})
	}
}
