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
	"github.com/mwendwa/event-manager-go/models"
	"github.com/mwendwa/event-manager-go/storage"
	"github.com/mwendwa/event-manager-go/utils"
	"github.com/mwendwa/event-manager-go/validators"
)

// ---------------- CREATE ----------------
func CreateVenue(repo storage.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Name     string `json:"name" validate:"required"`
			Address  string `json:"address" validate:"required"`
			Capacity int    `json:"capacity" validate:"required,gt=0"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := validators.Validate(c, input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		now := time.Now().UTC()
		venue := models.Venue{
			ID:        primitive.NewObjectID(),
			Name:      input.Name,
			Address:   input.Address,
			Capacity:  input.Capacity,
			Media:     []string{},
			CreatedAt: now,
			UpdatedAt: now,
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := repo.Insert(ctx, storage.Venues, venue); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create venue"})
			return
		}

		c.JSON(http.StatusCreated, venue)
	}
}

// ---------------- LIST ----------------
func ListVenues(repo storage.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var venues []models.Venue
		if err := repo.List(ctx, storage.Venues, nil, &venues); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch venues"})
			return
		}

		if len(venues) == 0 {
			c.JSON(http.StatusOK, []models.Venue{})
			return
		}

		// --- Pick the most recently updated venue ---
		latest := venues[0]
		for _, v := range venues {
			if v.UpdatedAt.After(latest.UpdatedAt) {
				latest = v
			}
		}

		etag := utils.GenerateETag(latest.ID, latest.UpdatedAt)
		if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", etag)
		c.Header("Last-Modified", latest.UpdatedAt.UTC().Format(http.TimeFormat))

		c.JSON(http.StatusOK, venues)
	}
}

// ---------------- GET ----------------
func GetVenue(repo storage.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		venueID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid venue id"})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var venue models.Venue
		if err := repo.FindByID(ctx, storage.Venues, venueID, &venue); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "venue not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch venue"})
			return
		}

		etag := utils.GenerateETag(venue.ID, venue.UpdatedAt)
		if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", etag)

		c.JSON(http.StatusOK, venue)
	}
}

// ---------------- UPDATE ----------------
func UpdateVenue(repo storage.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		venueID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid venue id"})
			return
		}

		var input struct {
			Name     string `json:"name" validate:"required"`
			Address  string `json:"address" validate:"required"`
			Capacity int    `json:"capacity" validate:"required,gt=0"`
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

		// --- Fetch existing venue ---
		var existing models.Venue
		if err := repo.FindByID(ctx, storage.Venues, venueID, &existing); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "venue not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch venue"})
			return
		}

		// --- Full replace; media and created_at are system-managed ---
		venue := models.Venue{
			ID:        existing.ID,
			Name:      input.Name,
			Address:   input.Address,
			Capacity:  input.Capacity,
			Media:     existing.Media,
			CreatedAt: existing.CreatedAt,
			UpdatedAt: time.Now().UTC(),
		}
		if err := repo.Replace(ctx, storage.Venues, venueID, venue); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "venue not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update venue"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "venue updated successfully",
			"venue":   venue,
		})
	}
}

// ---------------- DELETE ----------------
func DeleteVenue(repo storage.Repository, store *assets.Store, log *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		venueID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid venue id"})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var existing models.Venue
		if err := repo.FindByID(ctx, storage.Venues, venueID, &existing); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "venue not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch venue"})
			return
		}

		// --- Refuse while events still reference this venue ---
		referencing, err := repo.Count(ctx, storage.Events, map[string]any{"venue_ref": venueID})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not check references"})
			return
		}
		if referencing > 0 {
			c.JSON(http.StatusConflict, gin.H{
				"error":  "venue is still referenced by events",
				"events": referencing,
			})
			return
		}

		if err := repo.Delete(ctx, storage.Venues, venueID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "venue not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete venue"})
			return
		}

		// --- Cascade owned media; the sweep reclaims any leftovers ---
		if _, err := store.DeleteOwned(ctx, models.OwnerVenue, venueID); err != nil {
			log.Warn().Err(err).Str("venue_id", venueID.Hex()).Msg("cascading venue assets failed")
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "venue deleted successfully",
			"id":      venueID.Hex(),
		})
	}
}
