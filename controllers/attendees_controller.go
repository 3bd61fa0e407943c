package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mwendwa/event-manager-go/models"
	"github.com/mwendwa/event-manager-go/storage"
	"github.com/mwendwa/event-manager-go/utils"
	"github.com/mwendwa/event-manager-go/validators"
)

// ---------------- CREATE ----------------
func CreateAttendee(repo storage.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Name  string `json:"name" validate:"required"`
			Email string `json:"email" validate:"required,email"`
			Phone string `json:"phone"`
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
		attendee := models.Attendee{
			ID:        primitive.NewObjectID(),
			Name:      input.Name,
			Email:     input.Email,
			Phone:     input.Phone,
			CreatedAt: now,
			UpdatedAt: now,
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := repo.Insert(ctx, storage.Attendees, attendee); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create attendee"})
			return
		}

		c.JSON(http.StatusCreated, attendee)
	}
}

// ---------------- LIST ----------------
func ListAttendees(repo storage.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var attendees []models.Attendee
		if err := repo.List(ctx, storage.Attendees, nil, &attendees); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch attendees"})
			return
		}

		if len(attendees) == 0 {
			c.JSON(http.StatusOK, []models.Attendee{})
			return
		}

		latest := attendees[0]
		for _, a := range attendees {
			if a.UpdatedAt.After(latest.UpdatedAt) {
				latest = a
			}
		}

		etag := utils.GenerateETag(latest.ID, latest.UpdatedAt)
		if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", etag)
		c.Header("Last-Modified", latest.UpdatedAt.UTC().Format(http.TimeFormat))

		c.JSON(http.StatusOK, attendees)
	}
}

// ---------------- GET ----------------
func GetAttendee(repo storage.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		attendeeID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attendee id"})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var attendee models.Attendee
		if err := repo.FindByID(ctx, storage.Attendees, attendeeID, &attendee); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "attendee not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch attendee"})
			return
		}

		etag := utils.GenerateETag(attendee.ID, attendee.UpdatedAt)
		if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", etag)

		c.JSON(http.StatusOK, attendee)
	}
}

// ---------------- UPDATE ----------------
func UpdateAttendee(repo storage.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		attendeeID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attendee id"})
			return
		}

		var input struct {
			Name  string `json:"name" validate:"required"`
			Email string `json:"email" validate:"required,email"`
			Phone string `json:"phone"`
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

		var existing models.Attendee
		if err := repo.FindByID(ctx, storage.Attendees, attendeeID, &existing); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "attendee not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch attendee"})
			return
		}

		attendee := models.Attendee{
			ID:        existing.ID,
			Name:      input.Name,
			Email:     input.Email,
			Phone:     input.Phone,
			CreatedAt: existing.CreatedAt,
			UpdatedAt: time.Now().UTC(),
		}
		if err := repo.Replace(ctx, storage.Attendees, attendeeID, attendee); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "attendee not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update attendee"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":  "attendee updated successfully",
			"attendee": attendee,
		})
	}
}

// ---------------- DELETE ----------------
func DeleteAttendee(repo storage.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		attendeeID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attendee id"})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var existing models.Attendee
		if err := repo.FindByID(ctx, storage.Attendees, attendeeID, &existing); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "attendee not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch attendee"})
			return
		}

		// --- Refuse while bookings still reference this attendee ---
		referencing, err := repo.Count(ctx, storage.Bookings, map[string]any{"attendee_ref": attendeeID})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not check references"})
			return
		}
		if referencing > 0 {
			c.JSON(http.StatusConflict, gin.H{
				"error":    "attendee is still referenced by bookings",
				"bookings": referencing,
			})
			return
		}

		if err := repo.Delete(ctx, storage.Attendees, attendeeID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "attendee not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete attendee"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "attendee deleted successfully",
			"id":      attendeeID.Hex(),
		})
	}
}
