package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mwendwa/event-manager-go/integrity"
	"github.com/mwendwa/event-manager-go/models"
	"github.com/mwendwa/event-manager-go/rabbit"
	"github.com/mwendwa/event-manager-go/storage"
	"github.com/mwendwa/event-manager-go/utils"
	"github.com/mwendwa/event-manager-go/validators"
	"github.com/mwendwa/event-manager-go/workers"
)

// ---------------- CREATE ----------------
func CreateBooking(repo storage.Repository, refs *integrity.Validator, pub rabbit.Publisher, log *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			EventRef    string     `json:"event_ref" validate:"required"`
			AttendeeRef string     `json:"attendee_ref" validate:"required"`
			Tickets     int        `json:"tickets" validate:"required,gt=0"`
			BookingDate *time.Time `json:"booking_date"`
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

		// --- Resolve references before writing anything. event_ref is
		// checked first, so it is always the one reported when both are
		// bad. ---
		ids, err := refs.ResolveAll(ctx,
			integrity.Ref{Field: "event_ref", Kind: integrity.KindEvent, ID: input.EventRef},
			integrity.Ref{Field: "attendee_ref", Kind: integrity.KindAttendee, ID: input.AttendeeRef},
		)
		if err != nil {
			referenceErrorResponse(c, err)
			return
		}

		now := time.Now().UTC()
		bookingDate := now
		if input.BookingDate != nil {
			bookingDate = input.BookingDate.UTC()
		}
		booking := models.Booking{
			ID:          primitive.NewObjectID(),
			EventRef:    ids[0],
			AttendeeRef: ids[1],
			Tickets:     input.Tickets,
			BookingDate: bookingDate,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := repo.Insert(ctx, storage.Bookings, booking); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create booking"})
			return
		}

		// --- Notify; best effort, never fails the booking ---
		if pub != nil {
			msg := workers.BookingMessage{
				BookingID:  booking.ID.Hex(),
				EventID:    booking.EventRef.Hex(),
				AttendeeID: booking.AttendeeRef.Hex(),
				Tickets:    booking.Tickets,
			}
			body, err := json.Marshal(msg)
			if err == nil {
				err = pub.Publish(ctx, body)
			}
			if err != nil {
				log.Warn().Err(err).Str("booking_id", booking.ID.Hex()).Msg("booking notification publish failed")
			}
		}

		c.JSON(http.StatusCreated, booking)
	}
}

// ---------------- LIST ----------------
func ListBookings(repo storage.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// --- Build filter ---
		filter := map[string]any{}
		if q := c.Query("event_id"); q != "" {
			eventID, err := primitive.ObjectIDFromHex(q)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
				return
			}
			filter["event_ref"] = eventID
		}
		if q := c.Query("attendee_id"); q != "" {
			attendeeID, err := primitive.ObjectIDFromHex(q)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attendee id"})
				return
			}
			filter["attendee_ref"] = attendeeID
		}

		var bookings []models.Booking
		if err := repo.List(ctx, storage.Bookings, filter, &bookings); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch bookings"})
			return
		}

		if len(bookings) == 0 {
			c.JSON(http.StatusOK, []models.Booking{})
			return
		}

		latest := bookings[0]
		for _, b := range bookings {
			if b.UpdatedAt.After(latest.UpdatedAt) {
				latest = b
			}
		}

		etag := utils.GenerateETag(latest.ID, latest.UpdatedAt)
		if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", etag)
		c.Header("Last-Modified", latest.UpdatedAt.UTC().Format(http.TimeFormat))

		c.JSON(http.StatusOK, bookings)
	}
}

// ---------------- GET ----------------
func GetBooking(repo storage.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var booking models.Booking
		if err := repo.FindByID(ctx, storage.Bookings, bookingID, &booking); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch booking"})
			return
		}

		etag := utils.GenerateETag(booking.ID, booking.UpdatedAt)
		if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", etag)

		c.JSON(http.StatusOK, booking)
	}
}

// ---------------- UPDATE ----------------
func UpdateBooking(repo storage.Repository, refs *integrity.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
			return
		}

		var input struct {
			EventRef    string     `json:"event_ref" validate:"required"`
			AttendeeRef string     `json:"attendee_ref" validate:"required"`
			Tickets     int        `json:"tickets" validate:"required,gt=0"`
			BookingDate *time.Time `json:"booking_date"`
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

		var existing models.Booking
		if err := repo.FindByID(ctx, storage.Bookings, bookingID, &existing); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch booking"})
			return
		}

		// --- References are re-validated on every write, changed or not ---
		ids, err := refs.ResolveAll(ctx,
			integrity.Ref{Field: "event_ref", Kind: integrity.KindEvent, ID: input.EventRef},
			integrity.Ref{Field: "attendee_ref", Kind: integrity.KindAttendee, ID: input.AttendeeRef},
		)
		if err != nil {
			referenceErrorResponse(c, err)
			return
		}

		bookingDate := existing.BookingDate
		if input.BookingDate != nil {
			bookingDate = input.BookingDate.UTC()
		}
		booking := models.Booking{
			ID:          existing.ID,
			EventRef:    ids[0],
			AttendeeRef: ids[1],
			Tickets:     input.Tickets,
			BookingDate: bookingDate,
			CreatedAt:   existing.CreatedAt,
			UpdatedAt:   time.Now().UTC(),
		}
		if err := repo.Replace(ctx, storage.Bookings, bookingID, booking); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update booking"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "booking updated successfully",
			"booking": booking,
		})
	}
}

// ---------------- DELETE ----------------
func DeleteBooking(repo storage.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := repo.Delete(ctx, storage.Bookings, bookingID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete booking"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "booking deleted successfully",
			"id":      bookingID.Hex(),
		})
	}
}
