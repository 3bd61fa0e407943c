package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Event struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	VenueRef     primitive.ObjectID `bson:"venue_ref" json:"venue_ref"`
	Name         string             `bson:"name" json:"name"`
	Description  string             `bson:"description,omitempty" json:"description,omitempty"`
	Date         time.Time          `bson:"date" json:"date"`
	MaxAttendees int                `bson:"max_attendees" json:"max_attendees"`
	Media        []string           `bson:"media" json:"media"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`

	// Enriched fields
	TicketsBooked    *int64 `bson:"-" json:"tickets_booked,omitempty"`
	TicketsRemaining *int64 `bson:"-" json:"tickets_remaining,omitempty"`
}
