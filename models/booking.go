package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Booking struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	EventRef    primitive.ObjectID `bson:"event_ref" json:"event_ref"`
	AttendeeRef primitive.ObjectID `bson:"attendee_ref" json:"attendee_ref"`
	Tickets     int                `bson:"tickets" json:"tickets"`
	BookingDate time.Time          `bson:"booking_date" json:"booking_date"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}
