package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mwendwa/event-manager-go/mailer"
	"github.com/mwendwa/event-manager-go/models"
	"github.com/mwendwa/event-manager-go/storage"
)

// BookingMessage is the payload published when a booking is created.
type BookingMessage struct {
	BookingID  string `json:"booking_id"`
	EventID    string `json:"event_id"`
	AttendeeID string `json:"attendee_id"`
	Tickets    int    `json:"tickets"`
}

// Consumer is the broker side the notifier consumes from.
type Consumer interface {
	Consume(handler func([]byte) error) error
}

// Notifier consumes booking messages and emails the attendee a
// confirmation.
type Notifier struct {
	consumer Consumer
	repo     storage.Repository
	mail     *mailer.Mailer
	log      *zerolog.Logger
	done     chan struct{}
	cancel   context.CancelFunc
}

func NewNotifier(consumer Consumer, repo storage.Repository, mail *mailer.Mailer, log *zerolog.Logger) *Notifier {
	return &Notifier{
		consumer: consumer,
		repo:     repo,
		mail:     mail,
		log:      log,
		done:     make(chan struct{}),
	}
}

func (n *Notifier) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	go func() {
		defer close(n.done)

		err := n.consumer.Consume(func(body []byte) error {
			return n.handleMessage(cctx, body)
		})
		if err != nil {
			n.log.Error().Err(err).Msg("failed to start consuming booking messages")
			return
		}

		<-cctx.Done()
	}()

	n.log.Info().Msg("booking notifier started")
}

func (n *Notifier) Stop() {
	if n.cancel != nil {
		n.cancel()
		<-n.done
	}
	n.log.Info().Msg("booking notifier stopped")
}

// handleMessage processes one queued message. A nil return acknowledges
// the message; an error requeues it. Unparseable payloads and vanished
// documents are dropped, only infrastructure failures requeue.
func (n *Notifier) handleMessage(ctx context.Context, body []byte) error {
	var msg BookingMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		n.log.Error().Err(err).Msg("unparseable booking message, dropping")
		return nil
	}
	bookingID, err := primitive.ObjectIDFromHex(msg.BookingID)
	if err != nil {
		n.log.Error().Str("booking_id", msg.BookingID).Msg("malformed booking id in message, dropping")
		return nil
	}

	var booking models.Booking
	if err := n.repo.FindByID(ctx, storage.Bookings, bookingID, &booking); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			n.log.Info().Str("booking_id", msg.BookingID).Msg("booking gone before notification, dropping")
			return nil
		}
		return fmt.Errorf("load booking: %w", err)
	}

	var attendee models.Attendee
	if err := n.repo.FindByID(ctx, storage.Attendees, booking.AttendeeRef, &attendee); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			n.log.Info().Str("booking_id", msg.BookingID).Msg("attendee gone before notification, dropping")
			return nil
		}
		return fmt.Errorf("load attendee: %w", err)
	}

	var event models.Event
	if err := n.repo.FindByID(ctx, storage.Events, booking.EventRef, &event); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			n.log.Info().Str("booking_id", msg.BookingID).Msg("event gone before notification, dropping")
			return nil
		}
		return fmt.Errorf("load event: %w", err)
	}

	subject := "Booking confirmed: " + event.Name
	htmlBody := fmt.Sprintf(
		"<p>Hi %s,</p><p>Your booking for <strong>%s</strong> on %s is confirmed (%d ticket(s)).</p>",
		attendee.Name,
		event.Name,
		event.Date.Format("Mon, 02 Jan 2006 15:04"),
		booking.Tickets,
	)
	if err := n.mail.Send(ctx, attendee.Email, attendee.Name, subject, htmlBody); err != nil {
		// Notification is best effort; do not requeue on mail failure.
		n.log.Warn().Err(err).Str("booking_id", msg.BookingID).Msg("confirmation email failed")
		return nil
	}

	n.log.Info().
		Str("booking_id", msg.BookingID).
		Str("email", attendee.Email).
		Msg("confirmation email sent")
	return nil
}
