package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"hotel-reservation/events"
	"hotel-reservation/logging"
	"hotel-reservation/models"
)

const publishTimeout = 3 * time.Second

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID string
	Role   models.Role
}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

// owns reports whether a may act on a reservation belonging to userID.
func (a Actor) owns(userID string) bool {
	return a.IsAdmin() || a.UserID == userID
}

// base carries the collaborators shared by every service.
type base struct {
	publisher events.Publisher
	loc       *time.Location
	now       func() time.Time
	log       zerolog.Logger
}

type Option func(*base)

// WithPublisher sends lifecycle events after commit.
func WithPublisher(p events.Publisher) Option {
	return func(b *base) {
		if p != nil {
			b.publisher = p
		}
	}
}

// WithLocation sets the hotel time zone used to decide what "today" is.
func WithLocation(loc *time.Location) Option {
	return func(b *base) {
		if loc != nil {
			b.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *base) {
		if now != nil {
			b.now = now
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(b *base) { b.log = l }
}

func newBase(component string, opts []Option) base {
	b := base{
		publisher: events.NopPublisher{},
		loc:       time.UTC,
		now:       time.Now,
		log:       logging.WithComponent(component),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// clock returns the current instant in UTC.
func (b base) clock() time.Time {
	return b.now().UTC()
}

// dayBounds returns the UTC instants where today starts and ends in the hotel zone.
func (b base) dayBounds() (start, end time.Time) {
	local := b.now().In(b.loc)
	y, m, d := local.Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, b.loc)
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}

// publish is best effort: the change is already committed.
func (b base) publish(e events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := b.publisher.Publish(ctx, e); err != nil {
		b.log.Warn().Err(err).Str("event", string(e.Type)).Msg("publish failed")
	}
}
