// Package service is the registration and capacity engine.  Every
// operation runs inside one Store transaction; the transactional core
// returns the side effects it wants, and those are handed to the
// Dispatcher only after a successful commit.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/konfi-registration/internal/model"
	"github.com/iliyamo/konfi-registration/internal/repository"
)

// Service bundles the store, the effect dispatcher, the clock and the
// timezone in which calendar arithmetic happens.
type Service struct {
	store    Store
	dispatch *Dispatcher
	now      func() time.Time
	loc      *time.Location
	log      *logrus.Entry
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the timezone used for series dates and calendar export.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// New creates a Service.  d may be nil, in which case effects are dropped.
func New(store Store, d *Dispatcher, opts ...Option) *Service {
	s := &Service{
		store:    store,
		dispatch: d,
		now:      time.Now,
		loc:      time.UTC,
		log:      logrus.WithField("pkg", "service"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Location returns the configured event timezone.
func (s *Service) Location() *time.Location { return s.loc }

// run executes fn in a transaction and dispatches its effects after
// commit.  Effects of a rolled back transaction are discarded.
func (s *Service) run(ctx context.Context, fn func(tx Tx) ([]Effect, error)) error {
	var fx []Effect
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		fx, err = fn(tx)
		return err
	})
	if err != nil {
		return txErr(err)
	}
	s.dispatch.Dispatch(ctx, fx)
	return nil
}

// view runs a read-only fn in a transaction.
func (s *Service) view(ctx context.Context, fn func(tx Tx) error) error {
	return txErr(s.store.InTx(ctx, fn))
}

// txErr translates errors raised by begin/commit themselves.  Errors
// produced by the core are already engine errors and pass through.
func txErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrLockConflict):
		return fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
	}
	return err
}

func requireAdmin(id model.Identity) error {
	if !id.IsAdmin() {
		return fmt.Errorf("%w: organizer role required", ErrForbidden)
	}
	return nil
}
