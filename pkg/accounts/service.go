package accounts

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/telekom/account-notifier/pkg/events"
)

// Publisher hands lifecycle events to the broker. *events.Producer
// implements it.
type Publisher interface {
	Publish(ctx context.Context, ev events.LifecycleEvent) error
}

// Service implements the account use cases. Events are published after the
// repository call has succeeded. A failed publish is logged and does not
// fail the operation, so the account change stands and the notification is
// lost.
type Service struct {
	repo      Repository
	publisher Publisher
	log       *zap.SugaredLogger
}

func NewService(repo Repository, publisher Publisher, log *zap.SugaredLogger) *Service {
	return &Service{repo: repo, publisher: publisher, log: log.Named("accounts")}
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Account, error) {
	s.log.Infow("Creating account", "email", in.Email)

	exists, err := s.repo.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return Account{}, err
	}
	if exists {
		s.log.Warnw("Account email already in use", "email", in.Email)
		return Account{}, emailTaken(in.Email)
	}

	a, err := s.repo.Create(ctx, Account{Name: in.Name, Email: in.Email, Age: in.Age})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return Account{}, emailTaken(in.Email)
		}
		return Account{}, err
	}

	s.publish(ctx, events.NewLifecycleEvent(events.KindCreated, a.ID, a.Email, a.Name, a.Age))
	s.log.Infow("Account created", "id", a.ID)
	return a, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	a, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Account{}, notFoundByID(id)
	}
	return a, err
}

func (s *Service) GetByEmail(ctx context.Context, email string) (Account, error) {
	a, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return Account{}, fmt.Errorf("%w: no account with email %s", ErrNotFound, email)
	}
	return a, err
}

func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.repo.List(ctx)
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

// Update applies the set fields of in. No event is published.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Account, error) {
	s.log.Infow("Updating account", "id", id)

	current, err := s.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if in.Email != nil && *in.Email != current.Email {
		exists, err := s.repo.ExistsByEmail(ctx, *in.Email)
		if err != nil {
			return Account{}, err
		}
		if exists {
			return Account{}, emailTaken(*in.Email)
		}
	}

	next := in.apply(current)
	updated, err := s.repo.Update(ctx, next)
	switch {
	case errors.Is(err, ErrNotFound):
		return Account{}, notFoundByID(id)
	case errors.Is(err, ErrEmailTaken):
		return Account{}, emailTaken(next.Email)
	case err != nil:
		return Account{}, err
	}
	return updated, nil
}

// Delete removes the account and publishes USER_DELETED built from the
// record as it was before deletion.
func (s *Service) Delete(ctx context.Context, id int64) error {
	s.log.Infow("Deleting account", "id", id)

	a, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	ev := events.NewLifecycleEvent(events.KindDeleted, a.ID, a.Email, a.Name, a.Age)

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return notFoundByID(id)
		}
		return err
	}

	s.publish(ctx, ev)
	s.log.Infow("Account deleted", "id", id)
	return nil
}

func (s *Service) publish(ctx context.Context, ev events.LifecycleEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.Errorw("Lifecycle event lost after committed change",
			"eventType", ev.Kind,
			"accountId", ev.AccountID,
			"error", err)
	}
}

func notFoundByID(id int64) error {
	return fmt.Errorf("%w: no account with id %d", ErrNotFound, id)
}

func emailTaken(email string) error {
	return fmt.Errorf("%w: %s", ErrEmailTaken, email)
}
