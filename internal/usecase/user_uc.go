package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"saas-billing-backend/internal/domain"
	"saas-billing-backend/internal/domain/model"
	"saas-billing-backend/internal/domain/ports/repository"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

type UserUseCase interface {
	// ApplyIdentityEvent applies a canonical identity action. Replaying a
	// user.created event for an already-known subject id updates profile
	// fields on the single existing user instead of creating a second one.
	ApplyIdentityEvent(ctx context.Context, ev *model.IdentityEvent) (*model.User, error)
}

type userUC struct {
	users repository.UserRepository
	tm    repository.TransactionManager
	log   *zerolog.Logger
}

func NewUserUseCase(users repository.UserRepository, tm repository.TransactionManager, logger *zerolog.Logger) *userUC {
	return &userUC{users: users, tm: tm, log: logger}
}

func (u *userUC) ApplyIdentityEvent(ctx context.Context, ev *model.IdentityEvent) (*model.User, error) {
	if ev == nil || ev.SubjectID == "" {
		return nil, domain.ErrInvalidArgument
	}

	switch ev.Action {
	case model.ActionUserCreated, model.ActionUserUpdated:
	case model.ActionIgnore:
		return nil, nil
	default:
		return nil, domain.ErrInvalidArgument
	}

	res, err := u.tm.WithRetryTransaction(ctx, repository.DefaultRetryOptions(), func(ctx context.Context) (any, error) {
		candidate, err := model.NewUser(ev.SubjectID, ev.Email, ev.Name)
		if err != nil {
			return nil, err
		}
		stored, created, err := u.users.UpsertBySubjectID(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if created {
			u.log.Info().Str("subject_id", ev.SubjectID).Str("user_id", stored.ID).Msg("user created")
		}
		return stored, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*model.User), nil
}
