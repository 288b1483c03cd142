//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"saas-billing-backend/internal/domain"
	"saas-billing-backend/internal/domain/model"
	"saas-billing-backend/internal/usecase"
)

func TestUserUseCase_ApplyIdentityEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("should create a user on first user.created", func(t *testing.T) {
		// --- Arrange ---
		users := NewMockUserRepo()
		uc := usecase.NewUserUseCase(users, NewMockTxManager(), newTestLogger())

		// --- Act ---
		got, err := uc.ApplyIdentityEvent(ctx, &model.IdentityEvent{
			Action:    model.ActionUserCreated,
			SubjectID: "subj-1",
			Email:     "a@example.com",
			Name:      "Ada",
		})

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if got.SubjectID != "subj-1" || got.PlanTier != model.PlanTierFree {
			t.Errorf("expected a free-tier user for subj-1, got %+v", got)
		}
	})

	t.Run("should keep a single user when user.created is replayed", func(t *testing.T) {
		users := NewMockUserRepo()
		uc := usecase.NewUserUseCase(users, NewMockTxManager(), newTestLogger())

		ev := &model.IdentityEvent{Action: model.ActionUserCreated, SubjectID: "subj-1", Email: "a@example.com"}
		first, err := uc.ApplyIdentityEvent(ctx, ev)
		if err != nil {
			t.Fatalf("first apply: %v", err)
		}
		ev.Email = "new@example.com"
		second, err := uc.ApplyIdentityEvent(ctx, ev)
		if err != nil {
			t.Fatalf("second apply: %v", err)
		}

		if users.Count() != 1 {
			t.Fatalf("expected exactly one user, got %d", users.Count())
		}
		if first.ID != second.ID {
			t.Errorf("expected the same user id across replays, got %s and %s", first.ID, second.ID)
		}
		if second.Email != "new@example.com" {
			t.Errorf("expected profile fields refreshed, got %q", second.Email)
		}
	})

	t.Run("should update profile fields on user.updated", func(t *testing.T) {
		users := NewMockUserRepo()
		u, _ := model.NewUser("subj-1", "old@example.com", "Ada")
		users.Seed(u)
		uc := usecase.NewUserUseCase(users, NewMockTxManager(), newTestLogger())

		got, err := uc.ApplyIdentityEvent(ctx, &model.IdentityEvent{
			Action:    model.ActionUserUpdated,
			SubjectID: "subj-1",
			Email:     "new@example.com",
			Name:      "Ada L.",
		})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if got.Email != "new@example.com" || got.Name != "Ada L." {
			t.Errorf("expected refreshed profile, got %+v", got)
		}
		if got.ID != u.ID {
			t.Errorf("expected the existing user updated in place")
		}
	})

	t.Run("should ignore unmapped actions", func(t *testing.T) {
		uc := usecase.NewUserUseCase(NewMockUserRepo(), NewMockTxManager(), newTestLogger())
		got, err := uc.ApplyIdentityEvent(ctx, &model.IdentityEvent{Action: model.ActionIgnore, SubjectID: "subj-1"})
		if err != nil || got != nil {
			t.Fatalf("expected nil, nil for ignored action, got %v, %v", got, err)
		}
	})

	t.Run("should reject events without a subject id", func(t *testing.T) {
		uc := usecase.NewUserUseCase(NewMockUserRepo(), NewMockTxManager(), newTestLogger())
		if _, err := uc.ApplyIdentityEvent(ctx, &model.IdentityEvent{Action: model.ActionUserCreated}); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got: %v", err)
		}
	})
}
