package app

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"resortadmin/internal/domain"
)

type UserService struct {
	users   domain.UserRepository
	history domain.HistoryRepository
}

func NewUserService(users domain.UserRepository, history domain.HistoryRepository) *UserService {
	return &UserService{users: users, history: history}
}

func (s *UserService) List(ctx context.Context, actor domain.User) ([]domain.User, error) {
	if !actor.Role.Allows(domain.PermManageUsers) {
		return nil, domain.ErrForbidden
	}
	return s.users.ListUsers(ctx)
}

type UpdateUserInput struct {
	Role     *domain.Role
	IsActive *bool
}

// Update changes a user's role or activation. Super-admin only; you cannot
// demote yourself out of super_admin or deactivate your own account.
func (s *UserService) Update(ctx context.Context, actor domain.User, id int64, in UpdateUserInput) (domain.User, error) {
	if !actor.Role.Allows(domain.PermManageUsers) {
		return domain.User{}, domain.ErrForbidden
	}
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, err
	}

	before := u
	if in.Role != nil {
		if !in.Role.Valid() {
			return domain.User{}, errors.New("unknown role")
		}
		if u.ID == actor.ID && *in.Role != domain.RoleSuperAdmin {
			return domain.User{}, domain.ErrForbidden
		}
		u.Role = *in.Role
	}
	if in.IsActive != nil {
		if u.ID == actor.ID && !*in.IsActive {
			return domain.User{}, domain.ErrForbidden
		}
		u.IsActive = *in.IsActive
	}

	if err := s.users.UpdateUser(ctx, u); err != nil {
		return domain.User{}, err
	}
	s.logUserAction(ctx, actor.ID, u.ID, "update", userChanges(before, u))
	return u, nil
}

func (s *UserService) SetActive(ctx context.Context, actor domain.User, id int64, active bool) (domain.User, error) {
	return s.Update(ctx, actor, id, UpdateUserInput{IsActive: &active})
}

func (s *UserService) logUserAction(ctx context.Context, actorID, userID int64, action string, changes []byte) {
	if s.history == nil {
		return
	}
	err := s.history.LogAction(ctx, domain.HistoryEntry{
		UserID:      actorID,
		EntityType:  "user",
		EntityID:    userID,
		Action:      action,
		ChangesJSON: changes,
	})
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("history log failed")
	}
}

func userChanges(before, after domain.User) []byte {
	b, err := json.Marshal(map[string]any{
		"old": map[string]any{"role": before.Role, "is_active": before.IsActive},
		"new": map[string]any{"role": after.Role, "is_active": after.IsActive},
	})
	if err != nil {
		return nil
	}
	return b
}
