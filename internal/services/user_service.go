package services

import (
	"context"

	"forum-chat/internal/domain/user"
	"forum-chat/internal/repository"

	"github.com/google/uuid"
)

// PresenceView is the read side of the presence tracker.
type PresenceView interface {
	IsOnline(userID uuid.UUID) bool
	ListOnline() []uuid.UUID
}

type UserService struct {
	repo     repository.UserRepository
	presence PresenceView
}

func NewUserService(repo repository.UserRepository, presence PresenceView) *UserService {
	return &UserService{repo: repo, presence: presence}
}

// Profile returns the directory projection with the live online flag.
func (s *UserService) Profile(ctx context.Context, id uuid.UUID) (user.Profile, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return user.Profile{}, err
	}
	p := user.ProfileOf(u)
	if s.presence != nil {
		p.IsOnline = s.presence.IsOnline(id)
	}
	return p, nil
}

// Profiles batch-loads projections keyed by user id.
func (s *UserService) Profiles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]user.Profile, error) {
	users, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]user.Profile, len(users))
	for _, u := range users {
		p := user.ProfileOf(u)
		if s.presence != nil {
			p.IsOnline = s.presence.IsOnline(u.ID)
		}
		out[u.ID] = p
	}
	return out, nil
}

// OnlineUsers returns profiles for every currently connected user.
func (s *UserService) OnlineUsers(ctx context.Context) ([]user.Profile, error) {
	if s.presence == nil {
		return nil, nil
	}
	ids := s.presence.ListOnline()
	profiles, err := s.Profiles(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]user.Profile, 0, len(profiles))
	for _, p := range profiles {
		p.IsOnline = true
		out = append(out, p)
	}
	return out, nil
}
