package services

import (
	"context"
	"errors"
	"strings"

	"github.com/bellapacxx/bingo-coach/models"
	"github.com/bellapacxx/bingo-coach/repository"
	"github.com/bellapacxx/bingo-coach/utils/apperrors"
)

const maxNicknameLength = 64

// UserService registers players and reads their profile and ledger.
type UserService struct {
	store repository.Store
}

func NewUserService(store repository.Store) *UserService {
	return &UserService{store: store}
}

// Register returns the player with nickname, creating them on first sight.
// Last-seen is left alone here; finishing a game moves it.
func (s *UserService) Register(ctx context.Context, nickname string) (u *models.User, created bool, err error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil, false, apperrors.Validation("nickname is required")
	}
	if len(nickname) > maxNicknameLength {
		return nil, false, apperrors.Validation("nickname longer than %d characters", maxNicknameLength)
	}

	u, err = s.store.GetUserByNickname(ctx, nickname)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, apperrors.Store("load user", err)
	}
	u = &models.User{Nickname: nickname, PlayStyle: models.PlayStyleUnknown}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, false, apperrors.Store("create user", err)
	}
	return u, true, nil
}

func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("user %d not found", id)
		}
		return nil, apperrors.Store("load user", err)
	}
	return u, nil
}

// Ledger lists the newest ledger entries of a player.
func (s *UserService) Ledger(ctx context.Context, id uint, limit int) ([]models.Transaction, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	out, err := s.store.RecentLedger(ctx, id, limit)
	if err != nil {
		return nil, apperrors.Store("load ledger", err)
	}
	if out == nil {
		out = []models.Transaction{}
	}
	return out, nil
}
