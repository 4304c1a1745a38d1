package app

import (
	"context"
	"time"

	"resortadmin/internal/domain"
)

type HistoryService struct {
	history domain.HistoryRepository
}

func NewHistoryService(history domain.HistoryRepository) *HistoryService {
	return &HistoryService{history: history}
}

func (s *HistoryService) ForEntity(ctx context.Context, entityType string, entityID int64, limit int) ([]domain.HistoryEntry, error) {
	return s.history.ListHistory(ctx, domain.HistoryQuery{
		EntityType: entityType,
		EntityID:   entityID,
		Limit:      clampLimit(limit, 50, 200),
	})
}

func (s *HistoryService) ForUser(ctx context.Context, userID int64, limit int) ([]domain.HistoryEntry, error) {
	return s.history.ListHistory(ctx, domain.HistoryQuery{
		UserID: userID,
		Limit:  clampLimit(limit, 50, 200),
	})
}

func (s *HistoryService) Recent(ctx context.Context, hours, limit int) ([]domain.HistoryEntry, error) {
	if hours <= 0 || hours > 168 {
		hours = 24
	}
	return s.history.ListHistory(ctx, domain.HistoryQuery{
		Since: time.Now().UTC().Add(-time.Duration(hours) * time.Hour),
		Limit: clampLimit(limit, 100, 500),
	})
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
