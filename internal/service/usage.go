package service

import (
	"context"
	"fmt"
	"time"

	"github.com/draftwise/draftwise-api/internal/llm"
	"github.com/draftwise/draftwise-api/internal/models"
)

// UsageStatus summarizes the caller's quota window and cache footprint.
type UsageStatus struct {
	WindowStart         time.Time `json:"window_start"`
	WindowEnd           time.Time `json:"window_end"`
	RequestsUsed        int       `json:"requests_used"`
	RequestsRemaining   int       `json:"requests_remaining"`
	CharactersUsed      int       `json:"characters_used"`
	CharactersRemaining int       `json:"characters_remaining"`
	CachedAnalyses      int       `json:"cached_analyses"`
}

// Usage returns the caller's current window consumption without touching
// the quota counters.
func (s *AnalysisService) Usage(ctx context.Context, userID string) (*UsageStatus, error) {
	if userID == "" {
		return nil, llm.NewUnauthenticatedError()
	}

	userHash := s.hasher.Hash(userID)
	limits := s.limits.Current(ctx)
	now := s.now()

	window, err := s.repos.RateWindows.Get(ctx, userHash, limits.WindowDuration, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage window: %w", err)
	}

	cached, err := s.repos.Cache.CountByUser(ctx, userHash, now)
	if err != nil {
		// Usage reporting still works when the cache count does not.
		s.logger.Error("failed to count cached analyses", "error", err)
	}

	status := &UsageStatus{
		WindowStart:         window.WindowStart,
		WindowEnd:           window.WindowStart.Add(limits.WindowDuration),
		RequestsUsed:        window.RequestCount,
		RequestsRemaining:   limits.WindowMaxRequests - window.RequestCount,
		CharactersUsed:      window.CharacterCount,
		CharactersRemaining: limits.WindowMaxCharacters - window.CharacterCount,
		CachedAnalyses:      cached,
	}
	if status.RequestsRemaining < 0 {
		status.RequestsRemaining = 0
	}
	if status.CharactersRemaining < 0 {
		status.CharactersRemaining = 0
	}
	return status, nil
}

// Reports returns the caller's most recent failure reports, newest first.
func (s *AnalysisService) Reports(ctx context.Context, userID string, limit int) ([]*models.ErrorReport, error) {
	if userID == "" {
		return nil, llm.NewUnauthenticatedError()
	}
	reports, err := s.repos.ErrorReports.ListByUser(ctx, s.hasher.Hash(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list error reports: %w", err)
	}
	return reports, nil
}
