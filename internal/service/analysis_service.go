// Package service contains the business logic of the analysis gateway.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/draftwise/draftwise-api/internal/auth"
	"github.com/draftwise/draftwise-api/internal/cache"
	"github.com/draftwise/draftwise-api/internal/config"
	"github.com/draftwise/draftwise-api/internal/fingerprint"
	"github.com/draftwise/draftwise-api/internal/llm"
	"github.com/draftwise/draftwise-api/internal/logging"
	"github.com/draftwise/draftwise-api/internal/models"
	"github.com/draftwise/draftwise-api/internal/parser"
	"github.com/draftwise/draftwise-api/internal/prompt"
	"github.com/draftwise/draftwise-api/internal/repository"
)

// Resolution values recorded on error reports.
const (
	ResolutionRetrySucceeded = "retry_succeeded"
	ResolutionFallbackServed = "fallback_served"
	ResolutionErrorSurfaced  = "error_surfaced"
)

// completer is the LLM call surface, narrowed for testing.
type completer interface {
	Complete(ctx context.Context, cfg llm.Config, systemPrompt, userPrompt string, opts llm.CallOptions) (*llm.CallResult, error)
}

// AnalysisService orchestrates a full analysis request: validation,
// admission, cache lookup, model call with retries, parsing, and cache
// write-back.
type AnalysisService struct {
	cfg    *config.Config
	limits *config.LimitsLoader
	logger *slog.Logger
	repos  *repository.Repositories
	lru    *cache.LRU
	hasher *auth.UserHasher
	client completer
	llmCfg llm.Config
	retry  llm.RetryPolicy

	// Overridable in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewAnalysisService wires the analysis pipeline.
func NewAnalysisService(
	cfg *config.Config,
	limits *config.LimitsLoader,
	logger *slog.Logger,
	repos *repository.Repositories,
	lru *cache.LRU,
	hasher *auth.UserHasher,
	client completer,
) *AnalysisService {
	return &AnalysisService{
		cfg:    cfg,
		limits: limits,
		logger: logger,
		repos:  repos,
		lru:    lru,
		hasher: hasher,
		client: client,
		llmCfg: llm.Config{
			Provider: cfg.LLMProvider,
			APIKey:   cfg.LLMAPIKey,
			BaseURL:  cfg.LLMBaseURL,
			Model:    cfg.LLMModel,
		},
		retry: llm.RetryPolicy{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			MaxDelay:    cfg.RetryMaxDelay,
			JitterMax:   cfg.RetryJitterMax,
		},
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// Analyze runs a full analysis of the text for the authenticated user.
func (s *AnalysisService) Analyze(ctx context.Context, userID, text string, opts models.AnalysisOptions) (*models.AnalysisResult, error) {
	limits := s.limits.Current(ctx)
	return s.analyze(ctx, userID, text, opts, limits, limits.MaxTextLength)
}

// AnalyzeRealtime runs the shorter-text variant used while typing. The
// pipeline is identical; only the length ceiling differs.
func (s *AnalysisService) AnalyzeRealtime(ctx context.Context, userID, text string, opts models.AnalysisOptions) (*models.AnalysisResult, error) {
	limits := s.limits.Current(ctx)
	return s.analyze(ctx, userID, text, opts, limits, limits.MaxRealtimeTextLength)
}

func (s *AnalysisService) analyze(ctx context.Context, userID, text string, opts models.AnalysisOptions, limits config.Limits, maxLen int) (*models.AnalysisResult, error) {
	start := s.now()

	if userID == "" {
		return nil, llm.NewUnauthenticatedError()
	}
	if strings.TrimSpace(text) == "" {
		return nil, llm.NewValidationError(llm.CodeInvalidContent, "Text must not be empty.")
	}
	if len(text) > maxLen {
		return nil, llm.NewValidationError(llm.CodeContentTooLong,
			fmt.Sprintf("Text exceeds the maximum length of %d characters.", maxLen))
	}
	if !opts.HasCategory() {
		return nil, llm.NewValidationError(llm.CodeInvalidContent, "At least one analysis category must be enabled.")
	}

	userHash := s.hasher.Hash(userID)
	logger := logging.FromContext(ctx, s.logger).With("user_hash", userHash)

	if err := s.admit(ctx, logger, userHash, len(text), limits); err != nil {
		return nil, err
	}

	fp := fingerprint.Compute(text, opts)

	if result := s.lookupCached(ctx, logger, userHash, fp); result != nil {
		return result, nil
	}

	result, err := s.callWithRetries(ctx, logger, userHash, text, opts)
	if err != nil {
		return nil, err
	}
	result.ProcessingTimeMs = s.now().Sub(start).Milliseconds()

	s.storeCached(ctx, logger, userHash, fp, text, result, limits)
	return result, nil
}

// admit runs the quota check. A store failure fails open: one user
// briefly exceeding quota is cheaper than refusing everyone.
func (s *AnalysisService) admit(ctx context.Context, logger *slog.Logger, userHash string, charCount int, limits config.Limits) error {
	decision, err := s.repos.RateWindows.Check(ctx, userHash, charCount, repository.WindowLimits{
		Duration:      limits.WindowDuration,
		MaxRequests:   limits.WindowMaxRequests,
		MaxCharacters: limits.WindowMaxCharacters,
	}, s.now())
	if err != nil {
		logger.Error("admission check failed, failing open", "error", err)
		return nil
	}
	if !decision.Allowed {
		logger.Info("request rejected by rate limit",
			"request_count", decision.Window.RequestCount,
			"character_count", decision.Window.CharacterCount,
			"retry_after", decision.RetryAfter,
		)
		return llm.NewRateLimitError(
			"Analysis quota exceeded. Please wait before trying again.",
			decision.RetryAfter,
		)
	}
	return nil
}

// lookupCached consults the in-process LRU, then the durable cache.
// Durable hits are promoted into the LRU.
func (s *AnalysisService) lookupCached(ctx context.Context, logger *slog.Logger, userHash, fp string) *models.AnalysisResult {
	now := s.now()

	if entry := s.lru.Get(userHash, fp, now); entry != nil {
		logger.Debug("analysis served from memory cache", "fingerprint", fp)
		return entry.Result
	}

	entry, err := s.repos.Cache.Lookup(ctx, userHash, fp, now)
	if err != nil {
		// Cache trouble never fails the request.
		logger.Error("cache lookup failed", "error", err)
		return nil
	}
	if entry == nil {
		return nil
	}

	logger.Debug("analysis served from durable cache", "fingerprint", fp)
	s.lru.Put(entry)
	return entry.Result
}

// storeCached writes the result to both cache tiers when it is worth
// keeping. Results for cancelled requests and fallback results are
// never cached.
func (s *AnalysisService) storeCached(ctx context.Context, logger *slog.Logger, userHash, fp, text string, result *models.AnalysisResult, limits config.Limits) {
	if ctx.Err() != nil || result.FallbackUsed {
		return
	}
	if result.TotalSuggestions == 0 && len(text) < s.cfg.MinCacheableLength {
		return
	}

	now := s.now()
	entry := &models.CacheEntry{
		UserHash:    userHash,
		Fingerprint: fp,
		Result:      result,
		CachedAt:    now,
		ExpiresAt:   now.Add(limits.CacheTTL),
	}

	if err := s.repos.Cache.Store(ctx, entry); err != nil {
		logger.Error("cache store failed", "error", err)
	}
	s.lru.Put(entry)
}

// callWithRetries drives the model call loop: classify each failure,
// back off and retry the transient ones, and degrade to the canonical
// empty result when the policy says so.
func (s *AnalysisService) callWithRetries(ctx context.Context, logger *slog.Logger, userHash, text string, opts models.AnalysisOptions) (*models.AnalysisResult, error) {
	systemPrompt, userPrompt := prompt.Build(text, opts)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.OverallTimeout)
	defer cancel()

	callOpts := llm.DefaultCallOptions()
	callOpts.Timeout = s.cfg.CallTimeout

	var lastErr *llm.AnalysisError
	var reportIDs []string

	for attempt := 0; attempt < s.retry.MaxAttempts; attempt++ {
		res, err := s.client.Complete(ctx, s.llmCfg, systemPrompt, userPrompt, callOpts)
		if err == nil {
			result := parser.Parse(res.Content)
			logger.Debug("analysis call succeeded",
				"attempt", attempt,
				"suggestions", result.TotalSuggestions,
				"partial", result.Partial,
				"input_tokens", res.InputTokens,
				"output_tokens", res.OutputTokens,
			)

			if result.Partial && result.TotalSuggestions == 0 {
				// The response was unusable; the empty result stands in.
				result.FallbackUsed = true
				id := s.recordFailure(ctx, userHash, &llm.AnalysisError{
					Category: llm.CategoryParse,
					Severity: models.ReportSeverityMedium,
					Message:  "model response could not be parsed",
				}, attempt)
				s.resolveReports(ctx, append(reportIDs, id), ResolutionFallbackServed)
				return result, nil
			}

			s.resolveReports(ctx, reportIDs, ResolutionRetrySucceeded)
			return result, nil
		}

		lastErr = llm.Classify(err)
		logger.Warn("analysis call failed",
			"attempt", attempt,
			"category", string(lastErr.Category),
			"severity", string(lastErr.Severity),
			"error", err,
		)
		reportIDs = append(reportIDs, s.recordFailure(ctx, userHash, lastErr, attempt))

		if !s.retry.ShouldRetry(lastErr.Category, attempt+1) {
			break
		}
		if err := s.sleep(ctx, s.retry.Delay(attempt)); err != nil {
			lastErr = llm.Classify(err)
			break
		}
	}

	if lastErr == nil {
		lastErr = llm.Classify(fmt.Errorf("analysis attempted %d times without a result", s.retry.MaxAttempts))
	}

	if s.retry.ShouldFallback(lastErr.Category, lastErr.Severity) {
		logger.Info("serving fallback result",
			"category", string(lastErr.Category),
			"severity", string(lastErr.Severity),
		)
		s.resolveReports(ctx, reportIDs, ResolutionFallbackServed)
		result := parser.EmptyResult()
		result.FallbackUsed = true
		return result, nil
	}

	s.resolveReports(ctx, reportIDs, ResolutionErrorSurfaced)
	return nil, lastErr
}

// recordFailure writes an audit report for one failed attempt. Audit
// failures are logged and swallowed; they never affect the request.
func (s *AnalysisService) recordFailure(ctx context.Context, userHash string, ae *llm.AnalysisError, attempt int) string {
	report := &models.ErrorReport{
		ID:           ulid.Make().String(),
		UserHash:     userHash,
		Category:     string(ae.Category),
		Severity:     ae.Severity,
		Message:      ae.Details,
		RetryAttempt: attempt,
		CreatedAt:    s.now(),
	}
	if report.Message == "" {
		report.Message = ae.Message
	}

	// Reports must outlive the request context.
	if err := s.repos.ErrorReports.Insert(context.WithoutCancel(ctx), report); err != nil {
		s.logger.Error("failed to record error report", "error", err)
		return ""
	}
	return report.ID
}

func (s *AnalysisService) resolveReports(ctx context.Context, ids []string, resolution string) {
	now := s.now()
	for _, id := range ids {
		if id == "" {
			continue
		}
		if err := s.repos.ErrorReports.AttachResolution(context.WithoutCancel(ctx), id, resolution, now); err != nil {
			s.logger.Error("failed to resolve error report", "report_id", id, "error", err)
		}
	}
}

// sleepCtx waits for d or until the context is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
