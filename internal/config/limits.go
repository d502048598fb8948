package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Limits are the operational knobs that can be tightened or loosened at
// runtime without a redeploy.
type Limits struct {
	MaxTextLength         int           `json:"max_text_length"`
	MaxRealtimeTextLength int           `json:"max_realtime_text_length"`
	WindowDuration        time.Duration `json:"window_duration"`
	WindowMaxRequests     int           `json:"window_max_requests"`
	WindowMaxCharacters   int           `json:"window_max_characters"`
	CacheTTL              time.Duration `json:"cache_ttl"`
}

// BaseLimits returns the limits configured through the environment.
func (c *Config) BaseLimits() Limits {
	return Limits{
		MaxTextLength:         c.MaxTextLength,
		MaxRealtimeTextLength: c.MaxRealtimeTextLength,
		WindowDuration:        c.WindowDuration,
		WindowMaxRequests:     c.WindowMaxRequests,
		WindowMaxCharacters:   c.WindowMaxCharacters,
		CacheTTL:              c.CacheTTL,
	}
}

// limitsOverride is the JSON document stored in the bucket. Absent
// fields leave the base value in place.
type limitsOverride struct {
	MaxTextLength         *int `json:"max_text_length,omitempty"`
	MaxRealtimeTextLength *int `json:"max_realtime_text_length,omitempty"`
	WindowMinutes         *int `json:"window_minutes,omitempty"`
	WindowMaxRequests     *int `json:"window_max_requests,omitempty"`
	WindowMaxCharacters   *int `json:"window_max_characters,omitempty"`
	CacheTTLHours         *int `json:"cache_ttl_hours,omitempty"`
}

// LimitsLoader serves the effective limits, optionally overlaid from an
// S3-hosted JSON document. Fetches are ETag-cached and rate limited; on
// any failure the last known good limits stay in effect.
type LimitsLoader struct {
	s3Client *s3.Client
	bucket   string
	key      string
	logger   *slog.Logger

	mu           sync.RWMutex
	base         Limits
	effective    Limits
	etag         string
	lastCheck    time.Time
	lastError    time.Time
	refreshEvery time.Duration
	errorBackoff time.Duration
}

// NewLimitsLoader creates a loader over the base limits. client may be
// nil, in which case the base limits are always effective.
func NewLimitsLoader(base Limits, client *s3.Client, bucket, key string, logger *slog.Logger) *LimitsLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &LimitsLoader{
		s3Client:     client,
		bucket:       bucket,
		key:          key,
		logger:       logger,
		base:         base,
		effective:    base,
		refreshEvery: 5 * time.Minute,
		errorBackoff: time.Minute,
	}
}

// NewS3Client builds the S3 client for the limits loader from config.
// Returns nil when storage is not configured.
func NewS3Client(cfg *Config) (*s3.Client, error) {
	if !cfg.StorageEnabled {
		return nil, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.StorageRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.StorageEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.StorageEndpoint)
			o.UsePathStyle = true // Required for some S3-compatible services
		}
	}), nil
}

// Current returns the effective limits, refreshing from S3 when due.
// Refresh failures are logged and never propagate to the caller.
func (l *LimitsLoader) Current(ctx context.Context) Limits {
	if l.needsRefresh() {
		l.refresh(ctx)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.effective
}

func (l *LimitsLoader) needsRefresh() bool {
	if l.s3Client == nil {
		return false
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.lastError.IsZero() && time.Since(l.lastError) < l.errorBackoff {
		return false
	}
	return time.Since(l.lastCheck) > l.refreshEvery
}

// refresh fetches the override document and applies it over the base.
func (l *LimitsLoader) refresh(ctx context.Context) {
	l.mu.Lock()
	if time.Since(l.lastCheck) <= l.refreshEvery {
		// Another goroutine refreshed while we waited for the lock.
		l.mu.Unlock()
		return
	}
	l.lastCheck = time.Now()
	currentEtag := l.etag
	l.mu.Unlock()

	input := &s3.GetObjectInput{
		Bucket: &l.bucket,
		Key:    &l.key,
	}
	if currentEtag != "" {
		quotedEtag := "\"" + currentEtag + "\""
		input.IfNoneMatch = &quotedEtag
	}

	resp, err := l.s3Client.GetObject(ctx, input)
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			// No override document: base limits apply.
			l.setEffective(l.base, "")
			return
		}

		var notModified interface{ ErrorCode() string }
		if errors.As(err, &notModified) && notModified.ErrorCode() == "NotModified" {
			return
		}

		l.mu.Lock()
		l.lastError = time.Now()
		l.mu.Unlock()
		l.logger.Error("failed to fetch limits override",
			"error", err,
			"bucket", l.bucket,
			"key", l.key,
		)
		return
	}
	defer resp.Body.Close()

	var override limitsOverride
	if err := json.NewDecoder(resp.Body).Decode(&override); err != nil {
		l.mu.Lock()
		l.lastError = time.Now()
		l.mu.Unlock()
		l.logger.Error("failed to parse limits override JSON", "error", err)
		return
	}

	newEtag := ""
	if resp.ETag != nil {
		newEtag = strings.Trim(*resp.ETag, "\"")
	}

	l.setEffective(l.apply(override), newEtag)
	l.logger.Info("limits override applied",
		"bucket", l.bucket,
		"key", l.key,
		"etag", newEtag,
	)
}

// apply overlays an override onto the base limits. Non-positive values
// are ignored so a bad document cannot zero out a quota.
func (l *LimitsLoader) apply(o limitsOverride) Limits {
	out := l.base

	set := func(dst *int, src *int) {
		if src != nil && *src > 0 {
			*dst = *src
		}
	}
	set(&out.MaxTextLength, o.MaxTextLength)
	set(&out.MaxRealtimeTextLength, o.MaxRealtimeTextLength)
	set(&out.WindowMaxRequests, o.WindowMaxRequests)
	set(&out.WindowMaxCharacters, o.WindowMaxCharacters)
	if o.WindowMinutes != nil && *o.WindowMinutes > 0 {
		out.WindowDuration = time.Duration(*o.WindowMinutes) * time.Minute
	}
	if o.CacheTTLHours != nil && *o.CacheTTLHours > 0 {
		out.CacheTTL = time.Duration(*o.CacheTTLHours) * time.Hour
	}

	if out.MaxRealtimeTextLength > out.MaxTextLength {
		out.MaxRealtimeTextLength = out.MaxTextLength
	}
	return out
}

func (l *LimitsLoader) setEffective(limits Limits, etag string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.effective = limits
	l.etag = etag
	l.lastError = time.Time{}
}
