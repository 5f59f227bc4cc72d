package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/invigil/proctor-backend/internal/config"
	"github.com/invigil/proctor-backend/internal/model"
)

// IntegrityResult tells the caller how an integrity event landed.
type IntegrityResult struct {
	Kind model.ViolationKind `json:"kind"`
	// Count is the counter value after this event (0 when ignored).
	Count int `json:"count"`
	// Warn asks the client to surface a warning to the student.
	Warn bool `json:"warn"`
	// ForcedSubmit means this event crossed the threshold and the attempt
	// was force-submitted.
	ForcedSubmit bool `json:"forced_submit"`
	// Ignored means the attempt was already terminal and the event was
	// dropped as a benign late arrival.
	Ignored bool `json:"ignored"`
}

// IntegrityService tracks tab-switch and screenshot events per attempt and
// enforces the violation thresholds.
//
// Late events racing the deadline monitor are dropped silently: erroring a
// student's already-closed session helps nobody.
type IntegrityService struct {
	store    AttemptStore
	attempts *AttemptService
	rdb      *redis.Client
	cfg      *config.Config
	log      zerolog.Logger
}

// NewIntegrityService creates a new IntegrityService.
func NewIntegrityService(store AttemptStore, attempts *AttemptService, rdb *redis.Client, cfg *config.Config, log zerolog.Logger) *IntegrityService {
	return &IntegrityService{
		store:    store,
		attempts: attempts,
		rdb:      rdb,
		cfg:      cfg,
		log:      log.With().Str("component", "integrity_service").Logger(),
	}
}

// RecordTabSwitch increments the attempt's tab-switch counter. Crossing
// MaxTabSwitches force-submits the attempt and reports it to the caller so
// the student can be notified.
func (s *IntegrityService) RecordTabSwitch(ctx context.Context, attemptID uuid.UUID, details string) (*IntegrityResult, error) {
	return s.record(ctx, attemptID, model.ViolationTabSwitch, details, s.cfg.MaxTabSwitches, true)
}

// RecordScreenshot increments the attempt's screenshot counter. Whether it
// can ever force-submit is deployment policy; the default only warns.
func (s *IntegrityService) RecordScreenshot(ctx context.Context, attemptID uuid.UUID, details string) (*IntegrityResult, error) {
	force := s.cfg.ScreenshotPolicy == config.ScreenshotPolicyForce
	return s.record(ctx, attemptID, model.ViolationScreenshot, details, s.cfg.MaxScreenshots, force)
}

func (s *IntegrityService) record(ctx context.Context, attemptID uuid.UUID, kind model.ViolationKind, details string, max int, enforce bool) (*IntegrityResult, error) {
	count, active, err := s.store.IncrementViolation(ctx, attemptID, kind)
	if err != nil {
		return nil, err
	}

	if !active {
		s.log.Debug().
			Str("attempt_id", attemptID.String()).
			Str("kind", string(kind)).
			Msg("Dropping late violation event on terminal attempt")
		return &IntegrityResult{Kind: kind, Ignored: true}, nil
	}

	s.enqueueAudit(ctx, attemptID, kind, details)

	result := &IntegrityResult{Kind: kind, Count: count, Warn: true}

	if enforce && count > max {
		if _, err := s.attempts.Submit(ctx, attemptID, model.TriggerForced, time.Time{}); err != nil {
			if !errors.Is(err, ErrInvalidState) {
				return nil, err
			}
			// Someone else closed it between the increment and here.
		}
		result.ForcedSubmit = true
		s.log.Warn().
			Str("attempt_id", attemptID.String()).
			Str("kind", string(kind)).
			Int("count", count).
			Msg("Violation threshold exceeded, attempt force-submitted")
	}

	return result, nil
}

// enqueueAudit pushes the raw event to the persistence queue. Best effort:
// the synchronous counter is the enforcement source of truth, the audit
// trail is written by the violation worker.
func (s *IntegrityService) enqueueAudit(ctx context.Context, attemptID uuid.UUID, kind model.ViolationKind, details string) {
	payload, _ := json.Marshal(map[string]interface{}{
		"attempt_id": attemptID.String(),
		"kind":       string(kind),
		"details":    details,
		"timestamp":  time.Now().Unix(),
	})
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, payload).Err(); err != nil {
		s.log.Error().Err(err).Str("attempt_id", attemptID.String()).Msg("Failed to queue violation audit")
	}
}
