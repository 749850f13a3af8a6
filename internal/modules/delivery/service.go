package delivery

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/holdiq/holdiq/internal/modules/briefs"
	"github.com/holdiq/holdiq/internal/modules/subscribers"
)

// Result reports one delivery run.
type Result struct {
	BriefsSent int `json:"briefs_sent"`
	Recipients int `json:"recipients"`
	Failures   int `json:"failures"`
}

// Service delivers undelivered briefs to their managers' active
// subscribers and records every attempt.
type Service struct {
	db     *sql.DB
	mailer *Mailer
	briefs *briefs.Repository
	subs   *subscribers.Repository
	log    zerolog.Logger
}

// NewService creates a new delivery service
func NewService(
	db *sql.DB,
	mailer *Mailer,
	briefsRepo *briefs.Repository,
	subsRepo *subscribers.Repository,
	log zerolog.Logger,
) *Service {
	return &Service{
		db:     db,
		mailer: mailer,
		briefs: briefsRepo,
		subs:   subsRepo,
		log:    log.With().Str("service", "delivery").Logger(),
	}
}

// DeliverPending sends every undelivered brief to the active
// subscribers who have not received it yet. Individual send failures
// are recorded and do not stop the run.
func (s *Service) DeliverPending(ctx context.Context) (Result, error) {
	var result Result

	pending, err := s.briefs.Undelivered()
	if err != nil {
		return result, err
	}

	for _, brief := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		subs, err := s.subs.ActiveForManager(brief.ManagerCIK)
		if err != nil {
			return result, err
		}

		subject := fmt.Sprintf("HoldIQ brief: %s — %s", brief.ManagerCIK, brief.ReportPeriod)
		sentAny := false

		for _, sub := range subs {
			delivered, err := s.alreadyDelivered(brief.ID, sub.Email)
			if err != nil {
				return result, err
			}
			if delivered {
				continue
			}

			sendErr := s.mailer.Send(ctx, sub.Email, subject, brief.BriefMD)
			if err := s.recordDelivery(brief.ID, sub.Email, sendErr); err != nil {
				return result, err
			}

			if sendErr != nil {
				s.log.Error().Err(sendErr).Str("email", sub.Email).
					Str("brief_id", brief.ID).Msg("Delivery failed")
				result.Failures++
				continue
			}

			result.Recipients++
			sentAny = true
		}

		if sentAny {
			result.BriefsSent++
		}
	}

	s.log.Info().
		Int("briefs_sent", result.BriefsSent).
		Int("recipients", result.Recipients).
		Int("failures", result.Failures).
		Msg("Delivery run complete")
	return result, nil
}

func (s *Service) alreadyDelivered(briefID, email string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM deliveries WHERE brief_id = ? AND email = ? AND succeeded = 1",
		briefID, email,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check delivery log: %w", err)
	}
	return count > 0, nil
}

func (s *Service) recordDelivery(briefID, email string, sendErr error) error {
	var errCol sql.NullString
	succeeded := 1
	if sendErr != nil {
		succeeded = 0
		errCol = sql.NullString{String: sendErr.Error(), Valid: true}
	}

	_, err := s.db.Exec(
		"INSERT INTO deliveries (id, brief_id, email, succeeded, err) VALUES (?, ?, ?, ?, ?)",
		uuid.NewString(), briefID, email, succeeded, errCol,
	)
	if err != nil {
		return fmt.Errorf("failed to record delivery: %w", err)
	}
	return nil
}
