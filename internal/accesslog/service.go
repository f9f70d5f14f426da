package accesslog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/redmonkez12/locklog/internal/card"
	"github.com/redmonkez12/locklog/internal/logging"
	"github.com/redmonkez12/locklog/internal/validation"
)

// ErrNoEntries is returned by List when nothing has been recorded yet.
var ErrNoEntries = errors.New("no access log entries")

// Store is the log persistence the service needs. *Repository satisfies it.
type Store interface {
	Insert(ctx context.Context, in RecordInput) (*Log, error)
	UpdateScore(ctx context.Context, id uuid.UUID, score float64, scoreType, note string) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Log, error)
	List(ctx context.Context) ([]Log, error)
	ListScored(ctx context.Context) ([]Log, error)
}

// CardSource supplies cards for the report and reference checks.
type CardSource interface {
	List(ctx context.Context) ([]card.Card, error)
	ExistsByUID(ctx context.Context, uid string) (bool, error)
}

// ProjectChecker resolves project uids for reference checks.
type ProjectChecker interface {
	ExistsByUID(ctx context.Context, uid string) (bool, error)
}

type Service struct {
	logs       Store
	cards      CardSource
	projects   ProjectChecker
	validator  *validation.Validator
	logger     *logging.Logger
	verifyRefs bool
}

func NewService(logs Store, cards CardSource, projects ProjectChecker, v *validation.Validator, logger *logging.Logger) *Service {
	return &Service{
		logs:      logs,
		cards:     cards,
		projects:  projects,
		validator: v,
		logger:    logger,
	}
}

// WithReferenceChecks makes Record reject events whose project or card uid
// is not stored.
func (s *Service) WithReferenceChecks(on bool) *Service {
	s.verifyRefs = on
	return s
}

// Record stores an access event reported under in.Key.
func (s *Service) Record(ctx context.Context, in RecordInput) (*Log, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	if s.verifyRefs {
		if err := s.checkReferences(ctx, in); err != nil {
			return nil, err
		}
	}

	l, err := s.logs.Insert(ctx, in)
	if err != nil {
		return nil, err
	}

	s.logger.Info("access recorded",
		"log_id", l.ID,
		"source", l.Source,
		"card_id", l.CardID,
		"project_id", l.ProjectID,
		"success", l.Success,
	)
	return l, nil
}

func (s *Service) checkReferences(ctx context.Context, in RecordInput) error {
	var verr *validation.Error
	dangling := func(field, label string) {
		if verr == nil {
			verr = &validation.Error{}
		}
		verr.Add(field, label+" does not match a stored record")
	}

	if in.ProjectID != "" {
		ok, err := s.projects.ExistsByUID(ctx, in.ProjectID)
		if err != nil {
			return fmt.Errorf("failed to check project reference: %w", err)
		}
		if !ok {
			dangling("project_id", "Project id")
		}
	}
	if in.CardID != "" {
		ok, err := s.cards.ExistsByUID(ctx, in.CardID)
		if err != nil {
			return fmt.Errorf("failed to check card reference: %w", err)
		}
		if !ok {
			dangling("card_id", "Card id")
		}
	}

	if verr != nil {
		return verr
	}
	return nil
}

// UpdateScore rewrites the score fields of one log. It returns false when
// no log has that id; nothing is created in that case.
func (s *Service) UpdateScore(ctx context.Context, id uuid.UUID, in ScoreInput) (bool, error) {
	if err := s.validator.Struct(in); err != nil {
		return false, err
	}
	return s.logs.UpdateScore(ctx, id, *in.Score, in.ScoreType, in.Note)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Log, error) {
	return s.logs.GetByID(ctx, id)
}

// List returns every log, newest first, or ErrNoEntries when there are none.
func (s *Service) List(ctx context.Context) ([]Log, error) {
	logs, err := s.logs.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, ErrNoEntries
	}
	return logs, nil
}

// Report joins successful, positively scored logs with cards on card uid.
// Logs come newest first; a log whose uid matches several cards yields one
// row per card in card order. Logs without a card yield nothing.
func (s *Service) Report(ctx context.Context) ([]ReportRow, error) {
	logs, err := s.logs.ListScored(ctx)
	if err != nil {
		return nil, err
	}
	cards, err := s.cards.List(ctx)
	if err != nil {
		return nil, err
	}

	byUID := make(map[string][]card.Card, len(cards))
	for _, c := range cards {
		byUID[c.UID] = append(byUID[c.UID], c)
	}
	for uid, cs := range byUID {
		if len(cs) > 1 {
			s.logger.Warn("several cards share a uid; report rows will repeat", "uid", uid, "cards", len(cs))
		}
	}

	rows := make([]ReportRow, 0, len(logs))
	for _, l := range logs {
		matches, ok := byUID[l.CardID]
		if !ok {
			s.logger.Debug("scored log has no matching card", "log_id", l.ID, "card_id", l.CardID)
			continue
		}
		for _, c := range matches {
			rows = append(rows, ReportRow{
				CardID:    c.UID,
				Name:      c.Name,
				IDCard:    c.IDCard,
				Profield:  c.Profield,
				Score:     l.Score,
				ScoreType: l.ScoreType,
				Note:      l.Note,
				CreatedAt: l.CreatedAt,
			})
		}
	}
	return rows, nil
}
