package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hylla/taskmon/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// defaultProductivityWindowDays is the trailing window used when none is configured.
const defaultProductivityWindowDays = 30

// MinPasswordLength bounds accepted passwords.
const MinPasswordLength = 8

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	// OperationTimeout bounds each repository round trip. Zero disables the deadline.
	OperationTimeout         time.Duration
	LateGrace                time.Duration
	EnforceStartDependencies bool
	ProductivityWindowDays   int
	Location                 *time.Location
	PasswordCost             int
	Cache                    DashboardCache
	// Logger receives cache failures, which never fail the operation itself.
	Logger *log.Logger
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service implements the activity lifecycle, ledger, dependency, metrics and audit operations.
type Service struct {
	repo             Repository
	idGen            IDGenerator
	clock            Clock
	timeout          time.Duration
	lateGrace        time.Duration
	enforceStartDeps bool
	windowDays       int
	loc              *time.Location
	passwordCost     int
	cache            DashboardCache
	logger           *log.Logger
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.ProductivityWindowDays <= 0 {
		cfg.ProductivityWindowDays = defaultProductivityWindowDays
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.PasswordCost == 0 {
		cfg.PasswordCost = bcrypt.DefaultCost
	}
	if cfg.LateGrace < 0 {
		cfg.LateGrace = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}

	return &Service{
		repo:             repo,
		idGen:            idGen,
		clock:            clock,
		timeout:          cfg.OperationTimeout,
		lateGrace:        cfg.LateGrace,
		enforceStartDeps: cfg.EnforceStartDependencies,
		windowDays:       cfg.ProductivityWindowDays,
		loc:              cfg.Location,
		passwordCost:     cfg.PasswordCost,
		cache:            cfg.Cache,
		logger:           cfg.Logger,
	}
}

// withTimeout applies the configured per-operation deadline.
func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// mutate runs fn inside one repository transaction and drops cached dashboards on success.
func (s *Service) mutate(ctx context.Context, fn func(context.Context, Repository) error) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.repo.WithinTx(ctx, func(tx Repository) error {
		return fn(ctx, tx)
	})
	if err != nil {
		return classify(err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("dashboard cache invalidation failed", "err", err)
		}
	}
	return nil
}

// read runs fn with the configured deadline and classifies its error.
func (s *Service) read(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := fn(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// audit appends one audit entry inside the caller's transaction.
func (s *Service) audit(ctx context.Context, tx Repository, actorID string, action domain.AuditAction, details string) error {
	entry, err := domain.NewAuditEntry(actorID, action, details, s.clock())
	if err != nil {
		return err
	}
	if err := tx.AppendAudit(ctx, entry); err != nil {
		return fmt.Errorf("append audit %s: %w", action, err)
	}
	return nil
}

// knownErrors are surfaced unchanged; anything else is a storage failure.
var knownErrors = []error{
	domain.ErrValidation,
	domain.ErrDependencyUnmet,
	domain.ErrCycle,
	ErrNotFound,
	ErrStorage,
	ErrForbidden,
	ErrActorRequired,
	ErrConflict,
	ErrInvalidCredentials,
	ErrAlreadyProvisioned,
}

// classify wraps unknown errors with ErrStorage so callers can hide internal details.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range knownErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}

// RecordAudit appends one audit entry for the context actor.
func (s *Service) RecordAudit(ctx context.Context, action domain.AuditAction, details string) error {
	actor, err := requireActor(ctx)
	if err != nil {
		return err
	}
	return s.mutate(ctx, func(ctx context.Context, tx Repository) error {
		return s.audit(ctx, tx, actor.UserID, action, details)
	})
}

// ListAudit returns the newest audit entries. Admin only.
func (s *Service) ListAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}
	if limit <= 0 {
		limit = 100
	}
	var out []domain.AuditEntry
	err = s.read(ctx, func(ctx context.Context) error {
		entries, err := s.repo.ListAudit(ctx, limit)
		out = entries
		return err
	})
	return out, err
}

// detailPairs formats audit details as stable key=value pairs.
func detailPairs(kv ...string) string {
	parts := make([]string, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		parts = append(parts, kv[i]+"="+kv[i+1])
	}
	return strings.Join(parts, " ")
}
