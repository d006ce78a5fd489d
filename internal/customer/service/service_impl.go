package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/customerdir/internal/clock"
	"github.com/smallbiznis/customerdir/internal/config"
	"github.com/smallbiznis/customerdir/internal/customer/domain"
	"github.com/smallbiznis/customerdir/internal/customer/idgen"
	obslogger "github.com/smallbiznis/customerdir/internal/observability/logger"
	"github.com/smallbiznis/customerdir/internal/observability/metrics"
	"github.com/smallbiznis/customerdir/internal/observability/tracing"
	"github.com/smallbiznis/customerdir/internal/providers/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Repo     domain.Repository
	IDGen    idgen.Generator
	Clock    clock.Clock
	Config   *config.DirectoryConfigHolder
	Notifier email.Provider   `optional:"true"`
	Metrics  *metrics.Metrics `optional:"true"`
}

// Service owns the customer directory. Every operation, reads included, holds
// mu for its whole critical section.
type Service struct {
	mu sync.Mutex

	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	ids      idgen.Generator
	clock    clock.Clock
	cfg      *config.DirectoryConfigHolder
	notifier email.Provider
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

func New(p Params) domain.Service {
	return newService(p)
}

func newService(p Params) *Service {
	c := p.Clock
	if c == nil {
		c = clock.NewSystemClock()
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("customer.service"),
		repo:     p.Repo,
		ids:      p.IDGen,
		clock:    c,
		cfg:      p.Config,
		notifier: p.Notifier,
		metrics:  p.Metrics,
		tracer:   otel.Tracer("customer-directory/customer"),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCustomerRequest) (domain.Customer, error) {
	ctx, span := s.tracer.Start(ctx, "customer.Create")
	defer span.End()

	candidate, err := domain.NewCustomer(domain.NewCustomerInput{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		TaxNumber: req.TaxNumber,
		Address:   req.Address,
		CreatedBy: req.CreatedBy,
	}, s.clock.Now())
	if err != nil {
		s.finish(ctx, span, "create", err)
		return domain.Customer{}, err
	}

	stored, err := s.insert(ctx, candidate)
	s.finish(ctx, span, "create", err)
	if err != nil {
		return domain.Customer{}, err
	}
	span.SetAttributes(attribute.String("customer.id", stored.ID))

	obslogger.WithContext(ctx, s.log).Info("customer created",
		zap.String("customer_id", stored.ID),
		zap.String("created_by", stored.CreatedBy),
	)

	cfg := s.cfg.Get()
	if cfg.Notifications.OnCreate {
		s.notify(ctx, "customer_created", cfg.Notifications.Subject, stored)
	}
	return stored, nil
}

// insert allocates an unused id and stores c. The availability check and the
// insert share one critical section.
func (s *Service) insert(ctx context.Context, c *domain.Customer) (domain.Customer, error) {
	unlock := s.lock(ctx, "create")
	defer unlock()

	id, err := s.allocateID(ctx)
	if err != nil {
		return domain.Customer{}, err
	}
	c.ID = id

	if err := s.repo.Insert(ctx, s.db, c); err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			s.log.Error("customer id taken after availability check", zap.String("customer_id", id))
			return domain.Customer{}, fmt.Errorf("%w: customer id %s already stored", domain.ErrConflict, id)
		}
		return domain.Customer{}, err
	}
	return c.Clone(), nil
}

func (s *Service) allocateID(ctx context.Context) (string, error) {
	maxAttempts := s.cfg.Get().IDMaxAttempts
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		id, err := s.ids.Next()
		if err != nil {
			return "", err
		}
		taken, err := s.repo.Exists(ctx, s.db, id)
		if err != nil {
			return "", err
		}
		if !taken {
			s.metrics.RecordIDAttempts(ctx, attempt)
			return id, nil
		}
		s.log.Warn("customer id collision", zap.Int("attempt", attempt))
	}
	s.metrics.RecordIDAttempts(ctx, maxAttempts)
	return "", fmt.Errorf("%w after %d attempts", domain.ErrIDExhausted, maxAttempts)
}

func (s *Service) GetAllIDs(ctx context.Context) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "customer.GetAllIDs")
	defer span.End()

	unlock := s.lock(ctx, "get_all")
	ids, err := s.repo.ListIDs(ctx, s.db)
	unlock()

	s.finish(ctx, span, "get_all", err)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetCustomerRequest) (domain.Customer, error) {
	ctx, span := s.tracer.Start(ctx, "customer.GetByID", trace.WithAttributes(attribute.String("customer.id", req.ID)))
	defer span.End()

	if strings.TrimSpace(req.ID) == "" {
		s.finish(ctx, span, "get", domain.ErrInvalidID)
		return domain.Customer{}, domain.ErrInvalidID
	}

	unlock := s.lock(ctx, "get")
	c, err := s.repo.FindByID(ctx, s.db, req.ID)
	unlock()

	s.finish(ctx, span, "get", err)
	if err != nil {
		return domain.Customer{}, err
	}
	return c.Clone(), nil
}

// GetBulk copies the requested customers out under the lock. Unknown ids are
// left out and the result follows directory order.
func (s *Service) GetBulk(ctx context.Context, req domain.GetBulkRequest) ([]domain.Customer, error) {
	ctx, span := s.tracer.Start(ctx, "customer.GetBulk", trace.WithAttributes(attribute.Int("customer.requested", len(req.IDs))))
	defer span.End()

	unlock := s.lock(ctx, "get_bulk")
	found, err := s.repo.FindByIDs(ctx, s.db, req.IDs)
	unlock()

	s.finish(ctx, span, "get_bulk", err)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Customer, 0, len(found))
	for _, c := range found {
		out = append(out, c.Clone())
	}
	return out, nil
}

// FindByName returns the ids of customers whose name contains query, ignoring
// case. An empty query matches every customer.
func (s *Service) FindByName(ctx context.Context, req domain.FindCustomerRequest) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "customer.FindByName")
	defer span.End()

	needle := strings.ToLower(req.Query)
	ids := []string{}

	unlock := s.lock(ctx, "find")
	err := s.repo.Iterate(ctx, s.db, func(c *domain.Customer) error {
		if strings.Contains(strings.ToLower(c.Name), needle) {
			ids = append(ids, c.ID)
		}
		return nil
	})
	unlock()

	s.finish(ctx, span, "find", err)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Update replaces every mutable field of the customer. A rejected update
// leaves the stored record as it was.
func (s *Service) Update(ctx context.Context, req domain.UpdateCustomerRequest) (domain.Customer, error) {
	ctx, span := s.tracer.Start(ctx, "customer.Update", trace.WithAttributes(attribute.String("customer.id", req.ID)))
	defer span.End()

	if strings.TrimSpace(req.ID) == "" {
		s.finish(ctx, span, "update", domain.ErrInvalidID)
		return domain.Customer{}, domain.ErrInvalidID
	}

	unlock := s.lock(ctx, "update")
	updated, err := s.repo.Mutate(ctx, s.db, req.ID, func(c *domain.Customer) error {
		tn, err := domain.ParseTaxNumber(req.TaxNumber)
		if err != nil {
			return err
		}
		return c.Update(req.Name, req.Email, req.Phone, tn, req.Address)
	})
	unlock()

	s.finish(ctx, span, "update", err)
	if err != nil {
		return domain.Customer{}, err
	}

	obslogger.WithContext(ctx, s.log).Info("customer updated", zap.String("customer_id", updated.ID))

	cfg := s.cfg.Get()
	if cfg.Notifications.OnUpdate {
		s.notify(ctx, "customer_updated", cfg.Notifications.Subject, updated.Clone())
	}
	return updated.Clone(), nil
}

func (s *Service) AddUser(ctx context.Context, req domain.CustomerUserRequest) error {
	s.metrics.RecordOperation(ctx, "add_user", "unsupported")
	return domain.ErrUnsupported
}

func (s *Service) RemoveUser(ctx context.Context, req domain.CustomerUserRequest) error {
	s.metrics.RecordOperation(ctx, "remove_user", "unsupported")
	return domain.ErrUnsupported
}

// lock acquires the directory lock and returns its release func.
func (s *Service) lock(ctx context.Context, operation string) func() {
	start := time.Now()
	s.mu.Lock()
	s.metrics.RecordLockWait(ctx, operation, time.Since(start))
	return s.mu.Unlock
}

func (s *Service) finish(ctx context.Context, span trace.Span, operation string, err error) {
	outcome := outcomeOf(err)
	s.metrics.RecordOperation(ctx, operation, outcome)
	if err == nil {
		return
	}
	span.SetAttributes(attribute.String("outcome", outcome))
	if outcome == "error" || outcome == "conflict" {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, operation+" failed")
		obslogger.WithContext(ctx, s.log).Error("customer operation failed",
			zap.String("operation", operation),
			zap.Error(err),
		)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case domain.IsValidation(err), errors.Is(err, domain.ErrInvalidID):
		return "invalid"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrIDExhausted):
		return "conflict"
	default:
		return "error"
	}
}

// notify runs outside the lock. Delivery failures are logged and never fail
// the operation.
func (s *Service) notify(ctx context.Context, templateName, subject string, c domain.Customer) {
	if s.notifier == nil || c.Email == "" {
		return
	}
	err := s.notifier.SendTemplate(ctx, []string{c.Email}, templateName, map[string]any{
		"subject":     subject,
		"name":        c.Name,
		"customer_id": c.ID,
	})
	if err != nil {
		obslogger.WithContext(ctx, s.log).Warn("customer notification failed",
			zap.String("customer_id", c.ID),
			zap.String("template", templateName),
			zap.Error(err),
		)
	}
}
