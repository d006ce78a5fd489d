package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/customerdir/internal/clock"
	"github.com/smallbiznis/customerdir/internal/config"
	"github.com/smallbiznis/customerdir/internal/customer/customertest"
	"github.com/smallbiznis/customerdir/internal/customer/domain"
	"github.com/smallbiznis/customerdir/internal/customer/idgen"
	"github.com/smallbiznis/customerdir/internal/customer/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type notifierStub struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

type sentNotification struct {
	to       []string
	template string
	data     map[string]any
}

func (n *notifierStub) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return n.err
}

func (n *notifierStub) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{to: to, template: templateName, data: data})
	return n.err
}

func (n *notifierStub) Sent() []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentNotification(nil), n.sent...)
}

// sequenceGenerator replays ids in order, then fails.
type sequenceGenerator struct {
	mu  sync.Mutex
	ids []string
}

func (g *sequenceGenerator) Next() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.ids) == 0 {
		return "", errors.New("sequence exhausted")
	}
	id := g.ids[0]
	g.ids = g.ids[1:]
	return id, nil
}

type testEnv struct {
	svc      *Service
	db       *gorm.DB
	notifier *notifierStub
}

type option func(*Params)

func withGenerator(g idgen.Generator) option {
	return func(p *Params) { p.IDGen = g }
}

func withDirectoryConfig(cfg config.DirectoryConfig) option {
	return func(p *Params) { p.Config = config.NewStaticDirectoryConfigHolder(cfg) }
}

func setupService(t *testing.T, opts ...option) testEnv {
	t.Helper()

	db := customertest.OpenDB(t)
	notifier := &notifierStub{}
	cfg := config.DefaultDirectoryConfig()
	p := Params{
		DB:       db,
		Log:      zap.NewNop(),
		Repo:     repository.Provide(),
		Clock:    clock.NewFakeClock(testNow),
		Config:   config.NewStaticDirectoryConfigHolder(cfg),
		Notifier: notifier,
	}
	p.IDGen = idgen.NewRandom(func() int { return p.Config.Get().IDLength })
	for _, opt := range opts {
		opt(&p)
	}
	return testEnv{svc: newService(p), db: db, notifier: notifier}
}

func janeDoe() domain.CreateCustomerRequest {
	return domain.CreateCustomerRequest{
		Name:      "Jane Doe",
		Address:   domain.Address{Zip: "1000", Location: "City", Street: "Main 1"},
		CreatedBy: "u1",
	}
}

func countCustomers(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := db.Table("customers").Count(&count).Error; err != nil {
		t.Fatalf("count customers: %v", err)
	}
	return count
}

func TestCreateAssignsIDAndStores(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	created, err := env.svc.Create(ctx, janeDoe())
	require.NoError(t, err)

	assert.Len(t, created.ID, config.DefaultDirectoryConfig().IDLength)
	assert.Equal(t, "Jane Doe", created.Name)
	assert.Equal(t, "", created.Email)
	assert.Equal(t, "", created.Phone)
	assert.True(t, created.TaxNumber.IsZero())
	assert.Equal(t, domain.Address{Zip: "1000", Location: "City", Street: "Main 1"}, created.Address)
	assert.Equal(t, "u1", created.CreatedBy)
	assert.Equal(t, testNow, created.DateCreated)

	got, err := env.svc.GetByID(ctx, domain.GetCustomerRequest{ID: created.ID})
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestCreateRejectsShortName(t *testing.T) {
	env := setupService(t)

	req := janeDoe()
	req.Name = "A"
	_, err := env.svc.Create(context.Background(), req)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidName)
	assert.True(t, domain.IsValidation(err))
	assert.Equal(t, int64(0), countCustomers(t, env.db))
}

func TestCreateRejectsInvalidTaxNumber(t *testing.T) {
	env := setupService(t)

	req := janeDoe()
	req.TaxNumber = "12345678-9-99"
	_, err := env.svc.Create(context.Background(), req)

	assert.ErrorIs(t, err, domain.ErrInvalidTaxNumber)
	assert.Equal(t, int64(0), countCustomers(t, env.db))
}

func TestCreateRetriesTakenIDs(t *testing.T) {
	gen := &sequenceGenerator{ids: []string{"first1", "first1", "second"}}
	env := setupService(t, withGenerator(gen))
	ctx := context.Background()

	a, err := env.svc.Create(ctx, janeDoe())
	require.NoError(t, err)
	assert.Equal(t, "first1", a.ID)

	b, err := env.svc.Create(ctx, janeDoe())
	require.NoError(t, err)
	assert.Equal(t, "second", b.ID)
}

func TestCreateGivesUpAfterMaxAttempts(t *testing.T) {
	cfg := config.DefaultDirectoryConfig()
	cfg.IDMaxAttempts = 2
	gen := &sequenceGenerator{ids: []string{"same01", "same01", "same01"}}
	env := setupService(t, withGenerator(gen), withDirectoryConfig(cfg))
	ctx := context.Background()

	_, err := env.svc.Create(ctx, janeDoe())
	require.NoError(t, err)

	_, err = env.svc.Create(ctx, janeDoe())
	assert.ErrorIs(t, err, domain.ErrIDExhausted)
	assert.Equal(t, int64(1), countCustomers(t, env.db))
}

func TestConcurrentCreateYieldsDistinctIDs(t *testing.T) {
	const n = 50

	cfg := config.DefaultDirectoryConfig()
	cfg.IDLength = config.MinCustomerIDLength
	env := setupService(t, withDirectoryConfig(cfg))
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := janeDoe()
			req.Name = fmt.Sprintf("Customer %02d", i)
			c, err := env.svc.Create(ctx, req)
			ids[i] = c.ID
			errs[i] = err
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		_, dup := seen[ids[i]]
		require.False(t, dup, "duplicate id %s", ids[i])
		seen[ids[i]] = struct{}{}
	}
	assert.Equal(t, int64(n), countCustomers(t, env.db))

	all, err := env.svc.GetAllIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, all, n)
}

func TestGetByID(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	created, err := env.svc.Create(ctx, janeDoe())
	require.NoError(t, err)

	first, err := env.svc.GetByID(ctx, domain.GetCustomerRequest{ID: created.ID})
	require.NoError(t, err)
	second, err := env.svc.GetByID(ctx, domain.GetCustomerRequest{ID: created.ID})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = env.svc.GetByID(ctx, domain.GetCustomerRequest{ID: "missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.svc.GetByID(ctx, domain.GetCustomerRequest{ID: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestGetBulkOmitsUnknownIDs(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	one, err := env.svc.Create(ctx, janeDoe())
	require.NoError(t, err)
	req := janeDoe()
	req.Name = "John Smith"
	two, err := env.svc.Create(ctx, req)
	require.NoError(t, err)

	got, err := env.svc.GetBulk(ctx, domain.GetBulkRequest{IDs: []string{two.ID, "unknown", one.ID}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, one.ID, got[0].ID)
	assert.Equal(t, two.ID, got[1].ID)

	empty, err := env.svc.GetBulk(ctx, domain.GetBulkRequest{})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFindByName(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	jane, err := env.svc.Create(ctx, janeDoe())
	require.NoError(t, err)
	req := janeDoe()
	req.Name = "John Smith"
	john, err := env.svc.Create(ctx, req)
	require.NoError(t, err)

	ids, err := env.svc.FindByName(ctx, domain.FindCustomerRequest{Query: "doe"})
	require.NoError(t, err)
	assert.Equal(t, []string{jane.ID}, ids)

	ids, err = env.svc.FindByName(ctx, domain.FindCustomerRequest{Query: "SMITH"})
	require.NoError(t, err)
	assert.Equal(t, []string{john.ID}, ids)

	ids, err = env.svc.FindByName(ctx, domain.FindCustomerRequest{Query: ""})
	require.NoError(t, err)
	assert.Equal(t, []string{jane.ID, john.ID}, ids)

	ids, err = env.svc.FindByName(ctx, domain.FindCustomerRequest{Query: "nobody"})
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

func TestUpdate(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	req := janeDoe()
	req.Email = "jane@example.com"
	created, err := env.svc.Create(ctx, req)
	require.NoError(t, err)

	t.Run("replaces mutable fields", func(t *testing.T) {
		updated, err := env.svc.Update(ctx, domain.UpdateCustomerRequest{
			ID:        created.ID,
			Name:      "Jane Smith",
			Email:     "smith@example.com",
			Phone:     "555",
			TaxNumber: "10773381244",
			Address:   domain.Address{Zip: "2000", Location: "Town", Street: "Side 2"},
		})
		require.NoError(t, err)
		assert.Equal(t, created.ID, updated.ID)
		assert.Equal(t, created.DateCreated, updated.DateCreated)
		assert.Equal(t, created.CreatedBy, updated.CreatedBy)
		assert.Equal(t, "10773381-2-44", updated.TaxNumber.String())

		got, err := env.svc.GetByID(ctx, domain.GetCustomerRequest{ID: created.ID})
		require.NoError(t, err)
		assert.Equal(t, updated, got)
	})

	t.Run("invalid email leaves record unchanged", func(t *testing.T) {
		before, err := env.svc.GetByID(ctx, domain.GetCustomerRequest{ID: created.ID})
		require.NoError(t, err)

		_, err = env.svc.Update(ctx, domain.UpdateCustomerRequest{
			ID:    created.ID,
			Name:  "Changed Name",
			Email: "not-an-email",
		})
		assert.ErrorIs(t, err, domain.ErrInvalidEmail)

		after, err := env.svc.GetByID(ctx, domain.GetCustomerRequest{ID: created.ID})
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("invalid name leaves record unchanged", func(t *testing.T) {
		before, err := env.svc.GetByID(ctx, domain.GetCustomerRequest{ID: created.ID})
		require.NoError(t, err)

		_, err = env.svc.Update(ctx, domain.UpdateCustomerRequest{
			ID:   created.ID,
			Name: strings.Repeat("x", domain.NameMaxLength+1),
		})
		assert.ErrorIs(t, err, domain.ErrInvalidName)

		after, err := env.svc.GetByID(ctx, domain.GetCustomerRequest{ID: created.ID})
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("invalid tax number leaves record unchanged", func(t *testing.T) {
		before, err := env.svc.GetByID(ctx, domain.GetCustomerRequest{ID: created.ID})
		require.NoError(t, err)

		_, err = env.svc.Update(ctx, domain.UpdateCustomerRequest{
			ID:        created.ID,
			Name:      "Jane Smith",
			TaxNumber: "123",
		})
		assert.ErrorIs(t, err, domain.ErrInvalidTaxNumber)

		after, err := env.svc.GetByID(ctx, domain.GetCustomerRequest{ID: created.ID})
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := env.svc.Update(ctx, domain.UpdateCustomerRequest{ID: "missing", Name: "Valid Name"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestNotifications(t *testing.T) {
	cfg := config.DefaultDirectoryConfig()
	cfg.Notifications.OnCreate = true
	cfg.Notifications.OnUpdate = true
	env := setupService(t, withDirectoryConfig(cfg))
	ctx := context.Background()

	_, err := env.svc.Create(ctx, janeDoe())
	require.NoError(t, err)
	assert.Empty(t, env.notifier.Sent(), "customers without email are not notified")

	req := janeDoe()
	req.Email = "jane@example.com"
	created, err := env.svc.Create(ctx, req)
	require.NoError(t, err)

	_, err = env.svc.Update(ctx, domain.UpdateCustomerRequest{ID: created.ID, Name: "Jane Smith", Email: "jane@example.com"})
	require.NoError(t, err)

	sent := env.notifier.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "customer_created", sent[0].template)
	assert.Equal(t, []string{"jane@example.com"}, sent[0].to)
	assert.Equal(t, created.ID, sent[0].data["customer_id"])
	assert.Equal(t, cfg.Notifications.Subject, sent[0].data["subject"])
	assert.Equal(t, "customer_updated", sent[1].template)
	assert.Equal(t, "Jane Smith", sent[1].data["name"])
}

func TestNotificationFailureDoesNotFailCreate(t *testing.T) {
	cfg := config.DefaultDirectoryConfig()
	cfg.Notifications.OnCreate = true
	env := setupService(t, withDirectoryConfig(cfg))
	env.notifier.err = errors.New("smtp down")

	req := janeDoe()
	req.Email = "jane@example.com"
	_, err := env.svc.Create(context.Background(), req)

	require.NoError(t, err)
	assert.Len(t, env.notifier.Sent(), 1)
	assert.Equal(t, int64(1), countCustomers(t, env.db))
}

func TestNotificationsDisabledByDefault(t *testing.T) {
	env := setupService(t)

	req := janeDoe()
	req.Email = "jane@example.com"
	_, err := env.svc.Create(context.Background(), req)

	require.NoError(t, err)
	assert.Empty(t, env.notifier.Sent())
}

func TestUserMembershipIsUnsupported(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	err := env.svc.AddUser(ctx, domain.CustomerUserRequest{CustomerID: "abc", UserID: "u1"})
	assert.ErrorIs(t, err, domain.ErrUnsupported)

	err = env.svc.RemoveUser(ctx, domain.CustomerUserRequest{CustomerID: "abc", UserID: "u1"})
	assert.ErrorIs(t, err, domain.ErrUnsupported)
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, "ok", outcomeOf(nil))
	assert.Equal(t, "invalid", outcomeOf(domain.ValidateName("A")))
	assert.Equal(t, "not_found", outcomeOf(domain.ErrNotFound))
	assert.Equal(t, "conflict", outcomeOf(fmt.Errorf("%w: x", domain.ErrConflict)))
	assert.Equal(t, "error", outcomeOf(errors.New("disk full")))
}
