package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"eventplace/internal/config"
	"eventplace/internal/database"
	"eventplace/internal/domain"
	"eventplace/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var _ domain.Gateway = (*database.DB)(nil)

var (
	eventDate   = time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	confirmedAt = time.Date(2025, 5, 20, 9, 30, 0, 0, time.UTC)
)

type fixture struct {
	db      *database.DB
	booking *models.Booking
	event   *models.Event
	enabler *models.Enabler
	host    *models.User
}

func (f *fixture) entities() Entities {
	return Entities{Booking: f.booking, Event: f.event, Enabler: f.enabler, Host: f.host}
}

func newFixture(t *testing.T, withAdmin bool) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	f := &fixture{db: db}

	f.host = &models.User{FullName: "Hana Host", Email: "hana@example.com"}
	require.NoError(t, db.CreateUser(ctx, f.host))

	enablerUser := &models.User{FullName: "Max Beats"}
	require.NoError(t, db.CreateUser(ctx, enablerUser))

	if withAdmin {
		require.NoError(t, db.CreateUser(ctx, &models.User{FullName: "Ops", Role: models.RoleAdmin}))
	}

	f.enabler = &models.Enabler{UserID: enablerUser.ID, BusinessName: "DJ Max", Category: "music"}
	require.NoError(t, db.CreateEnabler(ctx, f.enabler))

	f.event = &models.Event{HostID: f.host.ID, Name: "Summer Wedding", EventType: "wedding", Date: eventDate, Location: "Lisbon", GuestCount: 120}
	require.NoError(t, db.CreateEvent(ctx, f.event))

	f.booking = &models.Booking{EventID: f.event.ID, EnablerID: f.enabler.ID, PackageID: "gold", TotalAmount: 1000.00}
	require.NoError(t, db.CreateBooking(ctx, f.booking))

	return f
}

// fakeReasoner answers with canned checklists, telling the audiences apart by category enum.
type fakeReasoner struct {
	mu      sync.Mutex
	calls   int
	err     error
	delay   time.Duration
	enabler string
	host    string
}

func newFakeReasoner() *fakeReasoner {
	return &fakeReasoner{
		enabler: checklistJSON(8, enablerChecklist.categories, "Bring backup cables"),
		host:    checklistJSON(6, hostChecklist.categories, ""),
	}
}

func (r *fakeReasoner) Generate(ctx context.Context, _ string, schema map[string]any) (json.RawMessage, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()

	if r.err != nil {
		return nil, r.err
	}
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, _ := json.Marshal(schema)
	if strings.Contains(string(data), `"preparation"`) {
		return json.RawMessage(r.enabler), nil
	}
	return json.RawMessage(r.host), nil
}

// checklistJSON builds n valid items cycling over categories, plus one item with a bogus category if extra is set.
func checklistJSON(n int, categories []string, extra string) string {
	items := make([]map[string]any, 0, n+1)
	for i := 0; i < n; i++ {
		items = append(items, map[string]any{
			"task":     fmt.Sprintf("task %d", i+1),
			"required": i%2 == 0,
			"category": categories[i%len(categories)],
		})
	}
	if extra != "" {
		items = append(items, map[string]any{"task": extra, "required": true, "category": "catering"})
	}
	data, _ := json.Marshal(map[string]any{"items": items})
	return string(data)
}

type flakyGateway struct {
	*database.DB
	createContractErr error
	createEscrowErr   error
	notificationErr   error
}

func (g *flakyGateway) CreateContract(ctx context.Context, c *models.SmartContract) error {
	if g.createContractErr != nil {
		return g.createContractErr
	}
	return g.DB.CreateContract(ctx, c)
}

func (g *flakyGateway) CreateEscrowAccount(ctx context.Context, e *models.EscrowAccount) error {
	if g.createEscrowErr != nil {
		return g.createEscrowErr
	}
	return g.DB.CreateEscrowAccount(ctx, e)
}

func (g *flakyGateway) CreateSystemNotification(ctx context.Context, n *models.SystemNotification) error {
	if g.notificationErr != nil {
		return g.notificationErr
	}
	return g.DB.CreateSystemNotification(ctx, n)
}

var errStoreDown = errors.New("store unavailable")

func testSagaConfig() config.SagaConfig {
	rate := 0.10
	return config.SagaConfig{
		EngineCode:      "ABE",
		CommissionRate:  &rate,
		EscrowHoldHours: 72,
		Currency:        "USD",
		StepTimeout:     2 * time.Second,
		DashboardURL:    "https://app.example.com/",
	}
}

func newTestExecutor(t *testing.T, gw domain.Gateway, reasoner domain.Reasoner) *Executor {
	t.Helper()
	logger := zerolog.Nop()
	x, err := NewExecutor(gw, reasoner, testSagaConfig(), time.Second, &logger)
	require.NoError(t, err)
	return x
}

type blockingReasoner struct{}

func (blockingReasoner) Generate(ctx context.Context, _ string, _ map[string]any) (json.RawMessage, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
