package fulfillment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"hostbot/internal/catalog"
	"hostbot/internal/model"
	"hostbot/internal/provisioning"
	"hostbot/internal/repository"
	"hostbot/internal/resilience"
	"hostbot/internal/service"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu          sync.Mutex
	created     []string
	changes     []model.StatusChange
	provisioned []model.Credentials
	failed      []resilience.Reason
	comps       []string
	ctxErrs     []error
}

func (n *recordingNotifier) OrderCreated(_ context.Context, order model.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, order.ID)
	return nil
}

func (n *recordingNotifier) StatusChanged(_ context.Context, change model.StatusChange) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, change)
	return nil
}

func (n *recordingNotifier) Provisioned(ctx context.Context, _ model.Order, creds model.Credentials) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ctxErrs = append(n.ctxErrs, ctx.Err())
	n.provisioned = append(n.provisioned, creds)
	return nil
}

func (n *recordingNotifier) ProvisioningFailed(ctx context.Context, _ model.Order, reason resilience.Reason, _ error, compensation string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ctxErrs = append(n.ctxErrs, ctx.Err())
	n.failed = append(n.failed, reason)
	n.comps = append(n.comps, compensation)
	return nil
}

// fakeProvisioner completes orders through the lifecycle manager, or
// fails with failErr when it is set.
type fakeProvisioner struct {
	orders  service.OrderService
	auto    bool
	failErr error
	comp    *provisioning.Compensation

	mu     sync.Mutex
	calls  int
	ctxErr error
}

func (p *fakeProvisioner) Provision(ctx context.Context, id string) (*provisioning.Result, error) {
	p.mu.Lock()
	p.calls++
	p.ctxErr = ctx.Err()
	p.mu.Unlock()

	order, err := p.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != model.StatusConfirmed {
		return nil, &model.IllegalTransitionError{OrderID: order.ID, From: order.Status, To: model.StatusCompleted}
	}
	if p.failErr != nil {
		return &provisioning.Result{OrderID: order.ID, Reason: resilience.Classify(p.failErr), Err: p.failErr, Compensation: p.comp}, nil
	}

	change, err := p.orders.CompleteFulfillment(ctx, id, "42", model.ActorProvisioner, "Server provisioned")
	if err != nil {
		return nil, err
	}
	return &provisioning.Result{
		OrderID:     order.ID,
		Success:     true,
		ServerID:    "42",
		Credentials: &model.Credentials{ServerID: "42", Password: "pw"},
		Change:      change,
	}, nil
}

func (p *fakeProvisioner) RetryProvisioning(ctx context.Context, id string) (*provisioning.Result, error) {
	return p.Provision(ctx, id)
}

func (p *fakeProvisioner) IsAutoProvisioningEnabled() bool { return p.auto }

func newEngine(t *testing.T, auto bool) (*Engine, *fakeProvisioner, *recordingNotifier) {
	t.Helper()
	packages := catalog.NewMapCatalog(model.Package{Key: "A1", Name: "Starter", Price: decimal.NewFromInt(5000), Active: true})
	orders := service.NewOrderService(repository.NewMemoryRepository(), packages, zerolog.Nop())
	prov := &fakeProvisioner{orders: orders, auto: auto}
	notifier := &recordingNotifier{}
	return New(orders, prov, notifier, zerolog.Nop()), prov, notifier
}

func place(t *testing.T, e *Engine) *model.Order {
	t.Helper()
	order, err := e.PlaceOrder(context.Background(), model.CreateOrderRequest{
		Customer: model.Customer{Phone: "628123"}, PackageKey: "A1", Duration: 1,
	})
	require.NoError(t, err)
	return order
}

func TestEngine_PlaceOrderNotifies(t *testing.T) {
	e, _, n := newEngine(t, false)
	order := place(t, e)
	assert.Equal(t, []string{order.ID}, n.created)

	_, err := e.PlaceOrder(context.Background(), model.CreateOrderRequest{Customer: model.Customer{Phone: "1"}, PackageKey: "A1"})
	assert.True(t, model.IsValidation(err))
	assert.Len(t, n.created, 1)
}

func TestEngine_TransitionNotifiesOnlyOnSuccess(t *testing.T) {
	e, prov, n := newEngine(t, false)
	order := place(t, e)
	ctx := context.Background()

	_, err := e.Transition(ctx, order.ID, model.StatusCompleted, "admin", "")
	assert.True(t, model.IsIllegalTransition(err))
	assert.Empty(t, n.changes)

	change, err := e.Confirm(ctx, order.ID, "admin", "paid")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, change.To)
	require.Len(t, n.changes, 1)

	e.Wait()
	assert.Zero(t, prov.calls, "auto-provisioning is off")

	_, err = e.Cancel(ctx, order.ID, "admin", "duplicate")
	require.NoError(t, err)
	assert.Len(t, n.changes, 2)
}

func TestEngine_ConfirmAutoProvisions(t *testing.T) {
	e, prov, n := newEngine(t, true)
	order := place(t, e)

	_, err := e.Confirm(context.Background(), order.ID, "admin", "")
	require.NoError(t, err)
	e.Wait()

	assert.Equal(t, 1, prov.calls)
	require.Len(t, n.provisioned, 1)
	assert.Equal(t, "42", n.provisioned[0].ServerID)

	got, err := e.Orders().GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
}

func TestEngine_ProvisionFailureNotifiesAdmins(t *testing.T) {
	e, prov, n := newEngine(t, false)
	order := place(t, e)
	ctx := context.Background()

	_, err := e.Confirm(ctx, order.ID, "admin", "")
	require.NoError(t, err)

	prov.failErr = &resilience.ExternalCallError{Op: "panel.create_server", Reason: resilience.ReasonNetwork, Attempts: 2, Err: errors.New("connection refused")}
	prov.comp = &provisioning.Compensation{UserID: 9, Succeeded: true}

	result, err := e.Provision(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, n.failed, 1)
	assert.Equal(t, resilience.ReasonNetwork, n.failed[0])
	assert.Contains(t, n.comps[0], "account 9")

	got, err := e.Orders().GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status)

	prov.failErr = nil
	result, err = e.RetryProvisioning(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Len(t, n.provisioned, 1)
}

func TestEngine_ProvisionIgnoresCallerCancellation(t *testing.T) {
	e, prov, n := newEngine(t, false)
	order := place(t, e)

	_, err := e.Confirm(context.Background(), order.ID, "admin", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := e.Provision(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NoError(t, prov.ctxErr)
	assert.Equal(t, []error{nil}, n.ctxErrs, "the outcome is notified on a live context")

	got, err := e.Orders().GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
}

func TestEngine_ProvisionRejectsPending(t *testing.T) {
	e, _, n := newEngine(t, false)
	order := place(t, e)

	_, err := e.Provision(context.Background(), order.ID)
	assert.True(t, model.IsIllegalTransition(err))
	assert.Empty(t, n.failed)
}

func TestEngine_Complete(t *testing.T) {
	e, _, n := newEngine(t, false)
	ctx := context.Background()

	withServer := place(t, e)
	_, err := e.Confirm(ctx, withServer.ID, "admin", "")
	require.NoError(t, err)

	change, err := e.Complete(ctx, withServer.ID, "srv-9", "admin", "manual")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, change.To)
	assert.Equal(t, "srv-9", *change.Order.ServerID)

	plain := place(t, e)
	_, err = e.Confirm(ctx, plain.ID, "admin", "")
	require.NoError(t, err)
	_, err = e.Complete(ctx, plain.ID, "", "admin", "")
	assert.True(t, model.IsIllegalTransition(err), "confirmed -> completed needs a server")

	assert.Len(t, n.changes, 3)
}

func TestEngine_SetServerID(t *testing.T) {
	e, _, _ := newEngine(t, false)
	order := place(t, e)

	got, err := e.SetServerID(context.Background(), order.ID, "77")
	require.NoError(t, err)
	assert.Equal(t, "77", *got.ServerID)
}
