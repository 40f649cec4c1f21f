// Package provisioning turns confirmed orders into servers on the hosting
// panel.
package provisioning

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"hostbot/internal/catalog"
	"hostbot/internal/model"
	"hostbot/internal/panel"
	"hostbot/internal/resilience"

	"github.com/rs/zerolog"
)

// ErrInProgress is returned when the order is already being provisioned.
var ErrInProgress = errors.New("provisioning already in progress")

// Panel is the subset of the panel API the orchestrator uses.
type Panel interface {
	Configured() bool
	BaseURL() string
	CreateUser(ctx context.Context, req panel.CreateUserRequest) (*panel.User, error)
	DeleteUser(ctx context.Context, id int) error
	CreateServer(ctx context.Context, req panel.CreateServerRequest) (*panel.Server, error)
	ServerByExternalID(ctx context.Context, externalID string) (*panel.Server, error)
	GetServer(ctx context.Context, id int) (*panel.Server, error)
	SuspendServer(ctx context.Context, id int) error
	UnsuspendServer(ctx context.Context, id int) error
	Power(ctx context.Context, identifier, signal string) error
	ListNodes(ctx context.Context) ([]panel.Node, error)
}

// Orders is the part of the lifecycle manager the orchestrator needs.
type Orders interface {
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	CompleteFulfillment(ctx context.Context, id, serverID, actor, note string) (*model.StatusChange, error)
}

// Template holds the fixed parts of every server request.
type Template struct {
	EmailDomain string
	LocationID  int
	EggID       int
	DockerImage string
	Startup     string
}

// Result describes one provisioning attempt.
type Result struct {
	OrderID      string
	Success      bool
	Reused       bool
	ServerID     string
	Credentials  *model.Credentials
	Change       *model.StatusChange
	Reason       resilience.Reason
	Err          error
	Compensation *Compensation
	Duration     time.Duration
}

// Compensation reports the cleanup of an account created by a failed attempt.
type Compensation struct {
	UserID    int
	Succeeded bool
	Err       error
}

// Status is the result of an auto-provisioning status check.
type Status struct {
	Enabled    bool   `json:"enabled"`
	Configured bool   `json:"configured"`
	PanelURL   string `json:"panelUrl,omitempty"`
	Reachable  bool   `json:"reachable"`
	Nodes      int    `json:"nodes"`
	Error      string `json:"error,omitempty"`
}

// Orchestrator provisions servers for orders.
type Orchestrator struct {
	orders        Orders
	catalog       catalog.Catalog
	panel         Panel
	executor      *resilience.Executor
	template      Template
	autoProvision bool
	logger        zerolog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New creates an orchestrator.
func New(
	orders Orders,
	packages catalog.Catalog,
	p Panel,
	executor *resilience.Executor,
	template Template,
	autoProvision bool,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		orders:        orders,
		catalog:       packages,
		panel:         p,
		executor:      executor,
		template:      template,
		autoProvision: autoProvision,
		logger:        logger.With().Str("component", "provisioning").Logger(),
		inflight:      make(map[string]struct{}),
	}
}

// Provision creates the panel account and server for a confirmed order
// and completes it. External failures are reported in the Result and leave
// the order confirmed. The returned error is reserved for orders that
// cannot be provisioned at all.
//
// Once started, an attempt is not cancelled by ctx: each panel call is
// bounded by the executor's timeout, and compensation always runs.
func (o *Orchestrator) Provision(ctx context.Context, orderID string) (*Result, error) {
	ctx = context.WithoutCancel(ctx)

	order, err := o.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.StatusConfirmed {
		return nil, &model.IllegalTransitionError{OrderID: order.ID, From: order.Status, To: model.StatusCompleted}
	}

	if !o.acquire(order.ID) {
		return nil, ErrInProgress
	}
	defer o.release(order.ID)

	start := time.Now()
	result := o.provision(ctx, order)
	result.OrderID = order.ID
	result.Duration = time.Since(start)

	event := o.logger.Info()
	if !result.Success {
		event = o.logger.Error().Err(result.Err).Str("reason", string(result.Reason))
	}
	event.
		Str("order_id", order.ID).
		Bool("success", result.Success).
		Bool("reused", result.Reused).
		Str("server_id", result.ServerID).
		Dur("duration", result.Duration).
		Msg("provisioning finished")

	return result, nil
}

// RetryProvisioning runs Provision again. It is safe to call repeatedly
// while the order is confirmed.
func (o *Orchestrator) RetryProvisioning(ctx context.Context, orderID string) (*Result, error) {
	o.logger.Info().Str("order_id", orderID).Msg("retrying provisioning")
	return o.Provision(ctx, orderID)
}

func (o *Orchestrator) provision(ctx context.Context, order *model.Order) *Result {
	if !o.panel.Configured() {
		return failed(resilience.ReasonCritical, panel.ErrNotConfigured)
	}

	if order.HasServer() {
		return o.complete(ctx, order, *order.ServerID, nil, true)
	}

	existing, err := resilience.Call(ctx, o.executor, "panel.find_server", func(ctx context.Context) (*panel.Server, error) {
		return o.panel.ServerByExternalID(ctx, order.ID)
	})
	if err != nil {
		return failed(resilience.Classify(err), err)
	}
	if existing != nil {
		o.logger.Info().Str("order_id", order.ID).Int("server_id", existing.ID).Msg("server already exists on panel")
		return o.complete(ctx, order, strconv.Itoa(existing.ID), nil, true)
	}

	pkg, ok := o.catalog.Get(order.PackageKey)
	if !ok {
		return failed(resilience.ReasonCritical, model.PackageNotFound(order.PackageKey))
	}

	account := o.accountRequest(order)
	user, err := resilience.Call(ctx, o.executor, "panel.create_user", func(ctx context.Context) (*panel.User, error) {
		return o.panel.CreateUser(ctx, account)
	})
	if err != nil {
		return failed(resilience.Classify(err), err)
	}
	o.logger.Debug().
		Str("order_id", order.ID).
		Str("username", account.Username).
		Str("password", account.Password).
		Msg("panel account created")

	server, err := resilience.Call(ctx, o.executor, "panel.create_server", func(ctx context.Context) (*panel.Server, error) {
		return o.panel.CreateServer(ctx, o.serverRequest(order, pkg, user.ID))
	})
	if err != nil {
		result := failed(resilience.Classify(err), err)
		result.Compensation = o.compensate(ctx, order.ID, user.ID)
		return result
	}

	creds := &model.Credentials{
		PanelURL:         o.panel.BaseURL(),
		Username:         user.Username,
		Email:            user.Email,
		Password:         account.Password,
		ServerID:         strconv.Itoa(server.ID),
		ServerIdentifier: server.Identifier,
	}
	return o.complete(ctx, order, creds.ServerID, creds, false)
}

func (o *Orchestrator) complete(ctx context.Context, order *model.Order, serverID string, creds *model.Credentials, reused bool) *Result {
	change, err := o.orders.CompleteFulfillment(ctx, order.ID, serverID, model.ActorProvisioner, "Server provisioned")
	if err != nil {
		// The server exists and carries the order id; a retry picks it up.
		return failed(resilience.ReasonUnknown, fmt.Errorf("complete order: %w", err))
	}
	if creds == nil {
		creds = &model.Credentials{PanelURL: o.panel.BaseURL(), ServerID: serverID}
	}
	return &Result{
		Success:     true,
		Reused:      reused,
		ServerID:    serverID,
		Credentials: creds,
		Change:      change,
	}
}

// compensate deletes the account left behind by a failed server creation.
func (o *Orchestrator) compensate(ctx context.Context, orderID string, userID int) *Compensation {
	err := o.executor.Do(ctx, "panel.delete_user", func(ctx context.Context) error {
		return o.panel.DeleteUser(ctx, userID)
	})
	if err != nil {
		o.logger.Error().Err(err).Str("order_id", orderID).Int("user_id", userID).Msg("orphaned panel account left behind")
		return &Compensation{UserID: userID, Err: err}
	}
	o.logger.Info().Str("order_id", orderID).Int("user_id", userID).Msg("orphaned panel account removed")
	return &Compensation{UserID: userID, Succeeded: true}
}

func failed(reason resilience.Reason, err error) *Result {
	return &Result{Reason: reason, Err: err}
}

func (o *Orchestrator) accountRequest(order *model.Order) panel.CreateUserRequest {
	// Suffix keeps usernames unique when an earlier orphan survived.
	username := strings.ToLower(strings.ReplaceAll(order.ID, "-", "")) + strings.ToLower(rand.Text()[:4])

	first := strings.TrimSpace(order.Customer.Name)
	if first == "" {
		first = "Customer"
	}

	return panel.CreateUserRequest{
		Email:     username + "@" + o.template.EmailDomain,
		Username:  username,
		FirstName: first,
		LastName:  order.ID,
		Password:  rand.Text()[:16],
	}
}

func (o *Orchestrator) serverRequest(order *model.Order, pkg model.Package, userID int) panel.CreateServerRequest {
	return panel.CreateServerRequest{
		Name:        fmt.Sprintf("%s %s", pkg.Name, order.ID),
		User:        userID,
		Egg:         o.template.EggID,
		DockerImage: o.template.DockerImage,
		Startup:     o.template.Startup,
		Environment: map[string]string{},
		Limits: panel.Limits{
			Memory: pkg.Limits.MemoryMB,
			Swap:   pkg.Limits.SwapMB,
			Disk:   pkg.Limits.DiskMB,
			IO:     pkg.Limits.IO,
			CPU:    pkg.Limits.CPUPercent,
		},
		FeatureLimits: panel.FeatureLimits{
			Databases:   pkg.Features.Databases,
			Backups:     pkg.Features.Backups,
			Allocations: pkg.Features.Allocations,
		},
		Deploy: panel.Deploy{
			Locations: []int{o.template.LocationID},
			PortRange: []string{},
		},
		ExternalID:        order.ID,
		StartOnCompletion: true,
	}
}

func (o *Orchestrator) acquire(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[id]; busy {
		return false
	}
	o.inflight[id] = struct{}{}
	return true
}

func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, id)
}
