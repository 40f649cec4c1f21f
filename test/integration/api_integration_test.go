package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"hostbot/internal/admission"
	"hostbot/internal/catalog"
	"hostbot/internal/command"
	"hostbot/internal/events"
	"hostbot/internal/fulfillment"
	"hostbot/internal/handler"
	"hostbot/internal/messaging"
	"hostbot/internal/model"
	"hostbot/internal/notify"
	"hostbot/internal/panel"
	"hostbot/internal/provisioning"
	"hostbot/internal/repository"
	"hostbot/internal/resilience"
	"hostbot/internal/router"
	"hostbot/internal/service"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	apiKey        = "test-api-key"
	webhookSecret = "test-secret"
	adminNumber   = "6281100000"
	customer      = "6281234567"
)

type testApp struct {
	server  http.Handler
	engine  *fulfillment.Engine
	orders  service.OrderService
	gateway *Gateway
	panel   *Panel
}

func setupTestApp(t *testing.T, testDB *TestDB) *testApp {
	t.Helper()

	logger := zerolog.Nop()
	app := &testApp{gateway: NewGateway(t), panel: NewPanel(t)}

	packages := catalog.NewMapCatalog(model.Package{
		Key: "A1", Name: "Starter", Price: decimal.NewFromInt(15000), Currency: "IDR", Active: true,
		Specs:  model.Specs{RAM: "1GB", CPU: "50%", Storage: "5GB"},
		Limits: model.ResourceLimits{MemoryMB: 1024, DiskMB: 5120, IO: 500, CPUPercent: 50},
	})

	app.orders = service.NewOrderService(repository.NewOrderRepository(testDB.Pool, logger), packages, logger)
	packageService := service.NewPackageService(packages, logger)

	fast := resilience.Policy{Attempts: 2, Timeout: 5 * time.Second, BaseDelay: 10 * time.Millisecond, Factor: 1}
	dispatcher := notify.New(
		messaging.NewGatewaySender(app.gateway.URL, "token", 5*time.Second, logger),
		resilience.NewExecutor(fast, logger),
		events.NopPublisher{},
		notify.Config{Locale: "en", AdminNumbers: []string{adminNumber}},
		logger,
	)

	orchestrator := provisioning.New(
		app.orders,
		packages,
		panel.NewClient(app.panel.URL, "app-key", "", 5*time.Second, logger),
		resilience.NewExecutor(fast, logger),
		provisioning.Template{EmailDomain: "customers.example.test", LocationID: 1, EggID: 15, DockerImage: "node:18", Startup: "npm start"},
		true,
		logger,
	)

	app.engine = fulfillment.New(app.orders, orchestrator, dispatcher, logger)
	gate := admission.New(admission.DefaultConfig(), logger)
	commands := command.NewHandler(gate, app.engine, packageService, orchestrator, dispatcher, logger)

	app.server = router.New(
		handler.NewPackageHandler(packageService, logger),
		handler.NewOrderHandler(app.engine, logger),
		handler.NewOpsHandler(app.orders, orchestrator, gate, dispatcher, commands, 0, logger),
		router.Config{APIKey: apiKey, WebhookSecret: webhookSecret},
		logger,
	)
	return app
}

func (a *testApp) chat(t *testing.T, from, text string) {
	t.Helper()

	body, err := json.Marshal(command.InboundMessage{Sender: from, Name: "Budi", Text: text})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhook/messages", bytes.NewReader(body))
	req.Header.Set("X-Webhook-Secret", webhookSecret)
	w := httptest.NewRecorder()
	a.server.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
}

func (a *testApp) api(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-API-Key", apiKey)
	w := httptest.NewRecorder()
	a.server.ServeHTTP(w, req)
	return w
}

func TestOrderFulfillment_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	app := setupTestApp(t, testDB)
	ctx := context.Background()

	t.Run("chat order is confirmed and auto-provisioned", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		app.chat(t, customer, "order a1 2 for my bot")

		orders, err := app.orders.GetOrdersByCustomer(ctx, customer)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		order := orders[0]
		assert.Equal(t, model.StatusPending, order.Status)
		assert.True(t, decimal.NewFromInt(30000).Equal(order.TotalAmount))

		require.NotEmpty(t, app.gateway.Messages(customer))
		assert.Contains(t, app.gateway.Messages(customer)[0], order.ID)
		assert.NotEmpty(t, app.gateway.Messages(adminNumber), "admins hear about new orders")

		app.chat(t, adminNumber, "confirm "+order.ID)
		app.engine.Wait()

		w := app.api(t, http.MethodGet, "/api/orders/"+order.ID)
		require.Equal(t, http.StatusOK, w.Code)

		var detail struct {
			model.Order
			History      []model.StatusHistory `json:"history"`
			Subscription *model.Subscription   `json:"subscription"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&detail))

		assert.Equal(t, model.StatusCompleted, detail.Status)
		require.NotNil(t, detail.ServerID)
		assert.Equal(t, "101", *detail.ServerID)
		require.NotNil(t, detail.Subscription)
		assert.WithinDuration(t, detail.Subscription.StartsAt.AddDate(0, 2, 0), detail.Subscription.ExpiresAt, 2*time.Hour)

		statuses := make([]model.OrderStatus, 0, len(detail.History))
		for _, h := range detail.History {
			statuses = append(statuses, h.Status)
		}
		assert.Equal(t, []model.OrderStatus{model.StatusPending, model.StatusConfirmed, model.StatusCompleted}, statuses)

		msgs := app.gateway.Messages(customer)
		assert.Contains(t, msgs[len(msgs)-1], app.panel.URL)
	})

	t.Run("retrying a completed order is rejected and creates nothing", func(t *testing.T) {
		orders, err := app.orders.GetOrdersByStatus(ctx, model.StatusCompleted)
		require.NoError(t, err)
		require.NotEmpty(t, orders)

		before := app.panel.ServerCount()
		w := app.api(t, http.MethodPost, "/api/orders/"+orders[0].ID+"/retry-provision")
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, before, app.panel.ServerCount())
	})

	t.Run("provisioning status reports the panel", func(t *testing.T) {
		w := app.api(t, http.MethodGet, "/api/provisioning/status")
		require.Equal(t, http.StatusOK, w.Code)

		var status provisioning.Status
		require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
		assert.True(t, status.Enabled)
		assert.True(t, status.Reachable)
		assert.Equal(t, 1, status.Nodes)
	})
}

func TestConcurrentTransitions_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	app := setupTestApp(t, testDB)
	ctx := context.Background()

	order, err := app.orders.CreateOrder(ctx, model.CreateOrderRequest{
		Customer:   model.Customer{Phone: customer},
		PackageKey: "A1",
		Duration:   1,
	})
	require.NoError(t, err)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		illegal   int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := app.orders.Transition(ctx, order.ID, model.StatusCancelled, "admin", "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case model.IsIllegalTransition(err):
				illegal++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, illegal)

	history, err := app.orders.GetHistory(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.StatusCancelled, history[1].Status)
}

func TestCORS_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	app := setupTestApp(t, testDB)

	req := httptest.NewRequest(http.MethodOptions, "/api/orders", nil)
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	app.server.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.Contains(w.Header().Get("Access-Control-Allow-Methods"), "PUT"))
}
