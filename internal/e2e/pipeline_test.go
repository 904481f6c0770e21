package e2e

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	httpproduct "3tcapital/ms_ecommerce_audit/internal/adapters/http/product"
	mongoproduct "3tcapital/ms_ecommerce_audit/internal/adapters/product/mongo"
	mongolog "3tcapital/ms_ecommerce_audit/internal/adapters/requestlog/mongo"
	"3tcapital/ms_ecommerce_audit/internal/application/delivery"
	appproduct "3tcapital/ms_ecommerce_audit/internal/application/product"
	"3tcapital/ms_ecommerce_audit/internal/core/requestlog"
	"3tcapital/ms_ecommerce_audit/internal/infrastructure/broker"
	"3tcapital/ms_ecommerce_audit/internal/infrastructure/config"
	"3tcapital/ms_ecommerce_audit/internal/infrastructure/database"
	"3tcapital/ms_ecommerce_audit/internal/infrastructure/http/server"
	"3tcapital/ms_ecommerce_audit/internal/testutil"
)

func requireE2E(t *testing.T) {
	t.Helper()
	if testing.Short() || os.Getenv("ECOMMERCE_E2E") == "" {
		t.Skip("set ECOMMERCE_E2E=1 to run the container-backed pipeline test")
	}
}

// startContainer runs req and returns the host and port of its single exposed port.
func startContainer(t *testing.T, ctx context.Context, req testcontainers.ContainerRequest) (string, int) {
	t.Helper()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	testcontainers.CleanupContainer(t, c)

	endpoint, err := c.Endpoint(ctx, "")
	require.NoError(t, err)
	host, rawPort, err := net.SplitHostPort(endpoint)
	require.NoError(t, err)
	port, err := strconv.Atoi(rawPort)
	require.NoError(t, err)
	return host, port
}

func TestPipeline_ProductRequestIsPersistedOnce(t *testing.T) {
	requireE2E(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	rabbitHost, rabbitPort := startContainer(t, ctx, testcontainers.ContainerRequest{
		Image:        "rabbitmq:3.13-alpine",
		ExposedPorts: []string{"5672/tcp"},
		WaitingFor:   wait.ForLog("Server startup complete").WithStartupTimeout(2 * time.Minute),
	})

	mongoHost, mongoPort := startContainer(t, ctx, testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp"),
	})

	log := testutil.NewNullLogger()

	client, db, err := database.ConnectMongo(ctx, database.MongoConfig{
		URI:      fmt.Sprintf("mongodb://%s:%d", mongoHost, mongoPort),
		Database: "ecommerce_e2e",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	require.NoError(t, database.BootstrapMongo(ctx, db, log))

	brokerCfg := broker.ConfigFromSettings(config.BrokerSettings{
		Host:       rabbitHost,
		Port:       rabbitPort,
		User:       "guest",
		Password:   "guest",
		VHost:      "/",
		Exchange:   "ecommerce.logs",
		Queue:      "http_logs",
		RoutingKey: "http.log",
	}, "e2e")

	publisher := broker.NewPublisher(brokerCfg, log)
	t.Cleanup(func() { _ = publisher.Close() })
	require.NoError(t, publisher.Connect(ctx))

	logs := mongolog.NewRepository(db, log)
	subscriber := broker.NewSubscriber(brokerCfg, log)
	t.Cleanup(func() { _ = subscriber.Close() })

	consumer := delivery.NewConsumer(subscriber, logs, log, delivery.Options{PersistTimeout: 10 * time.Second})
	workerCtx, stopWorker := context.WithCancel(ctx)
	workerDone := make(chan error, 1)
	go func() { workerDone <- consumer.Run(workerCtx) }()

	products := httpproduct.NewHandler(appproduct.NewService(mongoproduct.NewRepository(db)), log)
	srv, err := server.New(server.Options{
		Config: config.AppConfig{
			Audit: config.AuditSettings{Enabled: true, SkipPaths: []string{"/health"}, PublishTimeout: 5 * time.Second},
		},
		Logger:        log,
		HealthHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}),
		ProductRoutes: products.Routes,
		Publisher:     publisher,
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/products",
		strings.NewReader(`{"name":"Keyboard","price":49.9,"stockQuantity":3}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	filter := requestlog.Filter{Path: "^/api/products$", Page: 1, PageSize: 10}
	require.Eventually(t, func() bool {
		n, err := logs.Count(ctx, filter)
		return err == nil && n == 1
	}, 30*time.Second, 200*time.Millisecond, "request log never reached mongo")

	records, err := logs.Find(ctx, filter)
	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, http.MethodPost, rec.Method)
	assert.Equal(t, http.StatusCreated, rec.StatusCode)
	assert.Contains(t, rec.RequestBody, "Keyboard")
	assert.Equal(t, w.Body.String(), rec.ResponseBody)

	stopWorker()
	select {
	case err := <-workerDone:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("consumer did not stop")
	}

	stats := consumer.Stats()
	assert.Equal(t, int64(1), stats.Acked)
	assert.Equal(t, int64(0), stats.Rejected)
}
