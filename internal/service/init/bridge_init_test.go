package service_init

import (
	"context"
	"errors"
	"testing"
	"time"

	commonConfig "sqsbridge/commons/config"
	"sqsbridge/commons/server"
	cache "sqsbridge/internal/cache/iface"
	"sqsbridge/internal/config"
	"sqsbridge/internal/httpclient"
	"sqsbridge/internal/logger"
	"sqsbridge/internal/metrics"
	queue "sqsbridge/internal/queue/iface"
	"sqsbridge/internal/service"

	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

func testConfig() config.Config {
	c := config.Defaults()
	c.PostURL = "http://localhost:8080/ingest"
	c.QueueURL = "http://localhost:4566/000000000000/bridge-queue"
	c.FetchWaitSecs = 0
	return c
}

func TestBridgeModuleGraph(t *testing.T) {
	err := fx.ValidateApp(
		fx.Supply(testConfig()),
		fx.Provide(
			func() logger.Logger { return logger.NewNopLogger() },
			func() *awssqs.Client { return awssqs.New(awssqs.Options{Region: "us-east-1"}) },
			func() cache.Cache { return nil },
			commonConfig.ProvideRouteDependencies,
			commonConfig.ProvideRouter,
			server.NewHTTPServer,
		),
		BridgeModule(),
	)
	assert.NoError(t, err)
}

type fatalQueue struct{}

func (fatalQueue) ReceiveMessages(ctx context.Context, req queue.ReceiveRequest) ([]queue.Message, error) {
	return nil, &queue.Anomaly{Op: "ReceiveMessage", Category: queue.NotFound, Code: "QueueDoesNotExist", Err: errors.New("no such queue")}
}

func (fatalQueue) DeleteMessageBatch(ctx context.Context, queueURL string, entries []queue.DeleteEntry) (queue.DeleteResult, error) {
	return queue.DeleteResult{}, nil
}

type idleQueue struct{}

func (idleQueue) ReceiveMessages(ctx context.Context, req queue.ReceiveRequest) ([]queue.Message, error) {
	time.Sleep(5 * time.Millisecond)
	return nil, nil
}

func (idleQueue) DeleteMessageBatch(ctx context.Context, queueURL string, entries []queue.DeleteEntry) (queue.DeleteResult, error) {
	return queue.DeleteResult{}, nil
}

type recordingShutdowner struct {
	calls chan int
}

func (s *recordingShutdowner) Shutdown(opts ...fx.ShutdownOption) error {
	s.calls <- len(opts)
	return nil
}

func newBridge(q queue.Client, m *metrics.Metrics) *service.Bridge {
	cfg := testConfig()
	poster := httpclient.NewHTTPClient(httpclient.Options{Timeout: time.Second, MaxConnections: 1}, logger.NewNopLogger())
	return service.NewBridge(cfg, q, poster, m, logger.NewNopLogger())
}

func TestManageBridgeLifecycleFatal(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	shutdowner := &recordingShutdowner{calls: make(chan int, 1)}
	m := metrics.NewMetrics()

	ManageBridgeLifecycle(lc, shutdowner, newBridge(fatalQueue{}, m), nil, logger.NewNopLogger())
	lc.RequireStart()

	select {
	case n := <-shutdowner.calls:
		assert.Equal(t, 1, n)
	case <-time.After(3 * time.Second):
		t.Fatal("fatal anomaly did not request shutdown")
	}

	lc.RequireStop()

	s, err := m.Snapshot()
	require.NoError(t, err)
	assert.True(t, s.Fatal)
}

func TestManageBridgeLifecycleGracefulStop(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	shutdowner := &recordingShutdowner{calls: make(chan int, 1)}
	m := metrics.NewMetrics()

	ManageBridgeLifecycle(lc, shutdowner, newBridge(idleQueue{}, m), nil, logger.NewNopLogger())
	lc.RequireStart()

	require.Eventually(t, func() bool {
		s, err := m.Snapshot()
		return err == nil && s.Running
	}, time.Second, 5*time.Millisecond)

	lc.RequireStop()

	select {
	case <-shutdowner.calls:
		t.Fatal("graceful stop must not request a shutdown")
	case <-time.After(20 * time.Millisecond):
	}

	s, err := m.Snapshot()
	require.NoError(t, err)
	assert.False(t, s.Running)
	assert.False(t, s.Fatal)
}

func TestManageBridgeLifecycleInvalidConfig(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	cfg := testConfig()
	cfg.PostURL = ""
	poster := httpclient.NewHTTPClient(httpclient.Options{Timeout: time.Second, MaxConnections: 1}, logger.NewNopLogger())
	b := service.NewBridge(cfg, idleQueue{}, poster, metrics.NewMetrics(), logger.NewNopLogger())

	ManageBridgeLifecycle(lc, &recordingShutdowner{calls: make(chan int, 1)}, b, nil, logger.NewNopLogger())

	err := lc.Start(context.Background())
	require.Error(t, err)
	assert.True(t, config.IsInvalidConfigError(err))
}
