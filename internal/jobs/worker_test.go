package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/ragbot/internal/domain"
	"github.com/cloo-solutions/ragbot/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockNamespaceBuilder is a mock implementation of NamespaceBuilder
type MockNamespaceBuilder struct {
	mock.Mock
}

func (m *MockNamespaceBuilder) Build(ctx context.Context, ns domain.Namespace, root string) (service.BuildResult, error) {
	args := m.Called(ctx, ns, root)
	return args.Get(0).(service.BuildResult), args.Error(1)
}

func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 50*time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(context.Background())
	}()

	time.Sleep(180 * time.Millisecond)
	worker.Stop()
	wg.Wait()

	assert.GreaterOrEqual(t, len(mockProcessor.Calls), 2)
}

func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
	mockProcessor.AssertNotCalled(t, "ProcessJobs", mock.Anything)
}

func TestWorker_ImmediateRun(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	called := make(chan struct{}, 1)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(errors.New("boom")).Run(func(mock.Arguments) {
		select {
		case called <- struct{}{}:
		default:
		}
	})

	worker := NewWorker(mockProcessor, time.Hour, WithImmediateRun())
	go worker.Start(context.Background())

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("processor was not run immediately")
	}
	worker.Stop()
}

func TestIngestJob_RunOnce(t *testing.T) {
	builder := new(MockNamespaceBuilder)
	job := NewIngestJob(builder, map[domain.Namespace]string{
		domain.NamespaceNEC:      "data/nec",
		domain.NamespaceWattmonk: "data/wattmonk",
	}, nil)

	builder.On("Build", mock.Anything, domain.NamespaceNEC, "data/nec").
		Return(service.BuildResult{Namespace: domain.NamespaceNEC, Files: 2, Chunks: 30}, nil).Once()
	builder.On("Build", mock.Anything, domain.NamespaceWattmonk, "data/wattmonk").
		Return(service.BuildResult{Namespace: domain.NamespaceWattmonk, Files: 1, Chunks: 4}, nil).Once()

	results, err := job.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, domain.NamespaceNEC, results[0].Namespace)
	assert.Equal(t, 30, results[0].Chunks)
	assert.Equal(t, domain.NamespaceWattmonk, results[1].Namespace)
	builder.AssertExpectations(t)
}

func TestIngestJob_FailuresDoNotStopOtherNamespaces(t *testing.T) {
	builder := new(MockNamespaceBuilder)
	job := NewIngestJob(builder, map[domain.Namespace]string{
		domain.NamespaceNEC:      "data/nec",
		domain.NamespaceWattmonk: "data/wattmonk",
	}, nil)

	builder.On("Build", mock.Anything, domain.NamespaceNEC, mock.Anything).
		Return(service.BuildResult{Namespace: domain.NamespaceNEC}, domain.ErrRateLimited).Once()
	builder.On("Build", mock.Anything, domain.NamespaceWattmonk, mock.Anything).
		Return(service.BuildResult{Namespace: domain.NamespaceWattmonk, Chunks: 4}, nil).Once()

	results, err := job.RunOnce(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Contains(t, err.Error(), "nec")
	require.Len(t, results, 1)
	assert.Equal(t, domain.NamespaceWattmonk, results[0].Namespace)
}

func TestIngestJob_BuildInProgressIsSkipped(t *testing.T) {
	builder := new(MockNamespaceBuilder)
	job := NewIngestJob(builder, map[domain.Namespace]string{domain.NamespaceNEC: "data/nec"}, nil)

	builder.On("Build", mock.Anything, domain.NamespaceNEC, "data/nec").
		Return(service.BuildResult{}, domain.ErrBuildInProgress).Once()

	assert.NoError(t, job.ProcessJobs(context.Background()))
}
