package backup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

type fakeRunner struct {
	mu        sync.Mutex
	creates   int
	prunes    []time.Duration
	createErr error
}

func (f *fakeRunner) Create(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return "", f.createErr
	}
	return "vidtube-20240101-000000.db", nil
}

func (f *fakeRunner) Prune(ctx context.Context, retention time.Duration) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prunes = append(f.prunes, retention)
	return []string{"vidtube-20230101-000000.db"}, nil
}

func (f *fakeRunner) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates, len(f.prunes)
}

func TestScheduler_RunsImmediatelyAndOnInterval(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScheduler(runner, Config{Interval: 20 * time.Millisecond, Retention: time.Hour}, zaptest.NewLogger(t).Sugar())

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool {
		creates, _ := runner.counts()
		return creates >= 3
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
	<-done

	creates, prunes := runner.counts()
	assert.Equal(t, creates, prunes)
	assert.Equal(t, time.Hour, runner.prunes[0])
}

func TestScheduler_SkipsPruneAfterFailedBackup(t *testing.T) {
	runner := &fakeRunner{createErr: errors.New("disk full")}
	s := NewScheduler(runner, Config{Interval: time.Hour, Retention: time.Hour}, zaptest.NewLogger(t).Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		creates, _ := runner.counts()
		return creates == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	_, prunes := runner.counts()
	assert.Zero(t, prunes)
}
