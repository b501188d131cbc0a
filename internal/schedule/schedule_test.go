package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestNewRejectsInvalidExpression(t *testing.T) {
	log := logrus.New()
	job := func(context.Context) error { return nil }

	for _, expr := range []string{"", "not a cron", "* * * *", "61 * * * *"} {
		if _, err := New(expr, log, job); err == nil {
			t.Errorf("New(%q) should fail", expr)
		}
	}
}

func TestNewAcceptsStandardExpressions(t *testing.T) {
	log := logrus.New()
	job := func(context.Context) error { return nil }

	for _, expr := range []string{"0 2 * * 0", "*/5 * * * *", "@daily"} {
		if _, err := New(expr, log, job); err != nil {
			t.Errorf("New(%q): %v", expr, err)
		}
	}
}

// Cancellation must reach the cycle in flight, not just stop future fires.
func TestRunCancelReachesRunningJob(t *testing.T) {
	log := logrus.New()

	var startOnce, doneOnce sync.Once
	started := make(chan struct{})
	jobDone := make(chan struct{})
	r, err := New("@every 50ms", log, func(ctx context.Context) error {
		startOnce.Do(func() { close(started) })
		<-ctx.Done()
		doneOnce.Do(func() { close(jobDone) })
		return ctx.Err()
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(runDone)
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never fired")
	}

	cancel()
	select {
	case <-jobDone:
	case <-time.After(5 * time.Second):
		t.Fatal("cancellation never reached the running job")
	}
	select {
	case <-runDone:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the job finished")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	log := logrus.New()
	r, err := New("0 2 * * 0", log, func(context.Context) error { return nil })
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
