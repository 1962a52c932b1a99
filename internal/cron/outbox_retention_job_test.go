package cron

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/autoparts-backend/pkg/logger"
)

func TestOutboxRetentionJobDeletesPublishedRowsAndDeadLetters(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	outbox := &fakePurger{deleted: 7}
	dlq := &fakePurger{deleted: 2}
	job := newOutboxRetentionJob(t, outbox, dlq)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	expectedCutoff := now.Add(-outboxRetentionDays * 24 * time.Hour)
	if !outbox.lastCutoff.Equal(expectedCutoff) || !dlq.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got outbox=%s dlq=%s", expectedCutoff, outbox.lastCutoff, dlq.lastCutoff)
	}
	if outbox.called != 1 || dlq.called != 1 {
		t.Fatalf("expected one call each, got outbox=%d dlq=%d", outbox.called, dlq.called)
	}
}

func TestOutboxRetentionJobCombinesErrors(t *testing.T) {
	outbox := &fakePurger{err: errors.New("outbox down")}
	dlq := &fakePurger{err: errors.New("dlq down")}
	job := newOutboxRetentionJob(t, outbox, dlq)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "outbox down") || !strings.Contains(err.Error(), "dlq down") {
		t.Fatalf("expected both failures in %q", err)
	}
	if dlq.called != 1 {
		t.Fatal("dead letters are purged even when the outbox purge fails")
	}
}

func TestOutboxRetentionJobRequiresRepository(t *testing.T) {
	if _, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: logger.Discard()}); err == nil {
		t.Fatal("expected error")
	}
}

func newOutboxRetentionJob(t *testing.T, outbox, dlq *fakePurger) *outboxRetentionJob {
	t.Helper()
	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Outbox: outbox,
		DLQ:    dlq,
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	job, ok := jobIface.(*outboxRetentionJob)
	if !ok {
		t.Fatalf("expected outboxRetentionJob, got %T", jobIface)
	}
	return job
}

type fakePurger struct {
	lastCutoff time.Time
	deleted    int64
	err        error
	called     int
}

func (f *fakePurger) DeletePublishedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	return f.purge(cutoff)
}

func (f *fakePurger) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	return f.purge(cutoff)
}

func (f *fakePurger) DeleteStale(_ context.Context, cutoff time.Time) (int64, error) {
	return f.purge(cutoff)
}

func (f *fakePurger) purge(cutoff time.Time) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return f.deleted, nil
}
