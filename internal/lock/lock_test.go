package lock

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type stubLock struct {
	err   error
	calls int
}

func (s *stubLock) Release(ctx context.Context) error {
	s.calls++
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("release without deadline")
	}
	return s.err
}

func newTestLocker() (*RedisLocker, *test.Hook) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	hook := test.NewLocal(logger)
	return &RedisLocker{logger: logger}, hook
}

func TestReleaseLogsFailure(t *testing.T) {
	locker, hook := newTestLocker()
	lk := &stubLock{err: errors.New("connection reset")}

	locker.release(lk, "numbering:SALE:1:1")

	if lk.calls != 1 {
		t.Fatalf("expected one release call, got %d", lk.calls)
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.WarnLevel || entry.Message != "series lock release failed" {
		t.Fatalf("expected release warning, got %+v", entry)
	}
	if entry.Data["key"] != "numbering:SALE:1:1" {
		t.Fatalf("expected key field, got %v", entry.Data)
	}
	if err, _ := entry.Data[logrus.ErrorKey].(error); err == nil || err.Error() != "connection reset" {
		t.Fatalf("expected release error in entry, got %v", entry.Data[logrus.ErrorKey])
	}
}

func TestReleaseLogsExpiredLock(t *testing.T) {
	locker, hook := newTestLocker()

	locker.release(&stubLock{err: redislock.ErrLockNotHeld}, "numbering:SALE:1:1")

	entry := hook.LastEntry()
	if entry == nil || entry.Message != "series lock expired before release" {
		t.Fatalf("expected expiry warning, got %+v", entry)
	}
}

func TestReleaseSuccessIsQuiet(t *testing.T) {
	locker, hook := newTestLocker()

	locker.release(&stubLock{}, "numbering:SALE:1:1")

	if n := len(hook.AllEntries()); n != 0 {
		t.Fatalf("expected no log entries, got %d", n)
	}
}

func TestNoopLocker(t *testing.T) {
	release, err := Noop{}.Obtain(context.Background(), "k", time.Second)
	if err != nil || release == nil {
		t.Fatalf("noop obtain: %v", err)
	}
	release()
}
