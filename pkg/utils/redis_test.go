package utils

import (
	"context"
	"testing"
	"time"
)

func TestLineScriptsCompile(t *testing.T) {
	if lineAcquireScript == nil || lineRefreshScript == nil || lineReleaseScript == nil || lineReclaimScript == nil {
		t.Fatalf("expected scripts to be initialized")
	}
}

func TestLineLock_RejectsMissingClientAndOwner(t *testing.T) {
	l := NewLineLock(nil, "100", "host-a", 0)
	if l.key != "console:line:100" || l.TTL() != DefaultLineTTL {
		t.Fatalf("unexpected lock: %+v", l)
	}
	if got := l.holder("call-1"); got != "host-a|call-1" {
		t.Fatalf("unexpected holder %q", got)
	}
	if _, err := l.Acquire(context.Background(), "call-1"); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if err := l.Release(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty owner")
	}
	if _, err := l.Refresh(context.Background(), "call-1"); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, err := l.Reclaim(context.Background()); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestOpenRedis_RequiresAddr(t *testing.T) {
	if _, err := OpenRedis(context.Background(), RedisConfig{PingTimeout: time.Millisecond}); err == nil {
		t.Fatalf("expected addr error")
	}
}
