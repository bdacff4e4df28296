package timeouts

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestConfigure(t *testing.T) {
	t.Cleanup(Reset)

	Configure(Config{Ping: time.Second, Batch: 0})
	if Ping() != time.Second {
		t.Errorf("Ping() = %v, want 1s", Ping())
	}
	if Batch() != DefaultBatch {
		t.Errorf("Batch() = %v, zero should keep the default", Batch())
	}

	Reset()
	if got := Current(); got != (Config{Ping: DefaultPing, Short: DefaultShort, Batch: DefaultBatch}) {
		t.Errorf("Current() after Reset = %+v", got)
	}
}

func TestWithTimeout_LogsDeadline(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	ctx, cancel := WithTimeout(context.Background(), time.Millisecond, zap.New(core), "scan")
	<-ctx.Done()
	cancel()

	if logs.Len() != 1 || logs.All()[0].ContextMap()["operation"] != "scan" {
		t.Errorf("logs = %v", logs.All())
	}

	ctx, cancel = WithTimeout(context.Background(), time.Minute, zap.New(core), "quick")
	cancel()
	_ = ctx
	if logs.Len() != 1 {
		t.Error("cancelled before the deadline should not log")
	}
}
