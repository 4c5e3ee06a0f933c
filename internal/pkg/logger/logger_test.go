package logger

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapBackedLoggerReceivesRecords(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	SetLogger(slog.New(zapslog.NewHandler(core)))

	Info("portfolio recomputed", "total", 42.5)

	entries := observed.All()
	require.Len(t, entries, 1)
	require.Equal(t, "portfolio recomputed", entries[0].Message)
}

func TestConcurrentLoggingDuringSetLogger(t *testing.T) {
	core, _ := observer.New(zapcore.DebugLevel)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 100; j++ {
				Warn("refresh cycle failed", "attempt", j)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		for j := 0; j < 100; j++ {
			SetLogger(slog.New(zapslog.NewHandler(core)))
		}
	}()
	close(start)
	wg.Wait()
}

func TestLazyInitializationIsConcurrencySafe(t *testing.T) {
	globalLogger.Store(nil)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			Debug("account skipped", "reason", "inactive")
		}()
	}
	close(start)
	wg.Wait()

	require.NotNil(t, globalLogger.Load())
}
