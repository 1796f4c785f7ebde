package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	atomicLevel := zap.NewAtomicLevelAt(level)
	core, logs := observer.New(atomicLevel)
	return fromZap(zap.New(core), atomicLevel), logs
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level       string
		development bool
		wantErr     bool
	}{
		{level: "debug"},
		{level: "info"},
		{level: "warn", development: true},
		{level: "error", development: true},
		{level: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, err := NewLogger(tt.level, tt.development)
			if tt.wantErr {
				require.Error(t, err)
				require.Nil(t, l)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.level, l.GetLevel())
			require.Empty(t, l.GetComponent())
		})
	}
}

func TestLogger_WithComponent(t *testing.T) {
	root, logs := observed(zapcore.DebugLevel)

	coordinator := root.WithComponent("indexer-coordinator")
	require.Equal(t, "indexer-coordinator", coordinator.GetComponent())

	coordinator.Infow("pass finished", "watchers", 12, "failed", 0)

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "pass finished", entries[0].Message)
	require.Equal(t, map[string]any{
		"component": "indexer-coordinator",
		"watchers":  int64(12),
		"failed":    int64(0),
	}, entries[0].ContextMap())
}

func TestLogger_SetLevelIsShared(t *testing.T) {
	root, logs := observed(zapcore.InfoLevel)
	downloader := root.WithComponent("downloader")

	downloader.Debug("range fetched")
	require.Zero(t, logs.Len())

	require.NoError(t, downloader.SetLevel("debug"))
	require.Equal(t, "debug", root.GetLevel())

	root.Debug("head resolved")
	downloader.Debug("range fetched")
	require.Equal(t, 2, logs.Len())

	require.Error(t, root.SetLevel("loud"))
	require.Equal(t, "debug", downloader.GetLevel())
}

func TestLogger_LevelFiltering(t *testing.T) {
	l, logs := observed(zapcore.WarnLevel)

	l.Debug("decoded log")
	l.Info("checkpoint advanced")
	l.Warnf("skipping undecodable log %d", 3)
	l.Errorw("provider unavailable", "endpoint", "http://localhost:8545")

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, zapcore.WarnLevel, entries[0].Level)
	require.Equal(t, "skipping undecodable log 3", entries[0].Message)
	require.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestNewNopLogger(t *testing.T) {
	l := NewNopLogger()
	require.Equal(t, "info", l.GetLevel())
	require.NotPanics(t, func() {
		l.WithComponent("api").Errorf("failed to encode response: %v", "boom")
	})
	require.NoError(t, l.Close())
}

func TestNewComponentLogger(t *testing.T) {
	l := NewComponentLogger("node-sync", "warn", false)
	require.Equal(t, "node-sync", l.GetComponent())
	require.Equal(t, "warn", l.GetLevel())

	require.Panics(t, func() { NewComponentLogger("node-sync", "chatty", false) })
}

type stubLoggingConfig struct {
	levels       map[string]string
	defaultLevel string
	development  bool
}

func (s stubLoggingConfig) GetComponentLevel(component string) string {
	if level, ok := s.levels[component]; ok {
		return level
	}
	return s.defaultLevel
}

func (s stubLoggingConfig) GetDefaultLevel() string { return s.defaultLevel }

func (s stubLoggingConfig) IsDevelopment() bool { return s.development }

func TestNewComponentLoggerFromConfig(t *testing.T) {
	cfg := stubLoggingConfig{
		levels:       map[string]string{"downloader": "debug", "rpc": "error"},
		defaultLevel: "warn",
	}

	tests := []struct {
		component string
		cfg       LoggingConfig
		want      string
	}{
		{component: "downloader", cfg: cfg, want: "debug"},
		{component: "rpc", cfg: cfg, want: "error"},
		{component: "api", cfg: cfg, want: "warn"},
		{component: "api", cfg: nil, want: "info"},
	}

	for _, tt := range tests {
		t.Run(tt.component+"/"+tt.want, func(t *testing.T) {
			l := NewComponentLoggerFromConfig(tt.component, tt.cfg)
			require.Equal(t, tt.component, l.GetComponent())
			require.Equal(t, tt.want, l.GetLevel())
		})
	}
}

func TestComponentLoggersAreIndependent(t *testing.T) {
	cfg := stubLoggingConfig{defaultLevel: "info"}

	a := NewComponentLoggerFromConfig("notification", cfg)
	b := NewComponentLoggerFromConfig("maintenance", cfg)

	require.NoError(t, a.SetLevel("error"))
	require.Equal(t, "error", a.GetLevel())
	require.Equal(t, "info", b.GetLevel())
}
