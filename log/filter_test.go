package log_test

import (
	"testing"

	tblog "github.com/bronystylecrazy/tokenbus/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFilterFieldsCoreDropsCredential(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(tblog.FilterFieldsCore(core, "credential"))

	logger.With(zap.String("credential", "secret")).Info("handled",
		zap.String("credential", "secret"),
		zap.String("request_id", "r-1"),
	)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries got=%d want=1", len(entries))
	}
	fields := entries[0].ContextMap()
	if _, ok := fields["credential"]; ok {
		t.Fatal("credential field leaked")
	}
	if fields["request_id"] != "r-1" {
		t.Fatalf("request_id got=%v", fields["request_id"])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"unknown": zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := tblog.ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) got=%v want=%v", in, got, want)
		}
	}
}

func TestNewZapLoggerUsesAtomicLevel(t *testing.T) {
	res, err := tblog.NewZapLogger(tblog.Config{Level: "warn", Format: "json"})
	if err != nil {
		t.Fatalf("NewZapLogger: %v", err)
	}
	if res.Logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("info should be disabled at warn")
	}
	res.Level.SetLevel(zapcore.DebugLevel)
	if !res.Logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("debug should be enabled after level change")
	}
}
