package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name       string
		jsonOutput bool
		wantErr    bool
	}{
		{
			name:       "JSON output mode",
			jsonOutput: true,
			wantErr:    false,
		},
		{
			name:       "Console output mode",
			jsonOutput: false,
			wantErr:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Reset global logger
			Logger = nil
			JSONOutput = false

			err := Initialize(tt.jsonOutput)
			if (err != nil) != tt.wantErr {
				t.Errorf("Initialize() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr {
				if Logger == nil {
					t.Error("Initialize() did not set global Logger")
				}
				if JSONOutput != tt.jsonOutput {
					t.Errorf("Initialize() JSONOutput = %v, want %v", JSONOutput, tt.jsonOutput)
				}
			}

			// Cleanup
			if Logger != nil {
				Logger.Sync()
				Logger = nil
			}
		})
	}
}

func TestInitializeWithVerbosity(t *testing.T) {
	tests := []struct {
		name      string
		verbosity int
	}{
		{name: "quiet", verbosity: VerbosityUser},
		{name: "single -v", verbosity: VerbosityInfo},
		{name: "double -vv", verbosity: VerbosityDebug},
		{name: "beyond maximum", verbosity: 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Logger = nil

			if err := InitializeWithVerbosity(false, tt.verbosity); err != nil {
				t.Fatalf("InitializeWithVerbosity() error = %v", err)
			}
			if Logger == nil {
				t.Fatal("InitializeWithVerbosity() did not set global Logger")
			}

			Logger.Sync()
			Logger = nil
		})
	}
}

func TestVerbosityToLevel(t *testing.T) {
	tests := []struct {
		verbosity int
		want      zapcore.Level
	}{
		{VerbosityUser, zapcore.WarnLevel},
		{VerbosityInfo, zapcore.InfoLevel},
		{VerbosityDebug, zapcore.DebugLevel},
		{VerbosityTrace, zapcore.DebugLevel},
		{VerbosityAll, zapcore.DebugLevel},
		{99, zapcore.DebugLevel},
	}

	for _, tt := range tests {
		if got := VerbosityToLevel(tt.verbosity); got != tt.want {
			t.Errorf("VerbosityToLevel(%d) = %v, want %v", tt.verbosity, got, tt.want)
		}
	}
}

func TestShouldOutput(t *testing.T) {
	tests := []struct {
		name      string
		verbosity int
		category  OutputCategory
		want      bool
	}{
		{"results always shown", VerbosityUser, OutputResults, true},
		{"progress hidden by default", VerbosityUser, OutputProgress, false},
		{"progress shown at -v", VerbosityInfo, OutputProgress, true},
		{"timing hidden at -v", VerbosityInfo, OutputTiming, false},
		{"timing shown at -vv", VerbosityDebug, OutputTiming, true},
		{"git ops need -vvv", VerbosityDebug, OutputGitOps, false},
		{"git ops shown at -vvv", VerbosityTrace, OutputGitOps, true},
		{"wire detail shown at -vvv", VerbosityTrace, OutputWireDetail, true},
		{"data dump needs -vvvv", VerbosityTrace, OutputDataDump, false},
		{"data dump shown at -vvvv", VerbosityAll, OutputDataDump, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldOutput(tt.verbosity, tt.category); got != tt.want {
				t.Errorf("ShouldOutput(%d, %s) = %v, want %v",
					tt.verbosity, CategoryName(tt.category), got, tt.want)
			}
		})
	}
}

func TestEnabledCategoriesGrowWithVerbosity(t *testing.T) {
	prev := 0
	for v := VerbosityUser; v <= VerbosityAll; v++ {
		n := len(EnabledCategories(v))
		if n <= prev {
			t.Errorf("EnabledCategories(%d) = %d categories, want more than %d", v, n, prev)
		}
		prev = n
	}
}

func TestLevelName(t *testing.T) {
	if got := LevelName(VerbosityUser); got != "User" {
		t.Errorf("LevelName(0) = %q", got)
	}
	if got := LevelName(VerbosityTrace); got != "Trace (-vvv)" {
		t.Errorf("LevelName(3) = %q", got)
	}
	if got := LevelName(17); got != "All (-vvvv+)" {
		t.Errorf("LevelName(17) = %q", got)
	}
}

func TestCleanup(t *testing.T) {
	// Cleanup with a live logger should not panic
	Logger = newTestLogger(t)
	Cleanup()

	// Cleanup with nil logger should not panic either
	Logger = nil
	Cleanup()
}

// newTestLogger creates a logger for testing without modifying global state
func newTestLogger(t *testing.T) *zap.SugaredLogger {
	t.Helper()

	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)

	zapLogger, err := config.Build()
	if err != nil {
		t.Fatalf("Failed to create test logger: %v", err)
	}

	return zapLogger.Sugar()
}

// TestLoggingFunctions tests the package-level logging functions
func TestLoggingFunctions(t *testing.T) {
	// Initialize a test logger
	Logger = newTestLogger(t)
	defer func() {
		if Logger != nil {
			Logger.Sync()
			Logger = nil
		}
	}()

	// Test all logging functions (should not panic)
	t.Run("Info functions", func(t *testing.T) {
		Info("test")
		Infof("test %s", "format")
		Infow("test", "key", "value")
	})

	t.Run("Error functions", func(t *testing.T) {
		Error("test")
		Errorf("test %s", "format")
		Errorw("test", "key", "value")
	})

	t.Run("Warn functions", func(t *testing.T) {
		Warn("test")
		Warnf("test %s", "format")
		Warnw("test", "key", "value")
	})

	t.Run("Debug functions", func(t *testing.T) {
		Debug("test")
		Debugf("test %s", "format")
		Debugw("test", "key", "value")
	})

	t.Run("With nil logger (should not panic)", func(t *testing.T) {
		Logger = nil

		// All these should be safe to call with nil logger
		Info("test")
		Infof("test %s", "format")
		Infow("test", "key", "value")
		Error("test")
		Errorf("test %s", "format")
		Errorw("test", "key", "value")
		Warn("test")
		Warnf("test %s", "format")
		Warnw("test", "key", "value")
		Debug("test")
		Debugf("test %s", "format")
		Debugw("test", "key", "value")
	})
}

func TestFieldsFromContext(t *testing.T) {
	ctx := context.Background()
	if fields := FieldsFromContext(ctx); len(fields) != 0 {
		t.Errorf("FieldsFromContext(empty) = %v, want no fields", fields)
	}

	ctx = WithJobID(ctx, "42")
	ctx = WithUserID(ctx, "u_abc")
	ctx = WithComponent(ctx, "pulse.worker")

	fields := FieldsFromContext(ctx)
	if len(fields) != 6 {
		t.Fatalf("FieldsFromContext() = %d elements, want 6", len(fields))
	}

	got := map[string]string{}
	for i := 0; i < len(fields); i += 2 {
		got[fields[i].(string)] = fields[i+1].(string)
	}
	if got[FieldJobID] != "42" {
		t.Errorf("job_id = %q, want 42", got[FieldJobID])
	}
	if got[FieldUserID] != "u_abc" {
		t.Errorf("user_id = %q, want u_abc", got[FieldUserID])
	}
	if got[FieldComponent] != "pulse.worker" {
		t.Errorf("component = %q, want pulse.worker", got[FieldComponent])
	}
}

func TestSymbolHelpers(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Logger = zap.New(core).Sugar()
	defer func() { Logger = nil }()

	PulseInfow("job claimed", FieldJobID, int64(7))
	DBDebugw("migration applied", "version", 3)
	IXInfow("document ingested", FieldDocument, "cmd/main.go")
	HistInfow("window mined", "commits", 120)

	entries := logs.All()
	if len(entries) != 4 {
		t.Fatalf("logged %d entries, want 4", len(entries))
	}

	for _, entry := range entries {
		found := false
		for _, f := range entry.Context {
			if f.Key == FieldSymbol && f.String != "" {
				found = true
			}
		}
		if !found {
			t.Errorf("entry %q missing symbol field", entry.Message)
		}
	}
}

func TestComponentLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	Logger = zap.New(core).Sugar()
	defer func() { Logger = nil }()

	ComponentLogger("graph.builder").Infow("edges stored", "edges", 12)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("logged %d entries, want 1", len(entries))
	}
	if entries[0].LoggerName != "graph.builder" {
		t.Errorf("LoggerName = %q, want graph.builder", entries[0].LoggerName)
	}
}

func TestLoggerFromContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	Logger = zap.New(core).Sugar()
	defer func() { Logger = nil }()

	ctx := WithJobID(context.Background(), "99")
	LoggerFromContext(ctx).Infow("payload removed")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("logged %d entries, want 1", len(entries))
	}

	found := false
	for _, f := range entries[0].Context {
		if f.Key == FieldJobID && f.String == "99" {
			found = true
		}
	}
	if !found {
		t.Error("job_id from context not attached to log entry")
	}
}

// Benchmark tests for logger performance

func BenchmarkInitialize(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Logger = nil
		if err := Initialize(false); err != nil {
			b.Fatal(err)
		}
	}
	Logger = nil
}

func BenchmarkInfow(b *testing.B) {
	Logger = zap.NewNop().Sugar()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Infow("benchmark", "iteration", i)
	}
	Logger = nil
}
