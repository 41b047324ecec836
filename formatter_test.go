package sentryadapter

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// TestLineFormatterPlaceholders verifies every placeholder is substituted.
func TestLineFormatterPlaceholders(t *testing.T) {
	r := Record{
		Time:    time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
		Channel: "billing",
		Level:   LevelCritical,
		Message: "ledger locked",
		Context: map[string]any{"id": 7},
		Extra:   map[string]any{"host": "db-1"},
	}
	f := LineFormatter{Pattern: "[%datetime%] %channel%.%level_name%: %message% %context% %extra%"}

	got := f.Format(r)
	want := `[2024-03-01T12:30:00Z] billing.CRITICAL: ledger locked {"id":7} {"host":"db-1"}`
	if got != want {
		t.Fatalf("Format() = %q, want %q", got, want)
	}
}

// TestLineFormatterDefaults checks the default pattern and empty map rendering.
func TestLineFormatterDefaults(t *testing.T) {
	got := LineFormatter{}.Format(Record{Channel: "app", Level: LevelInfo, Message: "hi"})
	if got != "app.INFO: hi {} {}" {
		t.Fatalf("unexpected default rendering: %q", got)
	}
}

// TestLineFormatterDropsNonScalars ensures structured values never reach the line.
func TestLineFormatterDropsNonScalars(t *testing.T) {
	r := Record{
		Channel: "app",
		Level:   LevelError,
		Message: "x",
		Context: map[string]any{
			"err":   errors.New("boom"),
			"tags":  []string{"a"},
			"inner": map[string]any{"k": "v"},
		},
	}
	got := LineFormatter{Pattern: "%context%"}.Format(r)
	if got != `{"err":"boom"}` {
		t.Fatalf("unexpected context rendering: %q", got)
	}
}

// TestFormatterFunc verifies the function adapter.
func TestFormatterFunc(t *testing.T) {
	var f Formatter = FormatterFunc(func(r Record) string { return "<" + r.Message + ">" })
	if got := f.Format(Record{Message: "m"}); got != "<m>" {
		t.Fatalf("FormatterFunc returned %q", got)
	}
}

// TestCloudFormatter renders a record through slogcp and checks the JSON carries its fields.
func TestCloudFormatter(t *testing.T) {
	f, err := NewCloudFormatter()
	if err != nil {
		t.Fatalf("NewCloudFormatter returned error: %v", err)
	}

	got := f.Format(Record{
		Time:    time.Now(),
		Channel: "orders",
		Level:   LevelError,
		Message: "checkout failed",
		Context: map[string]any{"order_id": "o-42"},
	})
	for _, want := range []string{"checkout failed", "orders", "o-42"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %s", want, got)
		}
	}
	if strings.HasSuffix(got, "\n") {
		t.Fatalf("trailing newline should be trimmed")
	}

	second := f.Format(Record{Time: time.Now(), Channel: "orders", Level: LevelInfo, Message: "retry"})
	if strings.Contains(second, "checkout failed") {
		t.Fatalf("buffer must be reset between records: %s", second)
	}

	var nilFormatter *CloudFormatter
	if nilFormatter.Format(Record{Message: "x"}) != "" {
		t.Fatalf("nil formatter should render nothing")
	}
}
