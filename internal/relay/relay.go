// Package relay forwards newline-delimited slog JSON to a Sentry adapter.
package relay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	sentryadapter "github.com/pjscruggs/slog-sentry-adapter"
)

const maxLineSize = 1 << 20

// Submitter captures a batch of records. *sentryadapter.Adapter satisfies it.
type Submitter interface {
	SubmitBatch(ctx context.Context, records []sentryadapter.Record) error
}

// RemoteError is an error serialized by the process that wrote the log line.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

// Stats summarizes one Run.
type Stats struct {
	Lines   int
	Batches int
	Skipped int
	Failed  int
}

// Relay groups log lines into batches. A blank line, a full batch or the end
// of input closes a batch.
type Relay struct {
	submitter Submitter
	batchSize int
	logger    *slog.Logger
}

// New creates a Relay. logger receives the relay's own diagnostics and must
// not be bound to the Sentry adapter.
func New(s Submitter, batchSize int, logger *slog.Logger) *Relay {
	if batchSize <= 0 {
		batchSize = 1
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Relay{submitter: s, batchSize: batchSize, logger: logger}
}

// Run reads in until EOF or ctx is cancelled. Records read before
// cancellation are still submitted. Submission errors are counted and logged,
// not returned; only read errors end the run early.
//
// Lines are read on a separate goroutine so cancellation does not wait for
// in. That goroutine exits once in returns from its pending Read.
func (r *Relay) Run(ctx context.Context, in io.Reader) (Stats, error) {
	var stats Stats
	batch := make([]sentryadapter.Record, 0, r.batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		stats.Batches++
		if err := r.submitter.SubmitBatch(context.WithoutCancel(ctx), batch); err != nil {
			stats.Failed++
			r.logger.Warn("batch submission failed", "records", len(batch), "error", err)
		}
		batch = make([]sentryadapter.Record, 0, r.batchSize)
	}

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				readErr <- nil
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		if ctx.Err() != nil {
			r.logger.Info("relay cancelled", "lines", stats.Lines)
			flush()
			return stats, nil
		}

		var line []byte
		select {
		case <-ctx.Done():
			continue
		case l, ok := <-lines:
			if !ok {
				flush()
				if err := <-readErr; err != nil {
					return stats, fmt.Errorf("read input: %w", err)
				}
				return stats, nil
			}
			line = bytes.TrimSpace(l)
		}

		if len(line) == 0 {
			flush()
			continue
		}
		stats.Lines++

		rec, err := ParseLine(line)
		if err != nil {
			stats.Skipped++
			r.logger.Debug("skipping line", "line", stats.Lines, "error", err)
			continue
		}
		batch = append(batch, rec)
		if len(batch) >= r.batchSize {
			flush()
		}
	}
}

// ParseLine decodes one slog JSON line. The keys time, level, msg (or
// message) and channel fill the record; a level that cannot be read reports
// as LevelEmergency; exception or error strings become a
// *RemoteError under the exception key; every other key lands in Context.
func ParseLine(line []byte) (sentryadapter.Record, error) {
	var fields map[string]any
	if err := json.Unmarshal(line, &fields); err != nil {
		return sentryadapter.Record{}, fmt.Errorf("decode line: %w", err)
	}
	if fields == nil {
		return sentryadapter.Record{}, errors.New("decode line: not an object")
	}

	rec := sentryadapter.Record{
		Time:  time.Now(),
		Level: sentryadapter.LevelInfo,
	}

	if v, ok := fields[slog.TimeKey].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			rec.Time = t
		}
	}
	if v, ok := fields[slog.LevelKey]; ok {
		rec.Level = parseLevel(v)
	}
	if v, ok := fields[slog.MessageKey].(string); ok {
		rec.Message = v
	} else if v, ok := fields["message"].(string); ok {
		rec.Message = v
	}
	if v, ok := fields["channel"].(string); ok {
		rec.Channel = v
	}

	for _, k := range []string{slog.TimeKey, slog.LevelKey, slog.MessageKey, "message", "channel"} {
		delete(fields, k)
	}
	if len(fields) == 0 {
		return rec, nil
	}

	for _, k := range []string{sentryadapter.DefaultExceptionKey, "error"} {
		if v, ok := fields[k].(string); ok && v != "" {
			fields[sentryadapter.DefaultExceptionKey] = &RemoteError{Message: v}
			break
		}
	}
	rec.Context = fields
	return rec, nil
}

// parseLevel reads a level written as a name or as a number. Anything else is
// treated as the most severe level so it is never silently downgraded.
func parseLevel(v any) slog.Level {
	switch val := v.(type) {
	case nil:
		return sentryadapter.LevelInfo
	case string:
		if level, err := sentryadapter.ParseLevel(val); err == nil {
			return level
		}
	case float64:
		return slog.Level(int(val))
	}
	return sentryadapter.LevelEmergency
}
