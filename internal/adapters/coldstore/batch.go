package coldstore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eraguess/eraguess/internal/domain/model"
)

// Batch file naming. One directory per challenge date: the initial batch is
// written exactly once at finalization, deltas carry a nanosecond timestamp
// plus a random suffix so concurrent flushes never share a key.
const batchExt = ".jsonl"

// InitialKey returns the object key for a challenge's first archive batch.
func InitialKey(prefix, date string) string {
	return fmt.Sprintf("%s/%s/%s-initial%s", prefix, date, date, batchExt)
}

// DeltaKey returns the object key for a late-arrival batch.
func DeltaKey(prefix, date string, at time.Time) string {
	return fmt.Sprintf("%s/%s/delta_%d_%s%s", prefix, date, at.UnixNano(), uuid.NewString()[:8], batchExt)
}

// EncodeBatch renders events as newline-delimited JSON, one event per line.
func EncodeBatch(events []model.RawGuessEvent) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range events {
		if err := enc.Encode(&events[i]); err != nil {
			return nil, fmt.Errorf("encode batch line %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// DecodeBatch parses a newline-delimited JSON batch body.
func DecodeBatch(body []byte) ([]model.RawGuessEvent, error) {
	var out []model.RawGuessEvent
	s := bufio.NewScanner(bytes.NewReader(body))
	// Allow larger lines than the default 64K.
	buf := make([]byte, 0, 64*1024)
	s.Buffer(buf, 8*1024*1024)
	for s.Scan() {
		line := s.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev model.RawGuessEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("invalid jsonl line: %w", err)
		}
		out = append(out, ev)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
