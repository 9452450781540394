package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"

	"github.com/arkilian/beacon/pkg/types"
)

// maxLineBytes bounds one JSON event line.
const maxLineBytes = 1 << 20

// Recorder accepts replayed events.
type Recorder interface {
	Record(e types.Event) error
}

// ReplayResult counts what happened to the input lines.
type ReplayResult struct {
	Lines    int
	Recorded int
	Rejected int
}

// replay reads one JSON event per line from r and records it. Blank lines are
// skipped and a missing timestamp is stamped with the current time. Malformed
// or invalid events are logged and counted, never fatal. It returns when r is
// exhausted or ctx is cancelled.
func replay(ctx context.Context, r io.Reader, rec Recorder, logger *log.Logger) (ReplayResult, error) {
	var res ReplayResult

	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), maxLineBytes)
		for sc.Scan() {
			line := append([]byte(nil), sc.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return res, nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return res, err
				default:
					return res, nil
				}
			}
			res.Lines++
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			var e types.Event
			if err := json.Unmarshal(line, &e); err != nil {
				res.Rejected++
				logger.Printf("[WARN] input: line %d: %v", res.Lines, err)
				continue
			}
			if e.Timestamp == 0 {
				e.Timestamp = types.NowMillis()
			}
			if err := rec.Record(e); err != nil {
				res.Rejected++
				logger.Printf("[WARN] input: line %d: %v", res.Lines, err)
				continue
			}
			res.Recorded++
		}
	}
}
