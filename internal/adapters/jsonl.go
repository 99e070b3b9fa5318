package adapters

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
)

// maxScanTokenSize bounds a single JSONL record. Transcripts embed whole files
// and tool outputs, so lines can be large.
const maxScanTokenSize = 10 * 1024 * 1024 // 10MB

// scanJSONL calls fn for every non-blank line of r. A line that fn rejects is
// recorded in stats and skipped; only read failures abort the scan.
func scanJSONL(ctx context.Context, r io.Reader, stats *ParseStats, fn func(line []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxScanTokenSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.Lines++

		if err := fn(line); err != nil {
			stats.addError(lineNum, "%v", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanning file: %w", err)
	}
	return nil
}
