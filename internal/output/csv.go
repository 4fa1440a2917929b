package output

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/gofrs/flock"

	"github.com/torosent/volley/internal/metrics"
)

var csvHeader = []string{"index", "status_code", "latency", "success", "error_kind", "attempts"}

const lockRetryDelay = 50 * time.Millisecond

// WriteCSV writes one row per outcome, ordered by index. Missing status codes
// and latencies are written as empty cells.
func WriteCSV(w io.Writer, outcomes []metrics.Outcome) error {
	sorted := make([]metrics.Outcome, len(outcomes))
	copy(sorted, outcomes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, o := range sorted {
		status := ""
		if o.StatusCode != nil {
			status = strconv.Itoa(*o.StatusCode)
		}
		latency := ""
		if o.LatencySeconds != nil {
			latency = strconv.FormatFloat(*o.LatencySeconds, 'f', -1, 64)
		}
		row := []string{
			strconv.Itoa(o.Index),
			status,
			latency,
			strconv.FormatBool(o.Success),
			string(o.ErrorKind),
			strconv.Itoa(o.Attempts),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportCSV writes outcomes to path while holding an exclusive lock on
// path+".lock", so concurrent runs sharing an output path do not interleave.
func ExportCSV(ctx context.Context, path string, outcomes []metrics.Outcome) error {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	if !locked {
		return fmt.Errorf("lock %s: not acquired", path)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(path + ".lock")
	}()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteCSV(f, outcomes); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
