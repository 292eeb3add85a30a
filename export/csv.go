package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"

	"github.com/ohleck/gr-analyzer/sdr"
)

// CSV writes one line per completed frequency step. Out defaults to stdout.
type CSV struct {
	Out io.Writer
}

func (c *CSV) Write(ctx context.Context, records <-chan sdr.StepRecord) error {
	out := c.Out
	if out == nil {
		out = os.Stdout
	}
	w := csv.NewWriter(out)
	w.Write([]string{
		"Identifier",
		"Source",
		"Segment",
		"StepIndex",
		"FreqCenterHz",
		"LOOffsetHz",
		"SettleCount",
		"CopyCount",
		"StartUnixMilli",
		"EndUnixMilli",
	})

	for r := range records {
		if err := w.Write([]string{
			r.Identifier,
			r.Source,
			fmt.Sprintf("%d", r.Segment),
			fmt.Sprintf("%d", r.StepIndex),
			fmt.Sprintf("%.0f", r.FreqCenterHz),
			fmt.Sprintf("%.0f", r.LOOffsetHz),
			fmt.Sprintf("%d", r.SettleCount),
			fmt.Sprintf("%d", r.CopyCount),
			fmt.Sprintf("%d", r.Start.UnixMilli()),
			fmt.Sprintf("%d", r.End.UnixMilli()),
		}); err != nil {
			glog.Warningf("error while writing CSV line: %s\n", err)
		}

		w.Flush()
		if err := w.Error(); err != nil {
			glog.Warningf("error flushing CSV: %s\n", err)
		}
	}
	return nil
}
