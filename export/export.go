package export

import (
	"context"

	"github.com/ohleck/gr-analyzer/sdr"
)

type Exporter interface {
	Write(context.Context, <-chan sdr.StepRecord) error
}
