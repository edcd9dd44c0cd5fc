package export

import (
	"context"
	"fmt"

	"github.com/jsamuelsen/quote-keeper/internal/platform/config"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

var (
	_ ports.ExportSink = (*FileSink)(nil)
	_ ports.ExportSink = (*S3Sink)(nil)
)

// Open returns the sink cfg selects, or nil when publishing is disabled.
func Open(ctx context.Context, cfg config.ExportConfig) (ports.ExportSink, error) {
	switch cfg.Sink {
	case config.ExportSinkNone, "":
		return nil, nil //nolint:nilnil // disabled
	case config.ExportSinkFile:
		sink, err := NewFileSink(cfg.File.Dir)
		if err != nil {
			return nil, err
		}

		return sink, nil
	case config.ExportSinkS3:
		sink, err := NewS3Sink(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}

		return sink, nil
	default:
		return nil, fmt.Errorf("unknown export sink %q", cfg.Sink)
	}
}
