package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	flag "github.com/spf13/pflag"

	scan2pdf "github.com/alnah/go-scan2pdf"
	"github.com/alnah/go-scan2pdf/internal/config"
)

func TestExitCodeFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitSuccess},
		{name: "unknown error", err: errors.New("boom"), want: ExitGeneral},
		{name: "all documents failed", err: ErrConversionFailed, want: ExitGeneral},
		{name: "canceled", err: context.Canceled, want: ExitGeneral},

		{name: "rasterizer init", err: scan2pdf.ErrRasterizerInit, want: ExitRasterizer},
		{name: "wrapped rasterizer init", err: fmt.Errorf("starting: %w", scan2pdf.ErrRasterizerInit), want: ExitRasterizer},

		{name: "not exist", err: fmt.Errorf("open: %w", os.ErrNotExist), want: ExitIO},
		{name: "permission", err: os.ErrPermission, want: ExitIO},
		{name: "no input", err: ErrNoInput, want: ExitIO},
		{name: "no matching files", err: ErrNoMatchingFiles, want: ExitIO},
		{name: "output dir", err: ErrOutputDir, want: ExitIO},
		{name: "assemble", err: scan2pdf.ErrAssemble, want: ExitIO},

		{name: "config not found", err: config.ErrConfigNotFound, want: ExitUsage},
		{name: "config parse", err: config.ErrConfigParse, want: ExitUsage},
		{name: "field too long", err: config.ErrFieldTooLong, want: ExitUsage},
		{name: "invalid value", err: config.ErrInvalidValue, want: ExitUsage},
		{name: "invalid quality", err: scan2pdf.ErrInvalidQuality, want: ExitUsage},
		{name: "invalid noise", err: scan2pdf.ErrInvalidNoise, want: ExitUsage},
		{name: "invalid factor", err: scan2pdf.ErrInvalidFactor, want: ExitUsage},
		{name: "too many args", err: ErrTooManyArgs, want: ExitUsage},
		{name: "help", err: flag.ErrHelp, want: ExitUsage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
