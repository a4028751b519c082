// scdemux demultiplexes sequencing reads against one or more barcode
// patterns, writing per-pattern TSV/FASTQ output plus a failed-lines file
// for reads no configured pattern matched.
//
// A typical invocation using flags:
//
//	scdemux --Pattern="[ACGT][NNNN][XXX]" --Mismatches="0,1,0" --BarcodeFile=barcodes.txt \
//	    --ReadFileName=reads.fastq --OutPath=results --Threads=8
//
// To use a JSON config file instead:
//
//	scdemux --Config=config.json
//
// See internal/config.Config for the full set of configuration parameters.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/tstohn/scdemux/internal/apperr"
	"github.com/tstohn/scdemux/internal/config"
	"github.com/tstohn/scdemux/internal/demux"
)

func main() {
	cfg, err := config.FromFlags(os.Args[1:])
	if err != nil {
		die(err)
	}

	summary, err := demux.Run(cfg)
	if err != nil {
		die(err)
	}

	fmt.Printf(
		"processed %d reads: %d perfect matches, %d unmatched, elapsed %s\n",
		summary.ReadsProcessed, summary.PerfectMatches, summary.NoMatches, summary.Elapsed,
	)
}

// die reports err to stderr, distinguishing the two run-aborting kinds
// the original reports as distinct stderr lines, and exits non-zero.
func die(err error) {
	var cfgErr *apperr.ConfigError
	var ioErr *apperr.IoError
	switch {
	case errors.As(err, &cfgErr):
		fmt.Fprintf(os.Stderr, "PARAMETER ERROR: %v\n", err)
	case errors.As(err, &ioErr):
		fmt.Fprintf(os.Stderr, "IO ERROR: %v\n", err)
	default:
		fmt.Fprintf(os.Stderr, "scdemux: %v\n", err)
	}
	os.Exit(1)
}
