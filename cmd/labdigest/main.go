// labdigest runs the lab-usage digestion pipeline from the command line.
//
// Usage:
//
//	labdigest ingest [--kind=raw] FILE...
//	labdigest sanitize
//	labdigest digest
//	labdigest status [--kind=KIND]
//	labdigest quarantine ID
//	labdigest fix ID --row=N [--field=full_name|advisor] --value=NAME
//	labdigest export [--dir=DIR]
//	labdigest stats insert REPORT_ID
//	labdigest report init REPORT_ID --year=YYYY
//	labdigest reset --yes
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/labdigest/internal/core"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// printError writes the catalog message for err, followed by the technical
// detail when the catalog knows the error.
func printError(w io.Writer, err error) {
	if !core.IsUserFacing(err) {
		fmt.Fprintln(w, "error:", err)
		return
	}
	fmt.Fprintln(w, "error:", core.FormatUserError(err))
	fmt.Fprintln(w, "  detail:", err)
}
