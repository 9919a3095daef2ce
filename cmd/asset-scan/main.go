// Command asset-scan inventories security-relevant signals in Verilog and
// SystemVerilog sources.
//
// A scan walks a directory for *.v and *.sv files, extracts declarations and
// usages from each file, and classifies the signals it finds:
//
//	Control  1-bit inputs tested in if conditions          CIA = A
//	Config   2..9-bit inputs in if conditions or case      CIA = IA
//	Status   1-bit outputs driven from non-literal values  CIA = I
//	Data     wide ports and nets that are assigned         CIA = CIA / C
//	Param    parameter declarations                        CIA = A / I
//
// Records are appended to asset_list.csv in the scanned directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
