// Command typebind inspects declaration graphs: binding maps of derived
// classes, rewritten annotations and container dependencies. It also
// scans Go packages into manifests and stores them in a catalog or a
// snapshot file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "typebind: %v\n", err)
		os.Exit(1)
	}
}
