// Command borgindex inspects, dumps, compacts, and merges NSIndex and
// ChunkIndex files from the command line: an urfave/cli App wired to klog
// verbosity flags and a context canceled on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

var gitCommitSHA = ""

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, syscall.SIGTERM, syscall.SIGINT)

		select {
		case <-interrupt:
			fmt.Println()
			klog.Info("received interrupt signal")
			cancel()
		case <-ctx.Done():
		}

		signal.Stop(interrupt)
	}()

	app := &cli.App{
		Name:        "borgindex",
		Version:     gitCommitSHA,
		Description: "Inspect, dump, compact, and merge borgindex NSIndex/ChunkIndex files.",
		Flags:       append(NewKlogFlagSet(), newMetricsFlags()...),
		Before: func(c *cli.Context) error {
			metricsRecorder = newMetricsRecorder(c.String("metrics-addr"))
			return nil
		},
		Commands: []*cli.Command{
			newCmd_Inspect(),
			newCmd_Dump(),
			newCmd_Compact(),
			newCmd_Merge(),
		},
	}

	sort.Sort(cli.FlagsByName(app.Flags))
	sort.Sort(cli.CommandsByName(app.Commands))

	if err := app.RunContext(ctx, os.Args); err != nil {
		klog.Fatal(err)
	}
}
