package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/rciorba/borgindex/chunkindex"
	"github.com/rciorba/borgindex/hashtable"
	"github.com/rciorba/borgindex/nsindex"
)

func newCmd_Compact() *cli.Command {
	return &cli.Command{
		Name:        "compact",
		Description: "Read an index, compact it to remove tombstones, and write the result to a new file.",
		ArgsUsage:   "<in-file> <out-file>",
		Action: func(c *cli.Context) error {
			inPath, outPath := c.Args().Get(0), c.Args().Get(1)
			if inPath == "" || outPath == "" {
				return fmt.Errorf("compact: usage: compact <in-file> <out-file>")
			}
			startedAt := time.Now()
			defer func() { klog.Infof("compact: finished in %s", time.Since(startedAt)) }()

			info, err := hashtable.Stat(inPath)
			if err != nil {
				return err
			}
			in, err := openFile(inPath)
			if err != nil {
				return err
			}
			defer in.Close()

			out, err := createFile(outPath)
			if err != nil {
				return err
			}
			defer out.Close()

			switch info.ValueSize {
			case nsindex.ValueSize:
				idx, err := nsindex.Open(in)
				if err != nil {
					return err
				}
				idx.SetMetrics(metricsRecorder)
				if err := idx.Compact(); err != nil {
					return err
				}
				if _, err := idx.WriteTo(out); err != nil {
					return err
				}
				klog.Infof("compact: wrote %d entries", idx.Len())
			case chunkindex.ValueSize:
				idx, err := chunkindex.Open(in)
				if err != nil {
					return err
				}
				idx.SetMetrics(metricsRecorder)
				if err := idx.Compact(); err != nil {
					return err
				}
				if _, err := idx.WriteTo(out); err != nil {
					return err
				}
				klog.Infof("compact: wrote %d entries", idx.Len())
			default:
				return fmt.Errorf("compact: unrecognized value_size %d", info.ValueSize)
			}
			return nil
		},
	}
}
