package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/rciorba/borgindex/chunkindex"
	"github.com/rciorba/borgindex/hashtable"
)

// newCmd_Merge merges two chunkindex files using saturating refcount add.
// nsindex has no merge operation, so a-file/b-file must both be chunkindex
// files.
func newCmd_Merge() *cli.Command {
	return &cli.Command{
		Name:        "merge",
		Description: "Merge two chunkindex files (saturating refcount add) into a new file.",
		ArgsUsage:   "<a-file> <b-file> <out-file>",
		Action: func(c *cli.Context) error {
			aPath, bPath, outPath := c.Args().Get(0), c.Args().Get(1), c.Args().Get(2)
			if aPath == "" || bPath == "" || outPath == "" {
				return fmt.Errorf("merge: usage: merge <a-file> <b-file> <out-file>")
			}
			startedAt := time.Now()
			defer func() { klog.Infof("merge: finished in %s", time.Since(startedAt)) }()

			for _, p := range []string{aPath, bPath} {
				info, err := hashtable.Stat(p)
				if err != nil {
					return err
				}
				if info.ValueSize != chunkindex.ValueSize {
					return fmt.Errorf("merge: %s is not a chunkindex file (value_size=%d)", p, info.ValueSize)
				}
			}

			aFile, err := openFile(aPath)
			if err != nil {
				return err
			}
			defer aFile.Close()
			a, err := chunkindex.Open(aFile)
			if err != nil {
				return err
			}
			a.SetMetrics(metricsRecorder)

			bFile, err := openFile(bPath)
			if err != nil {
				return err
			}
			defer bFile.Close()
			b, err := chunkindex.Open(bFile)
			if err != nil {
				return err
			}

			if err := a.Merge(b); err != nil {
				return err
			}

			out, err := createFile(outPath)
			if err != nil {
				return err
			}
			defer out.Close()
			if _, err := a.WriteTo(out); err != nil {
				return err
			}
			klog.Infof("merge: wrote %d entries", a.Len())
			return nil
		},
	}
}
