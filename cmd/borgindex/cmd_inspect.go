package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/rciorba/borgindex/hashtable"
)

func newCmd_Inspect() *cli.Command {
	return &cli.Command{
		Name:        "inspect",
		Description: "Print the header and summary statistics of an index file without fully loading it.",
		ArgsUsage:   "<index-file>",
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return fmt.Errorf("inspect: missing <index-file> argument")
			}
			info, err := hashtable.Stat(path)
			if err != nil {
				return err
			}
			kind := "unknown"
			switch info.ValueSize {
			case 8:
				kind = "nsindex"
			case 12:
				kind = "chunkindex"
			}
			fmt.Printf("kind:        %s\n", kind)
			fmt.Printf("key_size:    %d\n", info.KeySize)
			fmt.Printf("value_size:  %d\n", info.ValueSize)
			fmt.Printf("num_entries: %s\n", humanize.Comma(int64(info.NumEntries)))
			fmt.Printf("num_buckets: %s\n", humanize.Comma(int64(info.NumBuckets)))
			if info.NumBuckets > 0 {
				fmt.Printf("load_factor: %.4f\n", float64(info.NumEntries)/float64(info.NumBuckets))
			}
			fmt.Printf("size:        %s\n", humanize.Bytes(uint64(info.Size)))
			return nil
		},
	}
}
