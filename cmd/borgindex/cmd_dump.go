package main

import (
	"encoding/hex"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/rciorba/borgindex/chunkindex"
	"github.com/rciorba/borgindex/hashtable"
	"github.com/rciorba/borgindex/nsindex"
)

func hexKey(key []byte) string {
	return hex.EncodeToString(key)
}

func newCmd_Dump() *cli.Command {
	return &cli.Command{
		Name:        "dump",
		Description: "Print every entry of an index file, one per line.",
		ArgsUsage:   "<index-file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "marker",
				Usage: "Resume iteration after this hex-encoded key marker",
			},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return fmt.Errorf("dump: missing <index-file> argument")
			}
			info, err := hashtable.Stat(path)
			if err != nil {
				return err
			}
			var marker []byte
			if m := c.String("marker"); m != "" {
				marker, err = hex.DecodeString(m)
				if err != nil {
					return fmt.Errorf("dump: bad --marker: %w", err)
				}
			}

			f, err := openFile(path)
			if err != nil {
				return err
			}
			defer f.Close()

			switch info.ValueSize {
			case nsindex.ValueSize:
				idx, err := nsindex.Open(f)
				if err != nil {
					return err
				}
				it, err := idx.Iteritems(marker)
				if err != nil {
					return err
				}
				for {
					key, entry, ok := it.Next()
					if !ok {
						break
					}
					fmt.Printf("%s segment=%d offset=%d\n", hexKey(key), entry.Segment, entry.Offset)
				}
			case chunkindex.ValueSize:
				idx, err := chunkindex.Open(f)
				if err != nil {
					return err
				}
				it, err := idx.Iteritems(marker)
				if err != nil {
					return err
				}
				for {
					key, entry, ok := it.Next()
					if !ok {
						break
					}
					fmt.Printf("%s refcount=%d size=%d csize=%d\n", hexKey(key), entry.Refcount, entry.Size, entry.CSize)
				}
			default:
				return fmt.Errorf("dump: unrecognized value_size %d", info.ValueSize)
			}
			return nil
		},
	}
}
