package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrelengine/assetpipe/vfs"
)

func newPackCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pack <src-dir> <index-file> <blob-file>",
		Short: "Pack a directory into a bbolt-indexed asset bundle for MountBundle.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			srcDir, indexPath, blobPath := args[0], args[1], args[2]
			if err := vfs.PackBundle(srcDir, indexPath, blobPath); err != nil {
				return err
			}
			fmt.Printf("packed %s -> %s (%s)\n", srcDir, blobPath, indexPath)
			return nil
		},
	}
	return cmd
}
