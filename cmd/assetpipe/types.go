package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrelengine/assetpipe/typereg"
)

func newTypesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List registered asset types.",
		RunE: func(cmd *cobra.Command, args []string) error {
			r := typereg.New()
			if err := registerBuiltinTypes(r); err != nil {
				return err
			}
			for _, d := range r.All() {
				fmt.Printf("%#08x  %s\n", d.TypeID, d.Name)
			}
			return nil
		},
	}
}
