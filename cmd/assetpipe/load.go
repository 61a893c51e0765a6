package main

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/kestrelengine/assetpipe/asset"
	"github.com/kestrelengine/assetpipe/typereg"
)

func newLoadCommand() *cobra.Command {
	var typeName string

	cmd := &cobra.Command{
		Use:   "load [flags] <path>",
		Short: "Smoke-load a single asset and report its committed size.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			mountDir, relPath := filepath.Split(path)
			if mountDir == "" {
				mountDir = "."
			}

			a, err := newApp(cfg, mountDir, cfg.RemoteURL != "")
			if err != nil {
				return err
			}
			desc, ok := lookupTypeByName(a, typeName)
			if !ok {
				return errors.Errorf("unknown asset type %q", typeName)
			}

			groupHandle := a.groups.CreateGroup()
			group, _ := a.groups.Get(groupHandle)

			handle, _ := a.db.CreateOrFetchHandle(asset.Params{TypeID: desc.TypeID, Path: "data/" + relPath})
			group.AddToLoadQueue(handle)

			a.scheduler.SubmitLoad(groupHandle)
			a.scheduler.Update()
			a.scheduler.Wait(a.groups, groupHandle)

			state, _ := a.db.State(handle)
			data := a.db.GetObjData(handle)
			fmt.Printf("load %s: state=%s committedBytes=%d\n", path, state, len(data))
			if state != asset.StateLoaded {
				return errors.New("load failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&typeName, "type", "image", "registered asset type name (image, model, shader)")
	return cmd
}

func lookupTypeByName(a *app, name string) (typereg.Descriptor, bool) {
	for _, d := range a.registry.All() {
		if d.Name == name {
			return d, true
		}
	}
	return typereg.Descriptor{}, false
}
