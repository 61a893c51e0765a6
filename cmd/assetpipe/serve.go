package main

import (
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/kestrelengine/assetpipe/corelog"
	"github.com/kestrelengine/assetpipe/remote"
)

func newServeCommand() *cobra.Command {
	var addr string
	var mountDir string

	cmd := &cobra.Command{
		Use:   "serve [flags] <source-dir>",
		Short: "Run in Bake Server Mode: serve LDAS/FRD0/FWT0/DMON over a TCP listener.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mountDir = args[0]
			a, err := newApp(cfg, mountDir, false)
			if err != nil {
				return err
			}
			remote.RegisterVFSHandlers(a.bus, a.v)
			a.manager.RegisterBakeServerHandler(a.bus)

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return errors.Wrapf(err, "listening on %q", addr)
			}
			corelog.Infof("serve", "bake server mode listening on %s, serving %q", ln.Addr(), mountDir)

			go runSchedulerLoop(a)
			return a.bus.Serve(ln)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":9876", "TCP address to listen on")
	return cmd
}

// runSchedulerLoop drives Update on a steady tick, the bake-server-mode
// equivalent of a game engine's frame loop pumping the scheduler (spec §4.6,
// §4.7 Bake Server Pipeline: a Server job is (re-)submitted every tick so
// queued LDAS requests get serviced even with nothing else driving Update).
func runSchedulerLoop(a *app) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		if _, _, inFlight := a.scheduler.CurrentJob(); !inFlight && a.scheduler.PendingLen() == 0 {
			a.scheduler.SubmitServer()
		}
		a.scheduler.Update()
	}
}
