package vfs

import "time"

// startRemoteMonitor polls the server's DMON command on a 1-second cadence
// and synthesizes local change-notify events for whatever paths the server
// reports (spec §4.1: "Remote clients synthesize the same notifications by
// polling the server via a MonitorChanges command on a 1-second cadence").
func (v *VFS) startRemoteMonitor(alias string) {
	v.monitorStop = make(chan struct{})
	v.monitorWG.Add(1)
	go func() {
		defer v.monitorWG.Done()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if v.remote == nil || !v.remote.IsConnected() {
					continue
				}
				changed, err := v.remote.MonitorChanges(alias)
				if err != nil {
					continue
				}
				for _, p := range changed {
					v.dispatchChange(p)
				}
			case <-v.monitorStop:
				return
			}
		}
	}()
}
