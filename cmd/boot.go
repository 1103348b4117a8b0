// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kavionic/padkernel/clock"
	"github.com/kavionic/padkernel/internal/klog"
	"github.com/kavionic/padkernel/internal/telemetry"
	"github.com/kavionic/padkernel/kernel/handle"
	"github.com/kavionic/padkernel/kernel/sched"
	"github.com/kavionic/padkernel/vfs"
	"github.com/kavionic/padkernel/vfs/fsops"
	"github.com/kavionic/padkernel/vfs/rootfs"
)

var mountArgsYAML string

var bootCmd = &cobra.Command{
	Use:   "boot",
	Short: "Start the scheduler, mount a rootfs, and run until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		klog.Init(KernelConfig.Log)
		return runBoot(cmd.Context())
	},
}

func init() {
	bootCmd.Flags().StringVar(&mountArgsYAML, "mount-args", "", "YAML document of filesystem-specific mount arguments")
}

func runBoot(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := telemetry.New()
	klog.Infof("padkernel booting")

	clk := clock.RealClock{}
	handles := handle.NewTable()
	scheduler := sched.NewScheduler(clk, handles)
	scheduler.SpawnIdle()

	registry := vfs.NewRegistry()
	registry.Register("rootfs", func() fsops.Filesystem { return rootfs.New(clk) })

	v := vfs.New(registry, clk.Now, vfs.CacheOptions{
		MaxIdle:       KernelConfig.VFS.InodeCacheCap,
		IdleThreshold: KernelConfig.VFS.InodeIdleThreshold(),
	})
	mountArgs, err := vfs.ParseMountArgs([]byte(mountArgsYAML))
	if err != nil {
		return err
	}
	if len(mountArgs) > 0 {
		klog.Infof("root mount args: %v", mountArgs)
	}
	if err := v.MountRoot(nil, "rootfs", 0, ""); err != nil {
		return err
	}
	rootVol, err := v.Volume(vfs.RootVolumeID)
	if err != nil {
		return err
	}
	klog.Infof("root filesystem mounted, volume uuid=%s", rootVol.UUID)

	_, err = scheduler.Spawn("sweeper", 0, func(t *sched.Thread) {
		for {
			if err := scheduler.Sleep(t, KernelConfig.VFS.InodeIdleThreshold()); err != nil {
				return
			}
			n := v.SweepIdleInodes()
			if n > 0 {
				klog.Debugf("swept %d idle inodes", n)
			}
		}
	})
	if err != nil {
		return err
	}

	// The scheduler's dispatch loop and the metrics heartbeat are the
	// boot-time fleet of kernel support goroutines: if either exits the
	// other is canceled along with it.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return scheduler.Run(gctx) })
	g.Go(func() error { return publishReadyQueueDepth(gctx, scheduler, metrics) })
	return g.Wait()
}

func publishReadyQueueDepth(ctx context.Context, scheduler *sched.Scheduler, metrics *telemetry.Metrics) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for p := sched.MinPriority; p <= sched.MaxPriority; p++ {
				metrics.ReadyQueueDepth.WithLabelValues(fmt.Sprint(p)).Set(float64(scheduler.ReadyLen(p)))
			}
		}
	}
}
