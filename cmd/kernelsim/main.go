// Command kernelsim boots a Kernel and drives it through a fixed demo
// syscall trace (stdio boot, open, write, fork, child exit and waitpid),
// printing each step -- a convenient way to see the
// process/file subsystem behave without a real kernel underneath it.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/go-osk/osk/internal/proc"
	"github.com/go-osk/osk/internal/vfstest"
	"github.com/go-osk/osk/internal/vmtest"
	"github.com/go-osk/osk/kernel"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "kernelsim",
		Short: "Drive the osk process/file subsystem through a demo syscall trace",
		RunE: func(cmd *cobra.Command, args []string) error {
			limits := kernel.DefaultLimits()
			if configPath != "" {
				l, err := kernel.LoadLimits(configPath)
				if err != nil {
					return err
				}
				limits = l
			}

			log := logrus.New()
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}

			return runDemo(limits, log)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML limits file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func runDemo(limits kernel.Limits, log *logrus.Logger) error {
	fs := vfstest.New("con:")
	spawner := &kernel.ErrgroupSpawner{}
	k := kernel.New(limits, fs, vmtest.Factory{}, spawner, log, nil)
	sc := kernel.NewSyscalls(k)

	root, kerr := k.Boot("init", "con:")
	if kerr != 0 {
		return fmt.Errorf("boot: %w", kerr)
	}
	fmt.Printf("booted pid=%d stdio fds=0,1,2\n", root.Pid)

	fd, kerr := sc.Open(root, "greeting.txt", 2 /* O_RDWR */, 0644)
	if kerr != 0 {
		return fmt.Errorf("open: %w", kerr)
	}
	fmt.Printf("opened greeting.txt as fd=%d\n", fd)

	if _, kerr := sc.Write(root, fd, []byte("hello from osk")); kerr != 0 {
		return fmt.Errorf("write: %w", kerr)
	}

	childEntryDone := make(chan struct{})
	childPID, kerr := sc.Fork(root, nil, func(pid proc.Pid, _ kernel.Trapframe) {
		defer close(childEntryDone)
		child, ok := k.Process(pid)
		if !ok {
			return
		}
		fmt.Printf("child pid=%d observes shared fd=%d\n", pid, fd)
		sc.Exit(child, 7)
	})
	if kerr != 0 {
		return fmt.Errorf("fork: %w", kerr)
	}
	fmt.Printf("forked child pid=%d\n", childPID)

	<-childEntryDone
	_, status, kerr := sc.Waitpid(root, childPID, 0)
	if kerr != 0 {
		return fmt.Errorf("waitpid: %w", kerr)
	}
	fmt.Printf("reaped child pid=%d status=%d\n", childPID, status)

	spawner.Wait()
	return nil
}
