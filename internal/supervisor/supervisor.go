// Package supervisor implements the master process of the prefork model:
// spec.md section 4.10 and SPEC_FULL.md section 6, grounded on
// worker_master_start, worker_table, and the signal handling split across
// worker.c/worker_signals.h in the original source.
//
// Go has no fork(); the supervisor gets the effect of "the master holds a
// table of child processes and respawns dead ones" by re-executing its own
// binary (os.Args[0]) once per worker slot, handing each child the shared
// listening socket through ExtraFiles rather than through an inherited fd
// number from fork(). Each child is told which slot it occupies and that it
// should run the worker loop, not the supervisor loop, via a flag on its
// re-exec command line.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/zeushttp/zeushttp/internal/config"
	"github.com/zeushttp/zeushttp/internal/netutil"
	"github.com/zeushttp/zeushttp/internal/zlog"
)

// WorkerSlotFlag is the command-line flag a re-executed child inspects to
// discover it is a worker, and which slot it occupies. cmd/zeushttpd
// declares the same flag in its own flag parsing rather than using this
// constant.
const WorkerSlotFlag = "-worker-slot="

// reapPollInterval matches the original's "sleep ~100ms between
// non-blocking waitpid polls" cadence in worker_master_start.
const reapPollInterval = 100 * time.Millisecond

// Status mirrors spec.md section 4.10's worker table states.
type Status int

const (
	StatusRunning Status = iota
	StatusExiting
)

type workerSlot struct {
	index  int
	pid    int
	status Status
}

// Supervisor owns the listening socket, the worker table, and the
// re-exec/reap lifecycle. It never serves traffic itself.
type Supervisor struct {
	cfg      config.Config
	log      *zlog.Logger
	listenFD int

	mu      sync.Mutex
	workers []*workerSlot

	reloadRequested   chan struct{}
	shutdownRequested chan struct{}
	closeOnce         sync.Once
}

// New binds the listening socket (SO_REUSEADDR, non-blocking) and, only when
// running as root (euid 0), drops privileges to cfg.RunAsUser, the ordering spec.md section
// 4.10 requires: listen, then drop, then spawn workers.
func New(cfg config.Config, log *zlog.Logger) (*Supervisor, error) {
	fd, err := netutil.Listen(cfg.BindHost, cfg.BindPort)
	if err != nil {
		return nil, fmt.Errorf("supervisor: listen: %w", err)
	}

	if os.Geteuid() == 0 {
		if err := netutil.DropPrivileges(cfg.RunAsUser); err != nil {
			syscall.Close(fd)
			return nil, fmt.Errorf("supervisor: drop privileges: %w", err)
		}
	}

	return &Supervisor{
		cfg:               cfg,
		log:               log,
		listenFD:          fd,
		workers:           make([]*workerSlot, cfg.NumWorkers),
		reloadRequested:   make(chan struct{}, 1),
		shutdownRequested: make(chan struct{}),
	}, nil
}

// Run spawns every worker slot, then blocks handling signals and reaping
// dead children until a shutdown is requested (SIGQUIT/SIGTERM or an
// explicit Shutdown call), at which point it signals every running worker
// and waits for the table to drain.
func (s *Supervisor) Run() error {
	for i := 0; i < len(s.workers); i++ {
		if err := s.spawn(i); err != nil {
			return fmt.Errorf("supervisor: spawn slot %d: %w", i, err)
		}
	}

	sigCh := make(chan os.Signal, 8)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGPIPE)
	defer signal.Stop(sigCh)

	group, ctx := errgroup.WithContext(context.Background())
	group.Go(func() error {
		ticker := time.NewTicker(reapPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-s.shutdownRequested:
				return nil
			case <-ticker.C:
				s.reapOnce()
			}
		}
	})
	group.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-s.shutdownRequested:
				return nil
			case sig := <-sigCh:
				switch sig {
				case syscall.SIGHUP:
					s.log.Info("received SIGHUP, reloading workers")
					s.reload()
				case syscall.SIGQUIT, syscall.SIGTERM:
					s.log.Info("received %v, shutting down", sig)
					s.Shutdown()
					return nil
				case syscall.SIGPIPE:
					// Ignored, as the original's signal table does.
				}
			}
		}
	})

	<-s.shutdownRequested
	err := group.Wait()
	reapErr := s.drain()
	return multierr.Append(err, reapErr)
}

// Shutdown marks every RUNNING worker EXITING, signals them SIGTERM, and
// unblocks Run's wait loop. Safe to call multiple times.
func (s *Supervisor) Shutdown() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		for _, w := range s.workers {
			if w != nil && w.status == StatusRunning {
				w.status = StatusExiting
				_ = syscall.Kill(w.pid, syscall.SIGTERM)
			}
		}
		s.mu.Unlock()
		close(s.shutdownRequested)
	})
}

// reload marks every currently running worker EXITING and spawns a fresh
// replacement in its slot immediately, rather than waiting for the reap
// loop to notice the old one exited — new connections land on the new
// worker right away while the old one finishes in-flight work and exits on
// its own accord (SIGTERM).
func (s *Supervisor) reload() {
	s.mu.Lock()
	slots := make([]int, 0, len(s.workers))
	for i, w := range s.workers {
		if w != nil && w.status == StatusRunning {
			slots = append(slots, i)
		}
	}
	s.mu.Unlock()

	for _, i := range slots {
		s.mu.Lock()
		old := s.workers[i]
		old.status = StatusExiting
		oldPID := old.pid
		s.mu.Unlock()

		_ = syscall.Kill(oldPID, syscall.SIGTERM)
		if err := s.spawn(i); err != nil {
			s.log.Error("reload: respawn slot %d: %v", i, err)
		}
	}
}

// reapOnce performs one non-blocking waitpid(-1, WNOHANG) poll, respawning
// any RUNNING slot whose child has exited and leaving EXITING slots dead,
// matching worker_master_start's reap behavior exactly.
func (s *Supervisor) reapOnce() {
	for {
		var status syscall.WaitStatus
		pid, err := syscall.Wait4(-1, &status, syscall.WNOHANG, nil)
		if err != nil || pid <= 0 {
			return
		}

		s.mu.Lock()
		var dead *workerSlot
		for _, w := range s.workers {
			if w != nil && w.pid == pid {
				dead = w
				break
			}
		}
		s.mu.Unlock()
		if dead == nil {
			continue
		}

		s.log.Warn("worker slot %d (pid %d) exited, status=%v", dead.index, pid, status)
		if dead.status == StatusRunning {
			if err := s.spawn(dead.index); err != nil {
				s.log.Error("respawn slot %d: %v", dead.index, err)
			}
		}
	}
}

// drain blocks (with blocking Wait4 calls) until every worker in the table
// has exited, aggregating any reap errors with multierr instead of
// dropping all but the last, per SPEC_FULL.md section 5's dependency table.
func (s *Supervisor) drain() error {
	var errs error
	for {
		s.mu.Lock()
		remaining := 0
		for _, w := range s.workers {
			if w != nil {
				remaining++
			}
		}
		s.mu.Unlock()
		if remaining == 0 {
			return errs
		}

		var status syscall.WaitStatus
		pid, err := syscall.Wait4(-1, &status, 0, nil)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("supervisor: wait4: %w", err))
			return errs
		}

		s.mu.Lock()
		for _, w := range s.workers {
			if w != nil && w.pid == pid {
				w.pid = 0
				s.workers[w.index] = nil
			}
		}
		s.mu.Unlock()
	}
}

// spawn re-executes the current binary with WorkerSlotFlag set, passing the
// shared listening socket as fd 3 via ExtraFiles — the Go analogue of a
// forked child inheriting its parent's open file descriptors.
func (s *Supervisor) spawn(slot int) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("supervisor: os.Executable: %w", err)
	}

	listenFile := os.NewFile(uintptr(s.listenFD), "listen-socket")
	if listenFile == nil {
		return fmt.Errorf("supervisor: invalid listen fd %d", s.listenFD)
	}

	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Args = append(cmd.Args, fmt.Sprintf("%s%d", WorkerSlotFlag, slot))
	cmd.ExtraFiles = []*os.File{listenFile}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("supervisor: start worker slot %d: %w", slot, err)
	}

	s.mu.Lock()
	s.workers[slot] = &workerSlot{index: slot, pid: cmd.Process.Pid, status: StatusRunning}
	s.mu.Unlock()

	s.log.Info("spawned worker slot %d as pid %d", slot, cmd.Process.Pid)
	return nil
}

// Close releases the supervisor's own handle on the listening socket; each
// worker keeps its own dup via ExtraFiles regardless.
func (s *Supervisor) Close() error {
	return syscall.Close(s.listenFD)
}
