// Package budget decides when a long-running job has to stop early.
package budget

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

// DefaultMinFree is the free space required on every checked path.
const DefaultMinFree = "50MB"

// NoLimit passed to New disables the time limit.
const NoLimit time.Duration = -1

var defaultLogger = log.New(os.Stdout, "[budget] ", log.LstdFlags)

// Usage is the capacity of the file system holding a path.
type Usage struct {
	Total uint64
	Free  uint64
}

// Used returns the used bytes.
func (u Usage) Used() uint64 {
	return u.Total - u.Free
}

// DiskUsage returns the capacity of the file system holding path.
func DiskUsage(path string) (Usage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Usage{}, fmt.Errorf("statfs %s: %w", path, err)
	}
	bsize := uint64(st.Bsize)
	return Usage{Total: st.Blocks * bsize, Free: st.Bavail * bsize}, nil
}

// Budget bounds a job by wall-clock deadline and free disk space.
// The zero value never expires.
type Budget struct {
	Deadline time.Time // zero means no time limit
	MinFree  uint64    // zero disables the disk check
	Paths    []string  // checked in addition to the working directory

	Now    func() time.Time
	Usage  func(path string) (Usage, error)
	Logger *log.Logger
}

// New creates a budget that ends maxRuntime from now and requires minFree
// (e.g. "50MB", empty means DefaultMinFree) on paths. A zero maxRuntime is
// already expired; a negative one (NoLimit) never expires.
func New(maxRuntime time.Duration, minFree string, paths ...string) (*Budget, error) {
	if minFree == "" {
		minFree = DefaultMinFree
	}
	size, err := humanize.ParseBytes(minFree)
	if err != nil {
		return nil, fmt.Errorf("parse minimum free space %q: %w", minFree, err)
	}

	b := &Budget{MinFree: size, Paths: paths, Logger: defaultLogger}
	if maxRuntime >= 0 {
		b.Deadline = time.Now().Add(maxRuntime)
	}
	return b, nil
}

func (b *Budget) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func (b *Budget) logger() *log.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return defaultLogger
}

// TimeUp reports whether the deadline has passed.
func (b *Budget) TimeUp() bool {
	return b != nil && !b.Deadline.IsZero() && !b.now().Before(b.Deadline)
}

// DiskFull reports whether any checked path is short of MinFree.
func (b *Budget) DiskFull() bool {
	if b == nil || b.MinFree == 0 {
		return false
	}
	usage := b.Usage
	if usage == nil {
		usage = DiskUsage
	}
	return checkDiskFull(b.logger(), usage, b.MinFree, b.Paths...)
}

// Exhausted reports whether the job has to stop.
func (b *Budget) Exhausted() bool {
	return b.TimeUp() || b.DiskFull()
}

// CheckDiskFull reports whether the working directory or any of paths has
// less than minimum bytes free.
func CheckDiskFull(minimum uint64, paths ...string) bool {
	return checkDiskFull(defaultLogger, DiskUsage, minimum, paths...)
}

func checkDiskFull(logger *log.Logger, usage func(string) (Usage, error), minimum uint64, paths ...string) bool {
	all := paths
	if wd, err := os.Getwd(); err == nil {
		all = append([]string{wd}, paths...)
	}

	for _, path := range all {
		u, err := usage(path)
		if err != nil {
			logger.Printf("disk usage: %v", err)
			continue
		}
		if u.Free < minimum {
			logger.Printf("Disk is running out of space path: %s total: %s, used: %s, free: %s",
				path, humanize.Bytes(u.Total), humanize.Bytes(u.Used()), humanize.Bytes(u.Free))
			return true
		}
	}
	return false
}
