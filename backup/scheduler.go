package backup

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"

	"fishlog/store"
)

const (
	filePrefix = "fishing_logbook_backup_"
	stampFmt   = "20060102-150405"
)

// Source is a store that can be snapshotted and reports its changes.
type Source interface {
	Snapshotter
	Subscribe() (<-chan store.Event, func())
}

// Scheduler writes a backup archive into dir on a cron schedule, but only
// when the store changed since the previous backup.
type Scheduler struct {
	src   Source
	dir   string
	keep  int
	dirty atomic.Bool
	now   func() time.Time

	cron   *gocron.Scheduler
	cancel func()
}

// NewScheduler returns a scheduler keeping the newest keep archives (all when keep <= 0).
func NewScheduler(src Source, dir string, keep int) *Scheduler {
	s := &Scheduler{src: src, dir: dir, keep: keep, now: time.Now}
	// The first run always writes a backup.
	s.dirty.Store(true)
	return s
}

// Start watches the store for changes and runs backups on cronExpression.
func (s *Scheduler) Start(cronExpression string) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	events, cancel := s.src.Subscribe()
	go func() {
		for range events {
			s.dirty.Store(true)
		}
	}()

	cron := gocron.NewScheduler(time.UTC)
	_, err := cron.Cron(cronExpression).Do(func() {
		log.Println("INFO: starting backup cron job")
		if _, err := s.RunOnce(context.Background()); err != nil {
			log.Println("ERROR: scheduled backup failed:", err)
		}
	})
	if err != nil {
		cancel()
		return fmt.Errorf("schedule backups with %q: %w", cronExpression, err)
	}

	s.cron = cron
	s.cancel = cancel
	cron.StartAsync()
	log.Println("INFO: backup cron job activated:", cronExpression)
	return nil
}

// Stop halts the schedule and the change watcher.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
}

// RunOnce writes a backup if the store changed and prunes old archives.
// It returns the archive path, or "" when nothing changed.
func (s *Scheduler) RunOnce(ctx context.Context) (string, error) {
	if !s.dirty.Swap(false) {
		log.Println("INFO: no changes since last backup")
		return "", nil
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		s.dirty.Store(true)
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	path := filepath.Join(s.dir, filePrefix+s.now().UTC().Format(stampFmt)+".zip")
	if err := CreateFile(ctx, s.src, path); err != nil {
		s.dirty.Store(true)
		return "", err
	}
	log.Println("INFO: backup written to", path)

	if err := s.prune(); err != nil {
		log.Println("WARN: could not prune old backups:", err)
	}
	return path, nil
}

func (s *Scheduler) prune() error {
	if s.keep <= 0 {
		return nil
	}
	matches, err := filepath.Glob(filepath.Join(s.dir, filePrefix+"*.zip"))
	if err != nil {
		return err
	}
	if len(matches) <= s.keep {
		return nil
	}

	// Stamps sort lexically, oldest first.
	sort.Strings(matches)
	for _, old := range matches[:len(matches)-s.keep] {
		if err := os.Remove(old); err != nil {
			return err
		}
		log.Println("INFO: removed old backup", old)
	}
	return nil
}
