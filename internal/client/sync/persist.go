package sync

import (
	"context"
	"log/slog"
	stdsync "sync"
	"time"
)

// saver откладывает сохранение снимка до паузы в изменениях.
type saver struct {
	save   func(ctx context.Context) error
	log    *slog.Logger
	timer  *time.Timer
	delay  time.Duration
	mu     stdsync.Mutex
	saveMu stdsync.Mutex
	dirty  bool
	closed bool
}

func newSaver(delay time.Duration, save func(ctx context.Context) error, log *slog.Logger) *saver {
	return &saver{save: save, delay: delay, log: log}
}

// schedule помечает документ измененным и перезапускает таймер.
func (s *saver) schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.dirty = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, func() {
		if err := s.flush(context.Background()); err != nil {
			s.log.Error("failed to save snapshot", "error", err)
		}
	})
}

// flush сохраняет снимок немедленно, если есть несохраненные изменения.
// При ошибке изменения остаются помеченными для следующей попытки.
func (s *saver) flush(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	s.dirty = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	if err := s.save(ctx); err != nil {
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
		return err
	}
	return nil
}

// close останавливает таймер и сохраняет оставшиеся изменения.
func (s *saver) close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	return s.flush(ctx)
}

func (s *saver) pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}
