package middleware

import (
	"strings"
	"sync"
)

// safeBuffer нужен там, где лог пишет goroutine http сервера
type safeBuffer struct {
	b  strings.Builder
	mu sync.Mutex
}

func (s *safeBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *safeBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}
