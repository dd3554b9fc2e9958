package central

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Scanner starts and stops discovery on an acquired adapter.
type Scanner struct {
	adapter Adapter
	logger  *logrus.Logger

	mu       sync.Mutex
	scanning bool
}

// NewScanner creates a scan controller for adapter
func NewScanner(adapter Adapter, logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scanner{adapter: adapter, logger: logger}
}

// Start asks the adapter to begin discovery. Refusals are returned as *ScanError.
// Starting an already scanning adapter is a no-op.
func (s *Scanner) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scanning {
		return nil
	}

	if err := s.adapter.StartScan(ctx); err != nil {
		return &ScanError{Adapter: s.adapter.ID(), Err: NormalizeError(err)}
	}

	s.scanning = true
	s.logger.WithField("adapter", s.adapter.ID()).Info("Scan started")
	return nil
}

// Stop leaves discovery mode. Stopping an adapter that is not scanning returns nil.
func (s *Scanner) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.scanning {
		return nil
	}

	if err := s.adapter.StopScan(); err != nil {
		return NormalizeError(err)
	}

	s.scanning = false
	s.logger.WithField("adapter", s.adapter.ID()).Info("Scan stopped")
	return nil
}
