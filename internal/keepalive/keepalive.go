// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package keepalive schedules the server's housekeeping: a periodic
// request to its own health endpoint, which keeps idle-sleeping hosts
// awake, and eviction of idle conversations.
package keepalive

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/pdiddy/reality-check/pkg/types"
)

const (
	healthPath    = "/api/health"
	userAgent     = "reality-check-keepalive/1.0"
	pingTimeout   = 10 * time.Second
	failureAlert  = 3
	evictSchedule = "@every 10m"
)

// Evictor removes conversations idle for longer than olderThan.
type Evictor interface {
	Evict(ctx context.Context, olderThan time.Duration) (int, error)
}

// Status is a snapshot of the keepalive jobs.
type Status struct {
	Running      bool      `json:"isRunning"`
	PingCount    int       `json:"pingCount"`
	LastPing     time.Time `json:"lastPingTime,omitzero"`
	Failures     int       `json:"failureCount"`
	NextPing     time.Time `json:"nextPing,omitzero"`
	Evicted      int       `json:"evicted"`
	LastEviction time.Time `json:"lastEviction,omitzero"`
}

// Service runs the scheduled jobs.
type Service struct {
	cfg     types.KeepaliveConfig
	evictor Evictor
	idleTTL time.Duration
	client  *http.Client
	logger  *zap.Logger

	cron   *cron.Cron
	pingID cron.EntryID

	mu     sync.Mutex
	status Status
}

// New returns a stopped Service. evictor may be nil, in which case no
// eviction job is scheduled.
func New(cfg types.KeepaliveConfig, evictor Evictor, idleTTL time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:     cfg,
		evictor: evictor,
		idleTTL: idleTTL,
		client:  &http.Client{Timeout: pingTimeout},
		logger:  logger.With(zap.String("component", "keepalive")),
		cron:    cron.New(cron.WithSeconds()),
	}
}

// normalizeCron prepends "0 " to standard 5-field expressions so they
// work with the seconds-aware parser.
func normalizeCron(schedule string) string {
	if len(strings.Fields(schedule)) == 5 {
		return "0 " + schedule
	}
	return schedule
}

// Start schedules the jobs and, when pinging is enabled, pings once
// immediately in the background.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.status.Running {
		s.mu.Unlock()
		s.logger.Warn("keepalive already running")
		return nil
	}
	s.mu.Unlock()

	if s.cfg.Enabled {
		schedule := s.cfg.Schedule
		if schedule == "" {
			schedule = "*/5 * * * *"
		}
		id, err := s.cron.AddFunc(normalizeCron(schedule), func() {
			_ = s.Ping(context.Background())
		})
		if err != nil {
			return fmt.Errorf("scheduling keepalive ping %q: %w", schedule, err)
		}
		s.pingID = id
	}
	if s.evictor != nil && s.idleTTL > 0 {
		if _, err := s.cron.AddFunc(evictSchedule, func() {
			_, _ = s.EvictIdle(context.Background())
		}); err != nil {
			return fmt.Errorf("scheduling session eviction: %w", err)
		}
	}

	s.cron.Start()
	s.mu.Lock()
	s.status.Running = true
	s.mu.Unlock()
	s.logger.Info("keepalive started",
		zap.Bool("ping", s.cfg.Enabled),
		zap.String("base_url", s.cfg.BaseURL),
		zap.Duration("session_idle_ttl", s.idleTTL))

	if s.cfg.Enabled {
		go func() { _ = s.Ping(context.Background()) }()
	}
	return nil
}

// Stop halts the scheduler and waits for running jobs.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
	s.mu.Lock()
	s.status.Running = false
	s.mu.Unlock()
	s.logger.Info("keepalive stopped")
}

// Ping requests the health endpoint once and records the outcome.
func (s *Service) Ping(ctx context.Context) error {
	s.mu.Lock()
	s.status.PingCount++
	n := s.status.PingCount
	s.mu.Unlock()

	start := time.Now()
	err := s.ping(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.status.Failures++
		s.logger.Error("keepalive ping failed",
			zap.Int("ping", n),
			zap.Int("consecutive_failures", s.status.Failures),
			zap.Error(err))
		if s.status.Failures >= failureAlert {
			s.logger.Error("keepalive ping failing repeatedly", zap.Int("consecutive_failures", s.status.Failures))
		}
		return err
	}
	s.status.Failures = 0
	s.status.LastPing = time.Now().UTC()
	s.logger.Info("keepalive ping succeeded", zap.Int("ping", n), zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (s *Service) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	url := strings.TrimRight(s.cfg.BaseURL, "/") + healthPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building ping request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("pinging %s: %w", url, err)
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("pinging %s: status %d", url, resp.StatusCode)
	}
	return nil
}

// EvictIdle removes conversations idle for longer than the configured TTL.
func (s *Service) EvictIdle(ctx context.Context) (int, error) {
	if s.evictor == nil {
		return 0, nil
	}
	n, err := s.evictor.Evict(ctx, s.idleTTL)
	s.mu.Lock()
	s.status.Evicted += n
	s.status.LastEviction = time.Now().UTC()
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("session eviction failed", zap.Error(err))
		return n, err
	}
	if n > 0 {
		s.logger.Info("evicted idle conversations", zap.Int("count", n))
	}
	return n, nil
}

// Status returns a snapshot including the next scheduled ping.
func (s *Service) Status() Status {
	s.mu.Lock()
	st := s.status
	s.mu.Unlock()
	if st.Running && s.pingID != 0 {
		st.NextPing = s.cron.Entry(s.pingID).Next
	}
	return st
}
