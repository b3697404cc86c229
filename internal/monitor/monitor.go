package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Softhook/elite-sub000/internal/dispatcher"
	"github.com/Softhook/elite-sub000/internal/logging"
	"github.com/Softhook/elite-sub000/internal/session"
	"github.com/Softhook/elite-sub000/internal/stream"
	"github.com/Softhook/elite-sub000/internal/worker"
)

// DefaultInterval is used when Dependencies.Interval is unset.
const DefaultInterval = 5 * time.Second

// Dependencies holds all dependencies for the monitor service.
// Dispatcher and WorkerManager may be nil when recording is off.
type Dependencies struct {
	LogManager     *logging.SlogManager
	SessionContext *session.Context
	Dispatcher     *dispatcher.Dispatcher
	WorkerManager  *worker.Manager
	// StatusFile is rewritten with the latest snapshot every interval when set.
	StatusFile string
	Interval   time.Duration
}

// Status is a point-in-time snapshot of the stream and its recording.
type Status struct {
	Time          time.Time         `json:"time"`
	Session       string            `json:"session"`
	Tick          uint64            `json:"tick"`
	Descriptors   int               `json:"descriptors"`
	Active        int               `json:"active"`
	Destroyed     int               `json:"destroyed"`
	Activations   uint64            `json:"activations"`
	Deactivations uint64            `json:"deactivations"`
	Destructions  uint64            `json:"destructions"`
	Queues        map[string]int    `json:"queues,omitempty"`
	Dropped       map[string]uint64 `json:"dropped,omitempty"`
	Recorded      int               `json:"recorded"`
	Failed        int               `json:"failed"`
	LastWriteMs   float64           `json:"lastWriteMs"`
}

// Service tracks stream statistics and reports them periodically.
// The stream manager is single-threaded, so the frame loop pushes its
// stats with Update instead of the service reading them.
type Service struct {
	deps Dependencies

	mu        sync.RWMutex
	stats     stream.Stats
	isRunning bool
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	if deps.SessionContext == nil {
		deps.SessionContext = session.NewContext()
	}
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	return &Service{deps: deps}
}

// Update records the stream manager's latest totals.
func (s *Service) Update(stats stream.Stats) {
	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status returns the current snapshot.
func (s *Service) Status() Status {
	s.mu.RLock()
	stats := s.stats
	s.mu.RUnlock()

	st := Status{
		Time:          time.Now().UTC(),
		Session:       s.deps.SessionContext.GetSession().UUID,
		Tick:          stats.Tick,
		Descriptors:   stats.Descriptors,
		Active:        stats.Active,
		Destroyed:     stats.Destroyed,
		Activations:   stats.Activations,
		Deactivations: stats.Deactivations,
		Destructions:  stats.Destructions,
	}
	if s.deps.Dispatcher != nil {
		lengths := s.deps.Dispatcher.QueueLengths()
		st.Queues = make(map[string]int, len(lengths))
		for kind, n := range lengths {
			st.Queues[string(kind)] = n
		}
		dropped := s.deps.Dispatcher.Dropped()
		st.Dropped = make(map[string]uint64, len(dropped))
		for kind, n := range dropped {
			st.Dropped[string(kind)] = n
		}
	}
	if s.deps.WorkerManager != nil {
		st.Recorded = s.deps.WorkerManager.Recorded()
		st.Failed = s.deps.WorkerManager.Failed()
		st.LastWriteMs = float64(s.deps.WorkerManager.GetLastDBWriteDuration().Microseconds()) / 1000
	}
	return st
}

// JSON renders the current snapshot as indented JSON.
func (s *Service) JSON() string {
	out, err := json.MarshalIndent(s.Status(), "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(out)
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine", "function", "startStatusMonitor", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.report()
			}
		}
	}()

	return nil
}

func (s *Service) report() {
	st := s.Status()
	s.deps.LogManager.Logger().Info("stream status",
		"tick", st.Tick,
		"active", st.Active,
		"destroyed", st.Destroyed,
		"recorded", st.Recorded,
		"failed", st.Failed,
		"lastWriteMs", st.LastWriteMs)

	if s.deps.StatusFile == "" {
		return
	}
	if err := s.writeStatusFile(); err != nil {
		s.deps.LogManager.Logger().Error("Error writing status file", "path", s.deps.StatusFile, "error", err)
	}
}

func (s *Service) writeStatusFile() error {
	return os.WriteFile(s.deps.StatusFile, []byte(s.JSON()+"\n"), 0o644)
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning || s.stopChan == nil {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	s.stopChan = nil
	done := s.done
	s.mu.Unlock()
	<-done
}
