package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// PeriodicTask is a background function the manager runs on a ticker
type PeriodicTask struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Manager runs the job queue together with the periodic tasks that feed it
type Manager struct {
	queue   *Queue
	tasks   []PeriodicTask
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewManager creates a manager around queue
func NewManager(queue *Queue) *Manager {
	return &Manager{queue: queue}
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// AddTask registers a periodic task. Tasks added after Start run from the
// next start cycle on.
func (m *Manager) AddTask(task PeriodicTask) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.running = true
	log.Infof("[JobQueue Manager] Starting job queue and %d background tasks", len(m.tasks))

	m.queue.Start()

	for _, task := range m.tasks {
		m.wg.Add(1)
		go m.runTask(ctx, task)
	}
}

// Stop stops the background tasks first, then the job queue
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")
	m.cancel()
	m.wg.Wait()
	m.running = false

	m.queue.Stop()
	log.Info("[JobQueue Manager] Stopped successfully")
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) runTask(ctx context.Context, task PeriodicTask) {
	defer m.wg.Done()
	interval := task.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	log.Infof("[JobQueue Manager] Started %s (interval: %s)", task.Name, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Infof("[JobQueue Manager] %s stopping", task.Name)
			return
		case <-ticker.C:
			if err := task.Run(ctx); err != nil && ctx.Err() == nil {
				log.Errorf("[JobQueue Manager] %s error: %v", task.Name, err)
			}
		}
	}
}
