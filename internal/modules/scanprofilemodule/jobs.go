package scanprofilemodule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	tagerrors "github.com/mantonx/mediatags/internal/errors"
	"github.com/mantonx/mediatags/internal/events"
	"github.com/mantonx/mediatags/internal/logger"
	"github.com/mantonx/mediatags/internal/utils"
)

// JobStatus represents the lifecycle state of a scan job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job is a background profile run
type Job struct {
	ID         string     `json:"id"`
	ProfileID  string     `json:"profile_id"`
	AssetIDs   []string   `json:"asset_ids,omitempty"`
	Status     JobStatus  `json:"status"`
	Processed  int        `json:"processed"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	cancel context.CancelFunc
}

// JobManager runs profiles in the background and publishes their progress
type JobManager struct {
	service *Service
	bus     *events.Bus
	logger  hclog.Logger

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewJobManager creates a job manager for service. bus may be nil.
func NewJobManager(service *Service, bus *events.Bus, log hclog.Logger) *JobManager {
	ctx, stop := context.WithCancel(context.Background())
	return &JobManager{
		service: service,
		bus:     bus,
		logger:  logger.OrNull(log).Named("scan-jobs"),
		ctx:     ctx,
		stop:    stop,
		jobs:    make(map[string]*Job),
	}
}

// Start queues a run of profileID. Empty assetIDs selects targets by the profile filter.
func (m *JobManager) Start(profileID string, assetIDs []string) (Job, error) {
	if _, ok := m.service.GetProfile(profileID); !ok {
		return Job{}, tagerrors.NewNotFoundError("profile", profileID)
	}

	ctx, cancel := context.WithCancel(m.ctx)
	job := &Job{
		ID:        utils.GenerateUUID(),
		ProfileID: profileID,
		AssetIDs:  append([]string(nil), assetIDs...),
		Status:    JobStatusPending,
		CreatedAt: time.Now(),
		cancel:    cancel,
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	snapshot := *job
	m.mu.Unlock()

	m.publish(events.EventJobQueued, snapshot, "scan job queued")

	m.wg.Add(1)
	go m.run(ctx, job)

	return snapshot, nil
}

func (m *JobManager) run(ctx context.Context, job *Job) {
	defer m.wg.Done()
	defer job.cancel()

	if !m.transition(job, JobStatusRunning) {
		return
	}

	processed := m.service.runProfile(ctx, job.ProfileID, job.AssetIDs, func(n int, layerID, assetID string) {
		m.mu.Lock()
		job.Processed = n
		snapshot := *job
		m.mu.Unlock()

		m.publishData(events.EventJobProgress, snapshot, "scan job progress", map[string]interface{}{
			"layer": layerID,
			"asset": assetID,
		})
	})

	m.mu.Lock()
	job.Processed = processed
	m.mu.Unlock()

	final := JobStatusCompleted
	if ctx.Err() != nil {
		final = JobStatusCancelled
	}
	m.transition(job, final)
}

// transition moves job to status unless it was already cancelled
func (m *JobManager) transition(job *Job, status JobStatus) bool {
	m.mu.Lock()
	if job.Status == JobStatusCancelled || job.Status == JobStatusCompleted {
		m.mu.Unlock()
		return false
	}

	now := time.Now()
	job.Status = status
	switch status {
	case JobStatusRunning:
		job.StartedAt = &now
	case JobStatusCompleted, JobStatusCancelled:
		job.FinishedAt = &now
	}
	snapshot := *job
	m.mu.Unlock()

	switch status {
	case JobStatusRunning:
		m.logger.Info("scan job started", "job", job.ID, "profile", job.ProfileID)
		m.publish(events.EventJobStarted, snapshot, "scan job started")
	case JobStatusCompleted:
		m.logger.Info("scan job completed", "job", job.ID, "processed", snapshot.Processed)
		m.publish(events.EventJobCompleted, snapshot, "scan job completed")
	case JobStatusCancelled:
		m.logger.Info("scan job cancelled", "job", job.ID, "processed", snapshot.Processed)
		m.publish(events.EventJobCancelled, snapshot, "scan job cancelled")
	}
	return true
}

// Get returns a snapshot of one job
func (m *JobManager) Get(jobID string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// List returns snapshots of all jobs, oldest first
func (m *JobManager) List() []Job {
	m.mu.RLock()
	jobs := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, *job)
	}
	m.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs
}

// Cancel stops a pending or running job between assets
func (m *JobManager) Cancel(jobID string) error {
	m.mu.RLock()
	job, ok := m.jobs[jobID]
	m.mu.RUnlock()
	if !ok {
		return tagerrors.NewNotFoundError("job", jobID)
	}

	job.cancel()
	if m.Status(jobID) == JobStatusPending {
		m.transition(job, JobStatusCancelled)
	}
	return nil
}

// Status returns the current status of a job, or "" when unknown
func (m *JobManager) Status(jobID string) JobStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if job, ok := m.jobs[jobID]; ok {
		return job.Status
	}
	return ""
}

// Wait blocks until every started job has finished
func (m *JobManager) Wait() {
	m.wg.Wait()
}

// Shutdown cancels all jobs and waits for them to stop
func (m *JobManager) Shutdown() {
	m.stop()
	m.wg.Wait()
}

func (m *JobManager) publish(eventType events.EventType, job Job, message string) {
	m.publishData(eventType, job, message, nil)
}

func (m *JobManager) publishData(eventType events.EventType, job Job, message string, extra map[string]interface{}) {
	if m.bus == nil {
		return
	}
	data := map[string]interface{}{
		"job_id":    job.ID,
		"profile":   job.ProfileID,
		"status":    string(job.Status),
		"processed": job.Processed,
	}
	for k, v := range extra {
		data[k] = v
	}
	m.bus.Publish(events.Event{
		Type:    eventType,
		Source:  "scan-jobs",
		Message: message,
		Data:    data,
	})
}
