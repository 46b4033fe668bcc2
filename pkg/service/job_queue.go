package service

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dasmlab/polyglot/pkg/batch"
	apperrors "github.com/dasmlab/polyglot/pkg/errors"
	"github.com/dasmlab/polyglot/pkg/metrics"
	"github.com/dasmlab/polyglot/pkg/storage"
)

// JobStatus represents the status of a batch job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Finished reports whether the status is terminal.
func (s JobStatus) Finished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// BatchRequest describes a table to translate.
type BatchRequest struct {
	FileName   string
	Column     string
	SourceLang string
	TargetLang string
	Table      *batch.Table
}

// BatchJob is an asynchronous CSV translation job.
type BatchJob struct {
	ID          string
	FileName    string
	Column      string
	SourceLang  string
	TargetLang  string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	status          JobStatus
	errMsg          string
	rowsTotal       int
	rowsDone        int
	progressPercent int32
	progressMessage string

	input  *batch.Table
	result *batch.Table

	mu sync.RWMutex
}

// JobSnapshot is a point-in-time copy of a job's state, safe to serialize.
type JobSnapshot struct {
	ID              string     `json:"job_id"`
	FileName        string     `json:"file_name,omitempty"`
	Column          string     `json:"column"`
	SourceLang      string     `json:"source_lang"`
	TargetLang      string     `json:"target_lang"`
	Status          JobStatus  `json:"status"`
	Error           string     `json:"error,omitempty"`
	RowsTotal       int        `json:"rows_total"`
	RowsDone        int        `json:"rows_done"`
	ProgressPercent int32      `json:"progress_percent"`
	ProgressMessage string     `json:"progress_message"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// UpdateStatus updates the status of a job.
func (j *BatchJob) UpdateStatus(status JobStatus, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.status = status
	j.progressMessage = message

	now := time.Now()
	switch status {
	case JobStatusProcessing:
		if j.StartedAt == nil {
			j.StartedAt = &now
		}
	case JobStatusCompleted, JobStatusFailed:
		if j.CompletedAt == nil {
			j.CompletedAt = &now
		}
	}
}

// UpdateProgress records that done of total rows are translated.
func (j *BatchJob) UpdateProgress(done, total int) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.rowsDone = done
	j.rowsTotal = total
	if total > 0 {
		j.progressPercent = int32(done * 100 / total)
	}
	j.progressMessage = fmt.Sprintf("Translated %d/%d rows", done, total)
}

// SetError marks the job failed.
func (j *BatchJob) SetError(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.errMsg = err.Error()
	j.status = JobStatusFailed
	j.progressMessage = "Translation failed"
	j.input = nil
	now := time.Now()
	j.CompletedAt = &now
}

// SetResult marks the job completed with its translated table.
func (j *BatchJob) SetResult(result *batch.Table) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.result = result
	j.input = nil
	j.status = JobStatusCompleted
	j.progressPercent = 100
	j.progressMessage = "Translation completed"
	now := time.Now()
	j.CompletedAt = &now
}

// Status returns the current status (thread-safe).
func (j *BatchJob) Status() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// Result returns the translated table once the job completed.
func (j *BatchJob) Result() (*batch.Table, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.result, j.status == JobStatusCompleted
}

// Snapshot returns a copy of the job state.
func (j *BatchJob) Snapshot() JobSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return JobSnapshot{
		ID:              j.ID,
		FileName:        j.FileName,
		Column:          j.Column,
		SourceLang:      j.SourceLang,
		TargetLang:      j.TargetLang,
		Status:          j.status,
		Error:           j.errMsg,
		RowsTotal:       j.rowsTotal,
		RowsDone:        j.rowsDone,
		ProgressPercent: j.progressPercent,
		ProgressMessage: j.progressMessage,
		CreatedAt:       j.CreatedAt,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
	}
}

func (j *BatchJob) finishedBefore(t time.Time) bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status.Finished() && j.CompletedAt != nil && j.CompletedAt.Before(t)
}

// JobQueue manages asynchronous batch jobs.
type JobQueue struct {
	jobs        map[string]*BatchJob
	jobsMu      sync.RWMutex
	files       *storage.Files
	snapshotDir string
	logger      *logrus.Logger
	processor   *JobProcessor
}

// NewJobQueue creates a job queue that snapshots results under snapshotDir.
func NewJobQueue(snapshotDir string, logger *logrus.Logger) *JobQueue {
	if logger == nil {
		logger = logrus.New()
	}
	return &JobQueue{
		jobs:        make(map[string]*BatchJob),
		files:       storage.NewFiles(logger),
		snapshotDir: snapshotDir,
		logger:      logger,
	}
}

// SetProcessor sets the job processor for this queue.
func (q *JobQueue) SetProcessor(processor *JobProcessor) {
	q.processor = processor
}

// CreateJob registers a job and starts processing it in the background.
// The requested column must exist in the table.
func (q *JobQueue) CreateJob(req BatchRequest) (string, error) {
	if req.Table == nil {
		return "", apperrors.Wrapf("jobs.create", "table is required")
	}
	if req.Table.ColumnIndex(req.Column) < 0 {
		return "", apperrors.Wrap("jobs.create", fmt.Errorf("%w: %q", apperrors.ErrColumnNotFound, req.Column))
	}

	jobID := uuid.New().String()
	job := &BatchJob{
		ID:              jobID,
		FileName:        req.FileName,
		Column:          req.Column,
		SourceLang:      req.SourceLang,
		TargetLang:      req.TargetLang,
		CreatedAt:       time.Now(),
		status:          JobStatusQueued,
		rowsTotal:       len(req.Table.Rows),
		progressMessage: "Queued",
		input:           req.Table,
	}

	q.jobsMu.Lock()
	q.jobs[jobID] = job
	q.jobsMu.Unlock()

	metrics.JobStarted()
	q.logger.WithFields(logrus.Fields{
		"job_id":      jobID,
		"file":        req.FileName,
		"column":      req.Column,
		"rows":        len(req.Table.Rows),
		"source_lang": req.SourceLang,
		"target_lang": req.TargetLang,
	}).Info("Created batch job")

	if q.processor != nil {
		go q.processor.ProcessJob(job)
	}

	return jobID, nil
}

// GetJob retrieves a job by ID.
func (q *JobQueue) GetJob(jobID string) (*BatchJob, error) {
	q.jobsMu.RLock()
	defer q.jobsMu.RUnlock()

	job, exists := q.jobs[jobID]
	if !exists {
		return nil, apperrors.Wrap("jobs.get", fmt.Errorf("%w: %s", apperrors.ErrJobNotFound, jobID))
	}
	return job, nil
}

// Result returns the translated table of a completed job. Results of jobs
// already dropped from memory are read back from their snapshot.
func (q *JobQueue) Result(jobID string) (*batch.Table, error) {
	job, err := q.GetJob(jobID)
	if err == nil {
		if table, ok := job.Result(); ok {
			return table, nil
		}
		return nil, apperrors.Wrap("jobs.result", fmt.Errorf("%w: %s is %s", apperrors.ErrJobNotReady, jobID, job.Status()))
	}

	if _, parseErr := uuid.Parse(jobID); parseErr != nil {
		return nil, err
	}
	path := q.snapshotPath(jobID)
	if _, statErr := os.Stat(path); statErr != nil {
		return nil, err
	}
	var table batch.Table
	if err := q.files.LoadObject(path, &table); err != nil {
		return nil, err
	}
	return &table, nil
}

// Jobs returns snapshots of every job in memory, newest first.
func (q *JobQueue) Jobs() []JobSnapshot {
	q.jobsMu.RLock()
	out := make([]JobSnapshot, 0, len(q.jobs))
	for _, job := range q.jobs {
		out = append(out, job.Snapshot())
	}
	q.jobsMu.RUnlock()

	slices.SortFunc(out, func(a, b JobSnapshot) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// CleanupOldJobs removes finished jobs completed more than maxAge ago.
// Their result snapshots stay on disk.
func (q *JobQueue) CleanupOldJobs(maxAge time.Duration) {
	q.jobsMu.Lock()
	defer q.jobsMu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, job := range q.jobs {
		if job.finishedBefore(cutoff) {
			delete(q.jobs, id)
			removed++
		}
	}

	if removed > 0 {
		q.logger.WithFields(logrus.Fields{
			"removed":   removed,
			"remaining": len(q.jobs),
		}).Info("Cleaned up old batch jobs")
	}
}

func (q *JobQueue) snapshotPath(jobID string) string {
	return filepath.Join(q.snapshotDir, jobID+".gob")
}
