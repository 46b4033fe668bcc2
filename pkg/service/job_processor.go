package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dasmlab/polyglot/pkg/batch"
	"github.com/dasmlab/polyglot/pkg/metrics"
)

// DefaultJobTimeout bounds a single batch job.
const DefaultJobTimeout = time.Hour

// JobProcessor processes batch jobs asynchronously.
type JobProcessor struct {
	processor *batch.Processor
	queue     *JobQueue
	logger    *logrus.Logger
	timeout   time.Duration
}

// NewJobProcessor creates a job processor and attaches it to queue.
func NewJobProcessor(processor *batch.Processor, queue *JobQueue, timeout time.Duration, logger *logrus.Logger) *JobProcessor {
	if logger == nil {
		logger = logrus.New()
	}
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	p := &JobProcessor{
		processor: processor,
		queue:     queue,
		logger:    logger,
		timeout:   timeout,
	}
	queue.SetProcessor(p)
	return p
}

// ProcessJob translates the job's table row by row and stores the result.
func (p *JobProcessor) ProcessJob(job *BatchJob) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	startTime := time.Now()

	job.mu.RLock()
	input := job.input
	job.mu.RUnlock()

	p.logger.WithFields(logrus.Fields{
		"job_id": job.ID,
		"rows":   len(input.Rows),
	}).Info("Starting batch job processing")

	job.UpdateStatus(JobStatusProcessing, "Starting translation...")

	result, err := p.processor.ProcessTable(ctx, input, job.Column, job.SourceLang, job.TargetLang,
		batch.WithProgress(job.UpdateProgress))
	if err != nil {
		p.logger.WithError(err).WithField("job_id", job.ID).Error("Batch job failed")
		job.SetError(fmt.Errorf("batch translation failed: %w", err))
		metrics.JobFinished(false)
		return
	}

	path := p.queue.snapshotPath(job.ID)
	if err := p.queue.files.SaveObject(path, result); err != nil {
		p.logger.WithError(err).WithField("job_id", job.ID).Warn("Failed to snapshot job result")
	} else if size, err := p.queue.files.FileSize(path); err == nil {
		p.logger.WithFields(logrus.Fields{
			"job_id": job.ID,
			"path":   path,
			"size":   size,
		}).Debug("Snapshotted job result")
	}

	job.SetResult(result)
	metrics.JobFinished(true)

	p.logger.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"rows":     len(result.Rows),
		"duration": time.Since(startTime).Seconds(),
		"success":  true,
	}).Info("Batch job completed successfully")
}
