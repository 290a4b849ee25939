// Package async provides background processing infrastructure for
// Neo Alexandria's resource ingestion pipeline: progress tracking and a
// supervised worker goroutine, grounded on the teacher's background
// indexer machinery and generalized from file-indexing stages to the
// fetch/embed/classify/score stages a Resource moves through after
// creation.
package async

import (
	"sync"
	"time"
)

// IngestionStage represents the current stage of a single resource's
// ingestion pipeline run.
type IngestionStage string

const (
	// StageFetching indicates content retrieval from the resource's source.
	StageFetching IngestionStage = "fetching"
	// StageEmbedding indicates dense/sparse embedding generation.
	StageEmbedding IngestionStage = "embedding"
	// StageClassifying indicates taxonomy prediction.
	StageClassifying IngestionStage = "classifying"
	// StageScoring indicates quality-dimension scoring.
	StageScoring IngestionStage = "scoring"
	// StageIndexing indicates the final persistence/index-write step.
	StageIndexing IngestionStage = "indexing"
)

// BatchProgressSnapshot is an immutable snapshot of a batch ingestion run's
// progress, suitable for a status endpoint or CLI progress bar.
type BatchProgressSnapshot struct {
	Status         string  `json:"status"`
	Stage          string  `json:"stage"`
	ResourcesTotal int     `json:"resources_total"`
	ResourcesDone  int     `json:"resources_done"`
	ResourcesFailed int    `json:"resources_failed"`
	ProgressPct    float64 `json:"progress_pct"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
	ErrorMessage   string  `json:"error_message,omitempty"`
}

// BatchProgress provides thread-safe tracking of a batch ingestion run,
// i.e. the bulk re-embedding/re-classification pass a library operator
// can trigger over many resources at once.
type BatchProgress struct {
	mu sync.RWMutex

	running       bool
	failed        bool
	stage         IngestionStage
	resourcesTotal int
	resourcesDone  int
	resourcesFailed int
	startTime     time.Time
	errorMessage  string
}

// NewBatchProgress creates a new progress tracker for a batch run.
func NewBatchProgress() *BatchProgress {
	return &BatchProgress{
		running:   true,
		stage:     StageFetching,
		startTime: time.Now(),
	}
}

// SetStage updates the current pipeline stage and the total resource count
// expected to pass through it.
func (p *BatchProgress) SetStage(stage IngestionStage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = stage
	p.resourcesTotal = total
}

// RecordDone increments the count of resources that completed the current
// stage successfully.
func (p *BatchProgress) RecordDone() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.resourcesDone++
}

// RecordFailed increments the count of resources whose pipeline run failed,
// without aborting the rest of the batch.
func (p *BatchProgress) RecordFailed(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.resourcesFailed++
	p.errorMessage = message
}

// SetDone marks the batch as finished (success or partial failure, per
// ResourcesFailed).
func (p *BatchProgress) SetDone() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.running = false
}

// IsRunning returns true if the batch is still in progress.
func (p *BatchProgress) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.running
}

// Snapshot returns an immutable copy of the current progress state.
func (p *BatchProgress) Snapshot() BatchProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var progressPct float64
	if p.resourcesTotal > 0 {
		progressPct = float64(p.resourcesDone+p.resourcesFailed) / float64(p.resourcesTotal) * 100.0
	}

	status := "running"
	if !p.running {
		status = "done"
	}

	return BatchProgressSnapshot{
		Status:          status,
		Stage:           string(p.stage),
		ResourcesTotal:  p.resourcesTotal,
		ResourcesDone:   p.resourcesDone,
		ResourcesFailed: p.resourcesFailed,
		ProgressPct:     progressPct,
		ElapsedSeconds:  int(time.Since(p.startTime).Seconds()),
		ErrorMessage:    p.errorMessage,
	}
}
