package orchestration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/switchyard-ai/switchyard/core"
	"github.com/switchyard-ai/switchyard/project"
)

// StageExecutor runs a plan's stages in order, with bounded parallelism
// inside each stage.
type StageExecutor struct {
	registry    *project.Registry
	maxParallel int64
	logger      core.Logger
}

// NewStageExecutor creates an executor over the given registry
func NewStageExecutor(registry *project.Registry, maxParallel int, logger core.Logger) *StageExecutor {
	if maxParallel <= 0 {
		maxParallel = 3
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &StageExecutor{
		registry:    registry,
		maxParallel: int64(maxParallel),
		logger:      logger,
	}
}

// Execute runs every stage of the plan. Failed sub-queries are recorded
// and do not block later stages. The returned map holds a result or a
// stringified error for every executed index.
func (e *StageExecutor) Execute(ctx context.Context, plan *OrchestrationPlan) map[int]string {
	results := make(map[int]string, len(plan.SubQueries))
	var resultsMu sync.Mutex

	byIndex := make(map[int]*SubQuery, len(plan.SubQueries))
	for _, sq := range plan.SubQueries {
		byIndex[sq.Index] = sq
	}

	sem := semaphore.NewWeighted(e.maxParallel)

	for stageNum, stage := range plan.ExecutionOrder {
		e.logger.Debug("Starting orchestration stage", map[string]interface{}{
			"operation":   "orchestration_execute",
			"stage":       stageNum,
			"sub_queries": len(stage),
		})

		var wg sync.WaitGroup
		for _, index := range stage {
			sq, exists := byIndex[index]
			if !exists {
				continue
			}

			if err := sem.Acquire(ctx, 1); err != nil {
				sq.transition(StatusFailed)
				sq.Error = fmt.Sprintf("cancelled before start: %v", err)
				resultsMu.Lock()
				results[sq.Index] = "Error: " + sq.Error
				resultsMu.Unlock()
				continue
			}

			wg.Add(1)
			go func(sq *SubQuery) {
				defer wg.Done()
				defer sem.Release(1)

				result, err := e.runSubQuery(ctx, sq)

				resultsMu.Lock()
				defer resultsMu.Unlock()
				if err != nil {
					sq.transition(StatusFailed)
					sq.Error = err.Error()
					results[sq.Index] = "Error: " + err.Error()
					return
				}
				sq.transition(StatusCompleted)
				sq.Result = result
				results[sq.Index] = result
			}(sq)
		}
		// Stage barrier: later stages may consume earlier results
		wg.Wait()
	}

	return results
}

func (e *StageExecutor) runSubQuery(ctx context.Context, sq *SubQuery) (string, error) {
	sq.transition(StatusInProgress)
	start := time.Now()

	proj, err := e.registry.Get(sq.ProjectName)
	if err != nil {
		return "", err
	}
	executor := proj.Executor()
	if executor == nil {
		return "", &core.CoreError{
			Op:      "executor.runSubQuery",
			Kind:    "orchestration",
			ID:      sq.ProjectName,
			Message: "project has no executor attached",
			Err:     core.ErrProjectNotFound,
		}
	}

	result, err := executor.Execute(ctx, sq.QueryText)
	e.logger.Debug("Sub-query finished", map[string]interface{}{
		"operation":   "orchestration_execute",
		"index":       sq.Index,
		"project":     sq.ProjectName,
		"duration_ms": time.Since(start).Milliseconds(),
		"failed":      err != nil,
	})
	return result, err
}
