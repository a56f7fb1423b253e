// Package orchestration decomposes multi-intent queries into
// per-project sub-queries, executes them in dependency order with
// bounded parallelism, and synthesizes a combined answer.
package orchestration

// SubQueryStatus is the execution state of one sub-query
type SubQueryStatus string

const (
	StatusPending    SubQueryStatus = "pending"
	StatusInProgress SubQueryStatus = "in_progress"
	StatusCompleted  SubQueryStatus = "completed"
	StatusFailed     SubQueryStatus = "failed"
	StatusSkipped    SubQueryStatus = "skipped"
)

// SubQuery is one decomposed unit of work bound to a project
type SubQuery struct {
	Index        int            `json:"index"`
	QueryText    string         `json:"query_text"`
	ProjectName  string         `json:"project_name"`
	Dependencies []int          `json:"dependencies,omitempty"`
	Status       SubQueryStatus `json:"status"`
	Result       string         `json:"result,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// OrchestrationPlan is the analyzed decomposition of one query
type OrchestrationPlan struct {
	OriginalQuery  string      `json:"original_query"`
	SubQueries     []*SubQuery `json:"sub_queries"`
	ExecutionOrder [][]int     `json:"execution_order"`
	IsMultiProject bool        `json:"is_multi_project"`
	Reasoning      string      `json:"reasoning"`
}

// OrchestrationResult is the outcome of a full orchestrated run
type OrchestrationResult struct {
	Answer            string             `json:"answer"`
	IndividualResults map[int]string     `json:"individual_results"`
	Plan              *OrchestrationPlan `json:"plan"`
	Success           bool               `json:"success"`
	Error             string             `json:"error,omitempty"`
	TotalTimeMs       float64            `json:"total_time_ms"`
}

// transition advances a sub-query's state machine. Terminal states
// never transition further.
func (s *SubQuery) transition(next SubQueryStatus) {
	switch s.Status {
	case StatusCompleted, StatusFailed, StatusSkipped:
		return
	}
	s.Status = next
}
