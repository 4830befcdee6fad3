package handlers

import (
	"net/http"
	"sort"

	"github.com/wonny/solofill/internal/scheduler"
)

// JobStatsSource reports scheduler job statistics
type JobStatsSource interface {
	GetJobStats() map[string]scheduler.JobStats
}

// JobsHandler serves scheduler state
type JobsHandler struct {
	source JobStatsSource
}

// NewJobsHandler creates a new jobs handler. source may be nil when no scheduler runs.
func NewJobsHandler(source JobStatsSource) *JobsHandler {
	return &JobsHandler{source: source}
}

// ListJobs returns statistics for every scheduled job
// GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := []scheduler.JobStats{}
	if h.source != nil {
		for _, js := range h.source.GetJobStats() {
			jobs = append(jobs, js)
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].JobName < jobs[j].JobName })

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(jobs),
		"jobs":  jobs,
	})
}
