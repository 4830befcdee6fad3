package stats

import (
	"time"

	"github.com/wonny/solofill/internal/contracts"
)

// SessionMeta identifies one completed session run
type SessionMeta struct {
	ID         string    `json:"id"`
	SiteName   string    `json:"site_name"`
	ConfigHash string    `json:"config_hash"`
	Strategy   string    `json:"strategy"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Records    int       `json:"records"`
	Failures   int       `json:"failures"`
}

// SessionStats is a session with its records in run order
type SessionStats struct {
	Session SessionMeta                     `json:"session"`
	Records []contracts.FitStatisticsRecord `json:"records"`
}

// ForOutput returns the records of one output
func (s SessionStats) ForOutput(output string) []contracts.FitStatisticsRecord {
	var out []contracts.FitStatisticsRecord
	for _, r := range s.Records {
		if r.Output == output {
			out = append(out, r)
		}
	}
	return out
}
