package httpserver

import (
	"time"

	"github.com/helixir/citation-tracker-service/internal/domain"
	"github.com/helixir/citation-tracker-service/internal/pipeline"
)

type ledgerStatsResponse struct {
	Processed int `json:"processed"`
	Pending   int `json:"pending"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

type ledgerEntryResponse struct {
	PaperID      string    `json:"paper_id"`
	Status       string    `json:"status"`
	RetryCount   int       `json:"retry_count"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ProcessedAt  time.Time `json:"processed_at"`
}

type cycleReportResponse struct {
	CycleID     string                 `json:"cycle_id"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt time.Time              `json:"completed_at"`
	Duration    string                 `json:"duration"`
	Error       string                 `json:"error,omitempty"`
	Targets     []targetReportResponse `json:"targets"`
}

type targetReportResponse struct {
	TargetID   string         `json:"target_id"`
	Alias      string         `json:"alias"`
	Result     string         `json:"result"`
	Discovered int            `json:"discovered"`
	Queued     int            `json:"queued"`
	Outcomes   map[string]int `json:"outcomes,omitempty"`
}

// Converter functions

func domainEntryToResponse(e *domain.LedgerEntry) ledgerEntryResponse {
	resp := ledgerEntryResponse{
		PaperID:     e.PaperID,
		Status:      string(e.Status),
		RetryCount:  e.RetryCount,
		ProcessedAt: e.ProcessedAt,
	}
	if e.ErrorMessage != nil {
		resp.ErrorMessage = *e.ErrorMessage
	}
	return resp
}

func cycleReportToResponse(r *pipeline.CycleReport) cycleReportResponse {
	targets := make([]targetReportResponse, len(r.Targets))
	for i, t := range r.Targets {
		var outcomes map[string]int
		if len(t.Outcomes) > 0 {
			outcomes = make(map[string]int, len(t.Outcomes))
			for k, v := range t.Outcomes {
				outcomes[string(k)] = v
			}
		}
		targets[i] = targetReportResponse{
			TargetID:   t.TargetID,
			Alias:      t.Alias,
			Result:     t.Result,
			Discovered: t.Discovered,
			Queued:     t.Queued,
			Outcomes:   outcomes,
		}
	}
	return cycleReportResponse{
		CycleID:     r.CycleID,
		StartedAt:   r.StartedAt,
		CompletedAt: r.FinishedAt,
		Duration:    r.FinishedAt.Sub(r.StartedAt).String(),
		Error:       r.Error,
		Targets:     targets,
	}
}
