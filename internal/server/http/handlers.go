package httpserver

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/helixir/citation-tracker-service/internal/domain"
)

// maxPaperIDLength bounds path-supplied paper ids.
const maxPaperIDLength = 128

func (s *Server) getLedgerStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ledger.Stats(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read ledger stats")
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ledgerStatsResponse{
		Processed: stats.Processed,
		Pending:   stats.Pending,
		Failed:    stats.Failed,
		Total:     stats.Total,
	})
}

func (s *Server) getLedgerEntry(w http.ResponseWriter, r *http.Request) {
	paperID, ok := parsePaperID(w, r)
	if !ok {
		return
	}

	entry, err := s.ledger.Entry(r.Context(), paperID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Error().Err(err).Str("paper_id", paperID).Msg("failed to read ledger entry")
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domainEntryToResponse(entry))
}

func (s *Server) resetLedgerEntry(w http.ResponseWriter, r *http.Request) {
	paperID, ok := parsePaperID(w, r)
	if !ok {
		return
	}

	existed, err := s.ledger.Reset(r.Context(), paperID)
	if err != nil {
		s.logger.Error().Err(err).Str("paper_id", paperID).Msg("failed to reset ledger entry")
		writeDomainError(w, err)
		return
	}
	if !existed {
		writeDomainError(w, domain.NewNotFoundError("ledger entry", paperID))
		return
	}
	s.logger.Info().Str("paper_id", paperID).Msg("ledger entry reset")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getLatestCycle(w http.ResponseWriter, _ *http.Request) {
	if s.cycles == nil {
		writeError(w, http.StatusNotFound, "no cycle has run yet")
		return
	}
	report := s.cycles.LatestReport()
	if report == nil {
		writeError(w, http.StatusNotFound, "no cycle has run yet")
		return
	}
	writeJSON(w, http.StatusOK, cycleReportToResponse(report))
}

// writeDomainError maps domain errors to HTTP status codes and writes a JSON
// error response. Internal error details are not leaked to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parsePaperID reads the paperID path parameter, writing a 400 response if it is invalid.
func parsePaperID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "paperID"))
	if id == "" || utf8.RuneCountInString(id) > maxPaperIDLength {
		writeDomainError(w, domain.NewValidationError("paper_id", "must be between 1 and 128 characters"))
		return "", false
	}
	return id, true
}
