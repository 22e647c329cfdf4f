package waterfall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"corp_finance/pkg/core/deal"
	"corp_finance/pkg/core/logger"
	"corp_finance/pkg/core/report"
	"corp_finance/pkg/core/scenario"
	"corp_finance/pkg/core/store"
	"corp_finance/pkg/core/valuation"
	"corp_finance/pkg/core/waterfall"

	"github.com/shopspring/decimal"
)

// maxBodyBytes caps deal payloads.
const maxBodyBytes = 1 << 20

// Engine is the part of service.Service the handlers use.
type Engine interface {
	RunWaterfall(ctx context.Context, f *deal.File) (*store.RunRecord, error)
	RunScenarios(ctx context.Context, f *deal.File) (*store.RunRecord, error)
	GetRun(ctx context.Context, id string) (*store.RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]store.RunSummary, error)
}

// Handler holds dependencies for the waterfall endpoints
type Handler struct {
	Engine      Engine
	AllowOrigin string
	log         *slog.Logger
}

// NewHandler creates a new waterfall handler
func NewHandler(engine Engine, allowOrigin string) *Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return &Handler{Engine: engine, AllowOrigin: allowOrigin, log: logger.Get()}
}

// Register mounts every endpoint on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/waterfall/run", h.HandleRun)
	mux.HandleFunc("/api/waterfall/scenarios", h.HandleScenarios)
	mux.HandleFunc("/api/waterfall/runs", h.HandleListRuns)
	mux.HandleFunc("/api/waterfall/runs/{id}", h.HandleGetRun)
	mux.HandleFunc("/api/waterfall/report/{id}", h.HandleReport)
	mux.HandleFunc("/api/valuation/lbo", h.HandleLBO)
}

type RunResponse struct {
	RunID          string            `json:"run_id"`
	Deal           string            `json:"deal"`
	EquityMultiple decimal.Decimal   `json:"equity_multiple"`
	Result         *waterfall.Result `json:"result"`
}

type ScenarioResponse struct {
	RunID    string             `json:"run_id"`
	Deal     string             `json:"deal"`
	Analysis *scenario.Analysis `json:"analysis"`
}

// ErrorResponse is the JSON body of every 4xx/5xx. Field is set for
// validation failures.
type ErrorResponse struct {
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

// HandleRun: POST /api/waterfall/run with a deal document.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	if h.preflight(w, r, "POST") {
		return
	}

	var f deal.File
	if !h.decode(w, r, &f) {
		return
	}

	rec, err := h.Engine.RunWaterfall(r.Context(), &f)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RunResponse{
		RunID:          rec.ID,
		Deal:           rec.DealName,
		EquityMultiple: rec.Waterfall.EquityMultiple(),
		Result:         rec.Waterfall,
	})
}

// HandleScenarios: POST /api/waterfall/scenarios with a deal document.
func (h *Handler) HandleScenarios(w http.ResponseWriter, r *http.Request) {
	if h.preflight(w, r, "POST") {
		return
	}

	var f deal.File
	if !h.decode(w, r, &f) {
		return
	}

	rec, err := h.Engine.RunScenarios(r.Context(), &f)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ScenarioResponse{RunID: rec.ID, Deal: rec.DealName, Analysis: rec.Scenarios})
}

// HandleListRuns: GET /api/waterfall/runs?limit=N
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	if h.preflight(w, r, "GET") {
		return
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Field: "limit", Reason: "must be a non-negative integer"})
			return
		}
		limit = n
	}

	runs, err := h.Engine.ListRuns(r.Context(), limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	if runs == nil {
		runs = []store.RunSummary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// HandleGetRun: GET /api/waterfall/runs/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	if h.preflight(w, r, "GET") {
		return
	}

	rec, err := h.Engine.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleReport: GET /api/waterfall/report/{id}?format=html|md
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	if h.preflight(w, r, "GET") {
		return
	}

	rec, err := h.Engine.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	markdown, err := report.Run(rec)
	if err != nil {
		h.fail(w, err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "md", "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		fmt.Fprint(w, markdown)
	case "", "html":
		page, err := report.Page(rec.DealName, markdown)
		if err != nil {
			h.fail(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, page)
	default:
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Field: "format", Reason: "must be html or md"})
	}
}

// HandleLBO: POST /api/valuation/lbo runs the sponsor debt schedule.
func (h *Handler) HandleLBO(w http.ResponseWriter, r *http.Request) {
	if h.preflight(w, r, "POST") {
		return
	}

	var in valuation.LBOInput
	if !h.decode(w, r, &in) {
		return
	}
	res, err := valuation.CalculateLBO(in)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.log.Info("[LBO] schedule complete", "years", len(res.Schedule), "moic", res.MOIC.StringFixed(3))
	writeJSON(w, http.StatusOK, res)
}

// preflight sets CORS headers and answers OPTIONS and wrong methods. It
// reports whether the request has been handled.
func (h *Handler) preflight(w http.ResponseWriter, r *http.Request, method string) bool {
	w.Header().Set("Access-Control-Allow-Origin", h.AllowOrigin)
	w.Header().Set("Access-Control-Allow-Methods", method+", OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return true
	}
	if r.Method != method {
		w.Header().Set("Allow", method+", OPTIONS")
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Reason: "method not allowed"})
		return true
	}
	return false
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Reason: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	var ve *waterfall.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Field: ve.Field, Reason: ve.Reason})
	case errors.Is(err, store.ErrRunNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Reason: err.Error()})
	case errors.Is(err, context.Canceled):
		// client went away
		h.log.Warn("[API] request cancelled", "error", err)
	default:
		h.log.Error("[API] request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Reason: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Get().Error("[API] failed to encode response", "error", err)
	}
}
