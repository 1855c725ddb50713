package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/canslim-screener/internal/contracts"
	"github.com/wonny/canslim-screener/internal/flow"
	"github.com/wonny/canslim-screener/pkg/logger"
)

// FlowService is the subset of flow.Service the API drives
type FlowService interface {
	StartRefresh(ctx context.Context, req flow.RefreshRequest) (string, error)
	StartBenchmark(ctx context.Context, req flow.BenchmarkRequest) (string, error)
	Status(ctx context.Context, id string) (*contracts.FlowExecution, error)
	Recent(ctx context.Context, limit int) ([]*contracts.FlowExecution, error)
	Cancel(ctx context.Context, id string) error
}

// FlowHandler handles flow start/poll/cancel endpoints
// ⭐ SSOT: 플로우 API 핸들러는 이 구조체에서만
type FlowHandler struct {
	service FlowService
	loc     *time.Location
	logger  *logger.Logger
	now     func() time.Time

	// stream settings
	pollInterval time.Duration
	pingInterval time.Duration
}

// NewFlowHandler creates a flow handler. loc resolves "today" for requests without a date.
func NewFlowHandler(service FlowService, loc *time.Location, log *logger.Logger) *FlowHandler {
	return &FlowHandler{
		service:      service,
		loc:          loc,
		logger:       log.WithComponent("api.flows"),
		now:          time.Now,
		pollInterval: 500 * time.Millisecond,
		pingInterval: 30 * time.Second,
	}
}

// RefreshBody is the screener-refresh request
type RefreshBody struct {
	Source          string   `json:"source"`
	Symbols         []string `json:"symbols"`
	Date            string   `json:"date"`
	MarketCondition string   `json:"market_condition"`
	IncludeScoring  *bool    `json:"include_scoring"` // default true
}

type BenchmarkBody struct {
	Symbols []string `json:"symbols"`
}

type startResponse struct {
	FlowID string `json:"flow_id"`
}

// Refresh starts a screener-refresh flow
// POST /api/flows/refresh
func (h *FlowHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var body RefreshBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	asOf, ok, err := parseDateParam(body.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ok {
		asOf = contracts.MarketDate(h.now(), h.loc)
	}

	req := flow.RefreshRequest{
		Source:         body.Source,
		Symbols:        body.Symbols,
		AsOf:           asOf,
		IncludeScoring: body.IncludeScoring == nil || *body.IncludeScoring,
	}
	if body.MarketCondition != "" {
		cond, err := contracts.ParseMarketCondition(body.MarketCondition)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.MarketCondition = cond
	}

	id, err := h.service.StartRefresh(r.Context(), req)
	if err != nil {
		h.startFailed(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, startResponse{FlowID: id})
}

// Benchmark starts a benchmark-refresh flow
// POST /api/flows/benchmark
func (h *FlowHandler) Benchmark(w http.ResponseWriter, r *http.Request) {
	var body BenchmarkBody
	// 빈 body 허용 (기본 지수)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id, err := h.service.StartBenchmark(r.Context(), flow.BenchmarkRequest{
		Symbols: body.Symbols,
		AsOf:    h.now(),
	})
	if err != nil {
		h.startFailed(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, startResponse{FlowID: id})
}

func (h *FlowHandler) startFailed(w http.ResponseWriter, err error) {
	if errors.Is(err, flow.ErrInvalidRequest) || errors.Is(err, contracts.ErrAsOfDateRequired) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.WithError(err).Error("Failed to start flow")
	respondError(w, http.StatusInternalServerError, "Failed to start flow")
}

// Get returns one flow with its jobs
// GET /api/flows/{id}
func (h *FlowHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	f, err := h.service.Status(r.Context(), id)
	if err != nil {
		h.statusFailed(w, id, err)
		return
	}
	respondJSON(w, http.StatusOK, flow.NewStatusView(f))
}

// List returns recent flows
// GET /api/flows?limit=N
func (h *FlowHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", flow.DefaultRecentLimit)
	if !ok {
		respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}

	flows, err := h.service.Recent(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list flows")
		respondError(w, http.StatusInternalServerError, "Failed to list flows")
		return
	}

	views := make([]flow.StatusView, 0, len(flows))
	for _, f := range flows {
		views = append(views, flow.NewStatusView(f))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(views),
		"flows": views,
	})
}

// Cancel requests cancellation of a pending or running flow
// POST /api/flows/{id}/cancel
func (h *FlowHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.service.Cancel(r.Context(), id); err != nil {
		if errors.Is(err, contracts.ErrInvalidTransition) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		h.statusFailed(w, id, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"flow_id": id,
		"state":   string(contracts.FlowCancelled),
	})
}

func (h *FlowHandler) statusFailed(w http.ResponseWriter, id string, err error) {
	if flow.IsNotFound(err) {
		respondError(w, http.StatusNotFound, "Flow not found")
		return
	}
	h.logger.WithError(err).WithField("flow_id", id).Error("Failed to read flow")
	respondError(w, http.StatusInternalServerError, "Failed to read flow")
}
