package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/urbanism-zoning/internal/config"
	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
	"github.com/kirillkom/urbanism-zoning/internal/core/ports"
	"github.com/kirillkom/urbanism-zoning/internal/observability/metrics"
)

const (
	serviceName         = "api"
	maxRequestBodyBytes = 1 << 20
	backpressureWait    = 250 * time.Millisecond
)

type Router struct {
	cfg     config.Config
	zoning  ports.ZoningLookupService
	cities  ports.CityDirectory
	metrics *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	zoning ports.ZoningLookupService,
	cities ports.CityDirectory,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:     cfg,
		zoning:  zoning,
		cities:  cities,
		metrics: httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/urbanism/lookup", rt.lookup)
	api.HandleFunc("POST /v1/urbanism/analyze-building-details", rt.analyzeBuildingDetails)
	api.HandleFunc("GET /v1/counties", rt.listCounties)
	api.HandleFunc("GET /v1/counties/{county}/cities", rt.listCitiesByCounty)
	api.HandleFunc("GET /v1/cities/{cityId}", rt.getCity)

	limited := rateLimitMiddleware(
		backpressureMiddleware(api, rt.cfg.APIMaxInFlight, backpressureWait),
		rt.cfg.APIRateLimitRPS,
		rt.cfg.APIRateLimitBurst,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.Handle("/v1/", limited)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type lookupRequest struct {
	Address         string `json:"address"`
	CityID          string `json:"cityId"`
	IncludeAnalysis bool   `json:"includeAnalysis"`
}

func (rt *Router) lookup(w http.ResponseWriter, r *http.Request) {
	var req lookupRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Address) == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}

	result, err := rt.zoning.Lookup(r.Context(), req.CityID, req.Address, req.IncludeAnalysis)
	if err != nil {
		rt.writeDomainError(w, r, "lookup", err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordLookup(serviceName, result)
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) analyzeBuildingDetails(w http.ResponseWriter, r *http.Request) {
	var req domain.BuildingDetailsRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ZoneCode) == "" || strings.TrimSpace(req.BuildingType) == "" {
		writeError(w, http.StatusBadRequest, "zoneCode and buildingType are required")
		return
	}
	if strings.TrimSpace(req.Address) == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}

	details, err := rt.zoning.AnalyzeBuildingDetails(r.Context(), req)
	if err != nil {
		rt.writeDomainError(w, r, "analyze_building_details", err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (rt *Router) listCounties(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.cities.Counties())
}

func (rt *Router) listCitiesByCounty(w http.ResponseWriter, r *http.Request) {
	county := strings.TrimSpace(r.PathValue("county"))
	if county == "" {
		writeError(w, http.StatusBadRequest, "county name is required")
		return
	}
	writeJSON(w, http.StatusOK, rt.cities.CitiesByCounty(county))
}

func (rt *Router) getCity(w http.ResponseWriter, r *http.Request) {
	city, err := rt.cities.City(r.PathValue("cityId"))
	if err != nil {
		rt.writeDomainError(w, r, "get_city", err)
		return
	}
	writeJSON(w, http.StatusOK, city)
}

func (rt *Router) writeDomainError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := mapErrorToHTTPStatus(err)
	attrs := []any{
		"request_id", requestIDFromContext(r.Context()),
		"operation", operation,
		"status", status,
		"error", err,
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed", attrs...)
	} else {
		slog.Warn("request_failed", attrs...)
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	writeError(w, status, message)
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "request body is required")
		default:
			writeError(w, http.StatusBadRequest, "invalid json")
		}
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
