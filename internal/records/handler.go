package records

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/certops/insights/internal/analytics"
	"github.com/certops/insights/internal/ingest"
	"github.com/certops/insights/pkg/common"
	"github.com/certops/insights/pkg/logger"
	"github.com/certops/insights/pkg/middleware"
	"github.com/certops/insights/pkg/pagination"
)

const dateLayout = "2006-01-02"

// Handler handles HTTP requests for batches and analytics
type Handler struct {
	service     *Service
	analytics   *analytics.Service
	serviceName string
}

// NewHandler creates a new records handler
func NewHandler(service *Service, analyticsService *analytics.Service, serviceName string) *Handler {
	return &Handler{service: service, analytics: analyticsService, serviceName: serviceName}
}

// RegisterRoutes mounts all batch and analytics endpoints on the group.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/batches", h.UploadBatch)
	api.GET("/batches", h.ListBatches)
	api.GET("/batches/:id/records", h.GetRecords)
	api.GET("/metrics/dashboard", h.GetDashboardMetrics)
	api.GET("/metrics/membership", h.GetMembershipMetrics)
	api.GET("/charts/certifications", h.GetCertificationChart)
	api.GET("/charts/membership", h.GetMembershipChart)
	api.GET("/leaderboard", h.GetLeaderboard)
}

// windowQuery carries the optional date window and batch selector shared by
// every analytics endpoint.
type windowQuery struct {
	Start   string `form:"start" validate:"omitempty,datetime=2006-01-02"`
	End     string `form:"end" validate:"omitempty,datetime=2006-01-02"`
	BatchID string `form:"batch_id" validate:"omitempty,uuid4"`
	Compare bool   `form:"compare"`
}

// UploadBatch ingests one CSV export through the full pipeline
// POST /api/v1/batches
func (h *Handler) UploadBatch(c *gin.Context) {
	raw, err := readUpload(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "could not read upload")
		return
	}

	progress := func(percent int) {
		logger.WithContext(c.Request.Context()).Debug("ingestion progress", zap.Int("percent", percent))
	}

	summary, err := h.service.Ingest(c.Request.Context(), raw, progress)
	if err != nil {
		if parseErr, ok := err.(*ingest.ParseError); ok {
			common.ErrorResponse(c, http.StatusUnprocessableEntity, parseErr.Message)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to ingest file")
		return
	}

	middleware.RecordIngestion(h.serviceName, summary.TotalRecords, summary.SuspiciousRecords)
	common.CreatedResponse(c, summary)
}

// ListBatches lists retained batch summaries, newest first
// GET /api/v1/batches
func (h *Handler) ListBatches(c *gin.Context) {
	common.SuccessResponse(c, h.service.Summaries())
}

// GetRecords returns a page of enriched records from one batch
// GET /api/v1/batches/:id/records
func (h *Handler) GetRecords(c *gin.Context) {
	records, err := h.service.Batch(c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	params := pagination.ParseParams(c)
	total := int64(len(records))

	from := params.Offset
	if from > len(records) {
		from = len(records)
	}
	to := from + params.Limit
	if to > len(records) {
		to = len(records)
	}

	meta := pagination.BuildMeta(params.Limit, params.Offset, total)
	common.SuccessResponseWithMeta(c, records[from:to], meta)
}

// GetDashboardMetrics computes summary metrics for a window; with
// compare=true the immediately preceding window of equal length is included
// GET /api/v1/metrics/dashboard
func (h *Handler) GetDashboardMetrics(c *gin.Context) {
	query, records, start, end, ok := h.resolveQuery(c)
	if !ok {
		return
	}

	current := h.analytics.DashboardMetrics(records, start, end)

	if query.Compare && start != nil && end != nil {
		prevStart, prevEnd := analytics.PreviousPeriod(*start, *end)
		previous := h.analytics.DashboardMetrics(records, &prevStart, &prevEnd)
		common.SuccessResponse(c, gin.H{"current": current, "previous": previous})
		return
	}
	common.SuccessResponse(c, current)
}

// GetMembershipMetrics computes community-membership metrics for a window
// GET /api/v1/metrics/membership
func (h *Handler) GetMembershipMetrics(c *gin.Context) {
	_, records, start, end, ok := h.resolveQuery(c)
	if !ok {
		return
	}
	common.SuccessResponse(c, h.analytics.MembershipMetrics(records, start, end))
}

// GetCertificationChart returns the registrations/certifications series
// GET /api/v1/charts/certifications
func (h *Handler) GetCertificationChart(c *gin.Context) {
	_, records, start, end, ok := h.resolveQuery(c)
	if !ok {
		return
	}
	common.SuccessResponse(c, h.analytics.CertificationSeries(records, start, end))
}

// GetMembershipChart returns the enrollment/membership series
// GET /api/v1/charts/membership
func (h *Handler) GetMembershipChart(c *gin.Context) {
	_, records, start, end, ok := h.resolveQuery(c)
	if !ok {
		return
	}
	common.SuccessResponse(c, h.analytics.MembershipSeries(records, start, end))
}

// GetLeaderboard returns the top partners by certifications in the window
// GET /api/v1/leaderboard
func (h *Handler) GetLeaderboard(c *gin.Context) {
	_, records, start, end, ok := h.resolveQuery(c)
	if !ok {
		return
	}
	common.SuccessResponse(c, h.analytics.Leaderboard(records, start, end))
}

// resolveQuery validates the shared window query, loads the requested (or
// latest) batch and parses the date bounds. On failure it writes the error
// response and returns ok=false.
func (h *Handler) resolveQuery(c *gin.Context) (*windowQuery, []*ingest.Record, *time.Time, *time.Time, bool) {
	var query windowQuery
	if err := middleware.ValidateQuery(c, &query); err != nil {
		middleware.RespondWithValidationError(c, err)
		return nil, nil, nil, nil, false
	}

	records, err := h.service.Batch(query.BatchID)
	if err != nil {
		respondServiceError(c, err)
		return nil, nil, nil, nil, false
	}

	start, end, err := parseWindow(query.Start, query.End)
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return nil, nil, nil, nil, false
	}

	return &query, records, start, end, true
}

// parseWindow converts date-only bounds into an inclusive window: start at
// midnight, end at the last millisecond of its day.
func parseWindow(startRaw, endRaw string) (*time.Time, *time.Time, error) {
	var start, end *time.Time

	if startRaw != "" {
		t, err := time.Parse(dateLayout, startRaw)
		if err != nil {
			return nil, nil, common.NewAppError(http.StatusBadRequest, "start must be a date in YYYY-MM-DD format")
		}
		start = &t
	}

	if endRaw != "" {
		t, err := time.Parse(dateLayout, endRaw)
		if err != nil {
			return nil, nil, common.NewAppError(http.StatusBadRequest, "end must be a date in YYYY-MM-DD format")
		}
		t = time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999000000, t.Location())
		end = &t
	}

	if start != nil && end != nil && start.After(*end) {
		return nil, nil, common.NewAppError(http.StatusBadRequest, "start must not be after end")
	}

	return start, end, nil
}

func readUpload(c *gin.Context) (string, error) {
	if file, err := c.FormFile("file"); err == nil {
		opened, err := file.Open()
		if err != nil {
			return "", err
		}
		defer opened.Close()

		raw, err := io.ReadAll(opened)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func respondServiceError(c *gin.Context, err error) {
	if appErr, ok := err.(*common.AppError); ok {
		common.AppErrorResponse(c, appErr)
		return
	}
	common.ErrorResponse(c, http.StatusInternalServerError, "internal server error")
}
