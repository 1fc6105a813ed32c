// Package dashboard serves the generic JSON datasource protocol and the
// device HTTP push endpoints.
package dashboard

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"wisegate/internal/logger"
	"wisegate/internal/normalize"
	"wisegate/internal/realtime"
	"wisegate/internal/storage"
	"wisegate/pkg/errors"
	"wisegate/pkg/metrics"
)

type QueryRepository interface {
	Latest(ctx context.Context, table string, kind normalize.Kind, field string, limit int) ([]storage.Point, error)
}

// Source is the table the datasource reads.
type Source struct {
	Table string
	Kind  normalize.Kind
}

type Handler struct {
	repo   QueryRepository
	source Source
	limit  int
	recent *realtime.Recent
	ws     http.HandlerFunc
	logger logger.Logger
}

func NewHandler(repo QueryRepository, source Source, limit int, recent *realtime.Recent, ws http.HandlerFunc, log logger.Logger) *Handler {
	return &Handler{
		repo:   repo,
		source: source,
		limit:  limit,
		recent: recent,
		ws:     ws,
		logger: log,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.Index)
	router.POST("/search", h.Search)
	router.POST("/query", h.Query)

	router.POST("/io_log", h.push("io_log"))
	router.POST("/sys_log", h.push("sys_log"))

	api := router.Group("/api")
	{
		api.GET("/data", h.Recent)
		api.GET("/tpm", h.Recent)
		api.GET("/analog/:channel", h.Analog)
	}

	if h.ws != nil {
		router.GET("/ws", gin.WrapF(h.ws))
	}
}

func (h *Handler) HandleError(c *gin.Context, err error) {
	h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

func (h *Handler) Index(c *gin.Context) {
	c.String(http.StatusOK, "MQTT + PostgreSQL Gateway Running")
}

// Search lists the fields a panel may query.
func (h *Handler) Search(c *gin.Context) {
	c.JSON(http.StatusOK, normalize.QueryableFields(h.source.Kind))
}

type QueryRequest struct {
	Targets []QueryTarget `json:"targets"`
}

type QueryTarget struct {
	Target string `json:"target"`
	RefID  string `json:"refId,omitempty"`
}

// TimeSeries carries datapoints as [value, epoch_ms] pairs.
type TimeSeries struct {
	Target     string  `json:"target"`
	Datapoints [][]any `json:"datapoints"`
}

// Query answers each allow-listed target with its newest values. Targets
// outside the allow-list are left out of the response.
func (h *Handler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.IncDashboardQuery("invalid")
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	ctx := c.Request.Context()
	results := make([]TimeSeries, 0, len(req.Targets))
	for _, t := range req.Targets {
		if !normalize.IsQueryable(h.source.Kind, t.Target) {
			metrics.IncDashboardQuery("rejected")
			h.logger.WarnwCtx(ctx, "Rejected dashboard target", "target", t.Target)
			continue
		}

		points, err := h.repo.Latest(ctx, h.source.Table, h.source.Kind, t.Target, h.limit)
		if err != nil {
			metrics.IncDashboardQuery("error")
			h.HandleError(c, errors.ErrStorage.WithCause(err).WithDetail("target", t.Target))
			return
		}
		metrics.IncDashboardQuery("success")

		series := TimeSeries{Target: t.Target, Datapoints: make([][]any, 0, len(points))}
		for _, p := range points {
			series.Datapoints = append(series.Datapoints, []any{p.Value, p.Time.UnixMilli()})
		}
		results = append(results, series)
	}

	c.JSON(http.StatusOK, results)
}

func (h *Handler) push(source string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
			return
		}
		event, err := normalize.Decode(body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
			return
		}

		h.recent.Add(source, map[string]any(event))
		h.logger.DebugwCtx(c.Request.Context(), "Received device push", "source", source)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func (h *Handler) Recent(c *gin.Context) {
	c.JSON(http.StatusOK, h.recent.Snapshot())
}

// AnalogReading is one analog input sample taken from pushed I/O logs.
type AnalogReading struct {
	Value     any `json:"ai"`
	Status    any `json:"ai_st"`
	Timestamp any `json:"timestamp"`
}

// Analog returns every buffered I/O log carrying both aiN and ai_stN.
func (h *Handler) Analog(c *gin.Context) {
	channel := c.Param("channel")
	if _, err := strconv.ParseUint(channel, 10, 8); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(
			errors.ErrValidation.WithMessage("channel must be a number").WithDetail("channel", channel)))
		return
	}
	valueKey, statusKey := "ai"+channel, "ai_st"+channel

	readings := make([]AnalogReading, 0)
	for _, e := range h.recent.Snapshot() {
		payload, ok := e.Data.(map[string]any)
		if !ok {
			continue
		}
		value, hasValue := payload[valueKey]
		status, hasStatus := payload[statusKey]
		if !hasValue || !hasStatus {
			continue
		}

		var ts any = e.Timestamp.Format(time.RFC3339)
		if t, ok := payload[normalize.FieldTime]; ok {
			ts = t
		}
		readings = append(readings, AnalogReading{Value: value, Status: status, Timestamp: ts})
	}

	c.JSON(http.StatusOK, readings)
}
