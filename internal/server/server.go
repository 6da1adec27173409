// Package server exposes the pipeline over a small local HTTP API.
package server

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/KaramelBytes/soilfusion-cli/internal/history"
	"github.com/KaramelBytes/soilfusion-cli/internal/narrative"
	"github.com/KaramelBytes/soilfusion-cli/internal/pipeline"
	"github.com/KaramelBytes/soilfusion-cli/internal/soil"
	"github.com/KaramelBytes/soilfusion-cli/internal/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler serves the API. History is optional.
type Handler struct {
	pipe    *pipeline.Pipeline
	history *history.Store
	lang    narrative.Lang
	log     *zap.SugaredLogger

	// one pipeline run at a time; runs share the data and model dirs
	mu sync.Mutex
}

// NewHandler builds a handler. store may be nil to disable history.
func NewHandler(p *pipeline.Pipeline, store *history.Store, lang narrative.Lang, log *zap.SugaredLogger) *Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Handler{pipe: p, history: store, lang: lang, log: log}
}

// NewRouter returns a gin engine with every route registered.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLog())
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts the API under /api.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	api.GET("/health", h.Health)
	api.POST("/upload", h.Upload)
	api.POST("/ml/run-pipeline", h.RunPipeline)
	api.POST("/ml/predict", h.Predict)
	api.GET("/history/:field_id", h.History)
}

func (h *Handler) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.log.Infow("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func statusFor(err error) int {
	var dfe *soil.DataFormatError
	var fnf *soil.FieldNotFoundError
	var anf *soil.ArtifactNotFoundError
	switch {
	case errors.As(err, &fnf):
		return http.StatusNotFound
	case errors.As(err, &anf):
		return http.StatusConflict
	case errors.As(err, &dfe):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		h.log.Errorw("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(code, pipeline.NewErrorPayload(err, false))
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"message":      "SoilFusion backend is running",
		"models_ready": h.pipe.ModelsReady(),
	})
}

// Upload stores a multipart "file" in the data directory under its base name.
func (h *Handler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	name := filepath.Base(fh.Filename)
	if name == "." || name == string(filepath.Separator) || strings.HasPrefix(name, ".") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file name"})
		return
	}
	if err := utils.EnsureDirs(h.pipe.DataDir); err != nil {
		h.fail(c, err)
		return
	}
	if err := c.SaveUploadedFile(fh, filepath.Join(h.pipe.DataDir, name)); err != nil {
		h.fail(c, err)
		return
	}
	h.log.Infow("file uploaded", "file", name, "bytes", fh.Size)
	c.JSON(http.StatusOK, gin.H{"message": "File uploaded successfully", "filename": name})
}

// RunPipeline runs the full offline pipeline synchronously.
func (h *Handler) RunPipeline(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	snap, err := h.pipe.Prepare()
	if err != nil {
		h.fail(c, err)
		return
	}
	rep, err := h.pipe.Train(snap)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "ML Pipeline completed successfully",
		"run_id":      snap.RunID,
		"shape":       snap.Canonical.Shape.String(),
		"rows":        snap.Features.Len(),
		"synthesized": snap.Inputs.Synthesized,
		"report":      rep,
	})
}

// PredictRequest is the body of POST /api/ml/predict.
type PredictRequest struct {
	FieldID *int64 `json:"field_id" binding:"required"`
	Lang    string `json:"lang"`
}

// Predict analyzes one field and records the result when history is enabled.
func (h *Handler) Predict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "field_id is required"})
		return
	}
	id := *req.FieldID
	lang := h.lang
	if req.Lang != "" {
		lang = narrative.ParseLang(req.Lang)
	}
	h.mu.Lock()
	res, err := h.pipe.Analyze(id, lang)
	h.mu.Unlock()
	if err != nil {
		h.fail(c, err)
		return
	}
	if h.history != nil {
		if e, err := history.FromResult(res, time.Now()); err != nil {
			h.log.Warnw("history entry not built", "field_id", id, "error", err)
		} else if _, err := h.history.Record(c.Request.Context(), e); err != nil {
			h.log.Warnw("history entry not recorded", "field_id", id, "error", err)
		}
	}
	c.JSON(http.StatusOK, res)
}

// History lists stored analyses for a field, newest first.
func (h *Handler) History(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history is disabled (set history_db)"})
		return
	}
	id, err := strconv.ParseInt(c.Param("field_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "field_id must be an integer"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	entries, err := h.history.List(c.Request.Context(), id, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	c.JSON(http.StatusOK, entries)
}
