// Package api exposes the analysis pipeline over HTTP
package api

import (
	"encoding/json"
	"math"
	"net/http"

	"triadbalance/domain/core"
	"triadbalance/internal"
	"triadbalance/internal/config"
	"triadbalance/internal/connectivity"
	"triadbalance/internal/errors"
	"triadbalance/internal/pipeline"
	"triadbalance/internal/surrogate"

	"github.com/gin-gonic/gin"
	"gonum.org/v1/gonum/mat"
)

// Server handles the /api/v1 endpoints
type Server struct {
	engine *gin.Engine
	cfg    config.AnalysisConfig
	batch  *pipeline.Batch
	logger *internal.Logger
}

// AnalyzeRequest carries one subject's region × time series. Null samples are missing.
type AnalyzeRequest struct {
	SubjectID  string          `json:"subject_id"`
	TimeSeries [][]*float64    `json:"timeseries" binding:"required"`
	Config     json.RawMessage `json:"config"`
}

// SurrogateRequest carries a series to phase-randomize
type SurrogateRequest struct {
	TimeSeries [][]float64 `json:"timeseries" binding:"required"`
	Seed       *uint64     `json:"seed"`
}

// SurrogateResponse is the phase-randomized series
type SurrogateResponse struct {
	Seed       uint64      `json:"seed"`
	TimeSeries [][]float64 `json:"timeseries"`
}

// NewServer creates the API server. Every request shares one batch limiter,
// so at most cfg.MaxSubjects analyses run at a time.
func NewServer(cfg config.AnalysisConfig, logger *internal.Logger) *Server {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	s := &Server{
		engine: gin.New(),
		cfg:    cfg,
		batch:  pipeline.NewBatch(cfg.MaxSubjects, logger),
		logger: logger.WithComponent("API"),
	}
	s.engine.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	v1 := s.engine.Group("/api/v1")
	v1.POST("/analyze", s.handleAnalyze)
	v1.POST("/surrogate", s.handleSurrogate)
}

// Engine returns the gin engine serving /api
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": errors.CodeInvalidInput})
		return
	}

	cfg := s.cfg
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			s.respondError(c, errors.WithCode(errors.CodeConfigInvalid, errors.Wrap(err, "invalid config")))
			return
		}
	}

	ts, err := connectivity.FromRows(nullableRows(req.TimeSeries))
	if err != nil {
		s.respondError(c, err)
		return
	}

	id := core.SubjectID(core.NewID())
	if req.SubjectID != "" {
		if id, err = core.ParseSubjectID(req.SubjectID); err != nil {
			s.respondError(c, errors.WithCode(errors.CodeInvalidInput, err))
			return
		}
	}
	subject, err := pipeline.NewSubject(id, ts, cfg, s.logger)
	if err != nil {
		s.respondError(c, err)
		return
	}

	reports, err := s.batch.Run(c.Request.Context(), []*pipeline.Subject{subject})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reports[0].Summary())
}

func (s *Server) handleSurrogate(c *gin.Context) {
	var req SurrogateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": errors.CodeInvalidInput})
		return
	}

	seed := s.cfg.Seed
	if req.Seed != nil {
		seed = *req.Seed
	}
	ts, err := connectivity.FromRows(req.TimeSeries)
	if err != nil {
		s.respondError(c, err)
		return
	}
	out, err := surrogate.Matrix(ts, seed)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SurrogateResponse{Seed: seed, TimeSeries: denseRows(out)})
}

func (s *Server) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	} else {
		s.logger.Debug("%s %s rejected: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": errors.GetCode(err)})
}

func statusFor(err error) int {
	if !errors.IsAppError(err) {
		return http.StatusInternalServerError
	}
	switch errors.GetCode(err) {
	case errors.CodeInvalidShape, errors.CodeInvalidParameter, errors.CodeInvalidInput, errors.CodeConfigInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func nullableRows(rows [][]*float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			if v == nil {
				out[i][j] = math.NaN()
			} else {
				out[i][j] = *v
			}
		}
	}
	return out
}

func denseRows(m *mat.Dense) [][]float64 {
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}
