package api

import (
	"bytes"
	"net/http"
	"strconv"

	"gosuperior/domain/core"
	"gosuperior/internal/errors"

	"github.com/gin-gonic/gin"
)

// HandleListRuns lists stored runs, newest first
func (s *Server) HandleListRuns() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
		if err != nil || limit < 1 || limit > 100 {
			limit = 20
		}
		offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
		if err != nil || offset < 0 {
			offset = 0
		}

		runs, err := s.service.ListRuns(c.Request.Context(), limit, offset)
		if err != nil {
			s.fail(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"runs":  runs,
			"count": len(runs),
		})
	}
}

// HandleGetRun returns the full result of one run
func (s *Server) HandleGetRun() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := s.runID(c)
		if !ok {
			return
		}
		result, err := s.service.GetRun(c.Request.Context(), id)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// HandleDeleteRun removes a stored run and its cells
func (s *Server) HandleDeleteRun() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := s.runID(c)
		if !ok {
			return
		}
		if err := s.service.DeleteRun(c.Request.Context(), id); err != nil {
			s.fail(c, err)
			return
		}
		s.logger.Info("[API] Deleted run %s", id)
		c.Status(http.StatusNoContent)
	}
}

// HandleRunReport renders one run; ?format=html (default) or markdown
func (s *Server) HandleRunReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := s.runID(c)
		if !ok {
			return
		}
		format := c.DefaultQuery("format", "html")
		renderer, found := s.renderers[format]
		if !found {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown report format: " + format})
			return
		}

		body, err := s.service.Report(c.Request.Context(), id, renderer)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.Data(http.StatusOK, renderer.ContentType(), body)
	}
}

// HandleRunExport downloads one table of a run
func (s *Server) HandleRunExport() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := s.runID(c)
		if !ok {
			return
		}
		table := c.Param("table")
		exporter, found := s.exporters[table]
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown table: " + table})
			return
		}

		result, err := s.service.GetRun(c.Request.Context(), id)
		if err != nil {
			s.fail(c, err)
			return
		}

		var buf bytes.Buffer
		if err := exporter.Export(c.Request.Context(), result, &buf); err != nil {
			s.fail(c, errors.Wrap(err, "export failed"))
			return
		}
		filename := id.String() + "_" + table + exporter.Extension()
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Data(http.StatusOK, contentType(exporter.Extension()), buf.Bytes())
	}
}

func (s *Server) runID(c *gin.Context) (core.RunID, bool) {
	id, err := core.ParseRunID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return id, true
}

// fail maps an application error code to an HTTP status
func (s *Server) fail(c *gin.Context, err error) {
	code := errors.Classify(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.CodeNotFound:
		status = http.StatusNotFound
	case errors.CodeInvalidInput, errors.CodeValidationError:
		status = http.StatusBadRequest
	case errors.CodeConfigInvalid:
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("[API] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}

func contentType(ext string) string {
	switch ext {
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}
