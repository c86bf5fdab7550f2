package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/service"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
	"github.com/noah-isme/academic-records-api/pkg/response"
	"github.com/noah-isme/academic-records-api/pkg/tabular"
)

// ImportHandler exposes batch import endpoints.
type ImportHandler struct {
	imports     *service.ImportService
	metrics     *service.MetricsService
	maxFileSize int64
}

// NewImportHandler constructs ImportHandler.
func NewImportHandler(imports *service.ImportService, metrics *service.MetricsService, maxFileSize int64) *ImportHandler {
	return &ImportHandler{imports: imports, metrics: metrics, maxFileSize: maxFileSize}
}

// Run godoc
// @Summary Run a batch import from an uploaded CSV or XLSX file
// @Tags Imports
// @Accept mpfd
// @Produce json
// @Param kind path string true "Import kind" Enums(students, courses, grades, enrollments)
// @Param file formData file true "Import file"
// @Param validate_only query bool false "Only validate the header schema"
// @Success 200 {object} response.Envelope
// @Router /imports/{kind} [post]
func (h *ImportHandler) Run(c *gin.Context) {
	kind := models.ImportKind(c.Param("kind"))
	if !kind.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown import kind"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file upload is required"))
		return
	}
	if h.maxFileSize > 0 && fileHeader.Size > h.maxFileSize {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", h.maxFileSize)))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close()

	if c.Query("validate_only") == "true" {
		doc, err := tabular.Read(file, fileHeader.Filename)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to parse import file"))
			return
		}
		validation, err := h.imports.ValidateSchema(kind, doc.Headers)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, validation, nil)
		return
	}

	result, err := h.imports.Run(c.Request.Context(), kind, file, fileHeader.Filename)
	if err != nil {
		if result != nil {
			response.ErrorWithData(c, err, result)
			return
		}
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordImportRows(kind, result.SuccessfulRows, result.FailedRows)
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Template godoc
// @Summary Download the CSV header template for an import kind
// @Tags Imports
// @Produce plain
// @Param kind path string true "Import kind" Enums(students, courses, grades, enrollments)
// @Success 200 {string} string
// @Router /imports/templates/{kind} [get]
func (h *ImportHandler) Template(c *gin.Context) {
	kind := models.ImportKind(c.Param("kind"))
	template, err := h.imports.TemplateCSV(kind)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s-template.csv", kind))
	c.Data(http.StatusOK, "text/csv", []byte(template))
}
