package importexport

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
)

// Handler handles import/export requests
type Handler struct {
	importer *Importer
	maxBytes int64
}

// NewHandler creates a new import/export handler. Uploads larger than
// maxBytes are rejected.
func NewHandler(importer *Importer, maxBytes int64) *Handler {
	return &Handler{importer: importer, maxBytes: maxBytes}
}

// Import loads ingredients from a CSV or JSON upload
// @Summary Import ingredients (admin)
// @Description Accepts a JSON array of {name, measurement_unit}, a CSV body, or a multipart "file" field (.csv or .json).
// @Tags admin
// @Accept json,text/csv,multipart/form-data
// @Produce json
// @Success 200 {object} Result
// @Failure 400 {object} map[string]string "Unreadable upload"
// @Security BearerAuth
// @Router /admin/ingredients/import [post]
func (h *Handler) Import(c *gin.Context) {
	format, body, err := h.upload(c)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	var records []Record
	if format == "csv" {
		records, err = ParseCSV(body)
	} else {
		records, err = ParseJSON(body)
	}
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	result, err := h.importer.Import(c.Request.Context(), records)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// upload returns the request payload and whether it is "csv" or "json".
func (h *Handler) upload(c *gin.Context) (string, io.Reader, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))

	if mediaType == "multipart/form-data" {
		fh, err := c.FormFile("file")
		if err != nil {
			return "", nil, apierr.Validation("file", "a file upload is required")
		}
		f, err := fh.Open()
		if err != nil {
			return "", nil, err
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return "", nil, apierr.Validation("file", "upload could not be read")
		}
		format := "json"
		if strings.EqualFold(path.Ext(fh.Filename), ".csv") {
			format = "csv"
		}
		return format, bytes.NewReader(data), nil
	}

	switch mediaType {
	case "text/csv", "application/csv":
		return "csv", c.Request.Body, nil
	case "application/json", "":
		return "json", c.Request.Body, nil
	}
	return "", nil, apierr.Validation("file", "unsupported content type "+mediaType)
}

// Export downloads the ingredient catalog
// @Summary Export ingredients (admin)
// @Tags admin
// @Produce json,text/csv
// @Param format query string false "json (default) or csv"
// @Success 200 {array} Record
// @Security BearerAuth
// @Router /admin/ingredients/export [get]
func (h *Handler) Export(c *gin.Context) {
	records, err := h.importer.Export(c.Request.Context())
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	switch c.DefaultQuery("format", "json") {
	case "csv":
		var buf bytes.Buffer
		if err := WriteCSV(&buf, records); err != nil {
			apierr.Respond(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="ingredients.csv"`)
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
	case "json":
		c.Header("Content-Disposition", `attachment; filename="ingredients.json"`)
		c.JSON(http.StatusOK, records)
	default:
		apierr.Respond(c, apierr.Validation("format", "must be json or csv"))
	}
}

// RegisterRoutes registers import/export routes. The group must run
// auth.AuthMiddleware and auth.RequireAdmin.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/ingredients/import", h.Import)
	rg.GET("/ingredients/export", h.Export)
}
