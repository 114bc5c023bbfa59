package documents

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"sds-backend/internal/crm"
	"sds-backend/internal/shared/server/middleware"
	"sds-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc            *Service
	MaxUploadBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 50 << 20
	}
	return &Handler{Svc: svc, MaxUploadBytes: maxUploadBytes}
}

// RegisterRoutes attaches document routes to an authenticated router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	editors := middleware.RequireRole(crm.RoleAdmin, crm.RoleEditor)
	admins := middleware.RequireRole(crm.RoleAdmin)

	rg.GET("/documents", h.search)
	rg.GET("/documents/:id", h.get)
	rg.GET("/documents/:id/download", h.download)
	rg.GET("/documents/:id/label", h.label)
	rg.GET("/documents/:id/label/pdf", h.labelPDF)
	rg.POST("/documents/:id/share", h.share)
	rg.POST("/documents", editors, h.upload)
	rg.POST("/documents/bulk", admins, h.bulkUpload)
	rg.PATCH("/documents/:id", editors, h.update)
	rg.PATCH("/documents/bulk", admins, h.bulkUpdate)
	rg.DELETE("/documents/:id", admins, h.remove)
	rg.POST("/documents/export-excel", h.exportExcel)
	rg.POST("/documents/import-excel", editors, h.importExcel)
}

func (h *Handler) search(c *gin.Context) {
	params := SearchParams{
		Query:       c.Query("q"),
		CompanyCode: c.Query("companyCode"),
		Department:  c.Query("department"),
		Site:        c.Query("site"),
		Page:        intQuery(c, "page", 1),
		Limit:       intQuery(c, "limit", 20),
	}

	// Non-admins only see their own company's documents.
	if claims, ok := middleware.ClaimsFromContext(c); ok && !claims.HasRole(crm.RoleAdmin) {
		params.CompanyCode = claims.CompanyCode
	}

	res, err := h.Svc.Find(c.Request.Context(), params)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to search documents", nil)
		return
	}

	respond.JSON(c, http.StatusOK, gin.H{
		"items": toResponses(res.Items),
		"total": res.Total,
		"page":  res.Page,
		"limit": res.Limit,
	})
}

func (h *Handler) get(c *gin.Context) {
	doc, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to fetch document")
		return
	}
	respond.JSON(c, http.StatusOK, toResponse(doc))
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	doc, err := h.Svc.Upload(c.Request.Context(), UploadParams{
		CompanyCode: h.companyCode(c),
		Filename:    fileHeader.Filename,
		ProductName: c.PostForm("productName"),
		Department:  c.PostForm("department"),
		Site:        c.PostForm("site"),
		Tags:        splitTags(c.PostForm("tags")),
		Body:        file,
	})
	if err != nil {
		h.fail(c, err, "failed to upload document")
		return
	}

	respond.JSON(c, http.StatusCreated, toResponse(doc))
}

func (h *Handler) bulkUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)

	form, err := c.MultipartForm()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "multipart form is required", nil)
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "at least one file is required", nil)
		return
	}

	companyCode := h.companyCode(c)
	uploads := make([]UploadParams, 0, len(files))
	var openErrors []string
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			openErrors = append(openErrors, fh.Filename+": unable to read file")
			continue
		}
		defer f.Close()
		uploads = append(uploads, UploadParams{
			CompanyCode: companyCode,
			Filename:    fh.Filename,
			Body:        f,
		})
	}

	res := h.Svc.BulkUpload(c.Request.Context(), uploads)
	res.Failed += len(openErrors)
	res.Errors = append(res.Errors, openErrors...)

	errs := res.Errors
	if errs == nil {
		errs = []string{}
	}
	respond.JSON(c, http.StatusOK, gin.H{
		"uploaded": res.Uploaded,
		"failed":   res.Failed,
		"errors":   errs,
	})
}

type updateRequest struct {
	ProductName *string   `json:"productName"`
	Department  *string   `json:"department"`
	Site        *string   `json:"site"`
	Tags        *[]string `json:"tags"`
}

func (r updateRequest) toPatch() Metadata {
	return Metadata{
		ProductName: r.ProductName,
		Department:  r.Department,
		Site:        r.Site,
		Tags:        r.Tags,
	}
}

func (h *Handler) update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	doc, err := h.Svc.UpdateMetadata(c.Request.Context(), c.Param("id"), req.toPatch())
	if err != nil {
		h.fail(c, err, "failed to update document")
		return
	}
	respond.JSON(c, http.StatusOK, toResponse(doc))
}

type bulkUpdateRequest struct {
	IDs    []string      `json:"ids"`
	Fields updateRequest `json:"fields"`
}

func (h *Handler) bulkUpdate(c *gin.Context) {
	var req bulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if len(req.IDs) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "ids are required", nil)
		return
	}

	updated, errs, err := h.Svc.BulkUpdateMetadata(c.Request.Context(), req.IDs, req.Fields.toPatch())
	if err != nil {
		h.fail(c, err, "failed to update documents")
		return
	}
	if errs == nil {
		errs = []UpdateError{}
	}
	respond.JSON(c, http.StatusOK, gin.H{"updated": updated, "errors": errs})
}

func (h *Handler) remove(c *gin.Context) {
	if err := h.Svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err, "failed to delete document")
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"deleted": true})
}

func (h *Handler) download(c *gin.Context) {
	url, doc, err := h.Svc.DownloadURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to create download link")
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"url": url, "filename": doc.Filename})
}

type shareRequest struct {
	ExpiresInDays int `json:"expiresInDays"`
}

func (h *Handler) share(c *gin.Context) {
	var req shareRequest
	// Empty body means default expiry.
	_ = c.ShouldBindJSON(&req)

	link, err := h.Svc.CreateShareLink(c.Request.Context(), c.Param("id"), req.ExpiresInDays)
	if err != nil {
		h.fail(c, err, "failed to create share link")
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"url": link.URL, "expiresAt": link.ExpiresAt})
}

func (h *Handler) label(c *gin.Context) {
	label, err := h.Svc.Label(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to build label")
		return
	}
	respond.JSON(c, http.StatusOK, label)
}

func (h *Handler) labelPDF(c *gin.Context) {
	pdf, err := h.Svc.LabelPDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to render label")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="label.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

type exportRequest struct {
	IDs []string `json:"ids"`
}

func (h *Handler) exportExcel(c *gin.Context) {
	var req exportRequest
	// Empty body means export everything.
	_ = c.ShouldBindJSON(&req)

	data, err := h.Svc.ExportExcel(c.Request.Context(), req.IDs)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to export documents", nil)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="documents.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (h *Handler) importExcel(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	updated, err := h.Svc.ImportExcel(c.Request.Context(), file)
	if err != nil {
		h.fail(c, err, "failed to import documents")
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"updated": updated})
}

// companyCode resolves the owning company for uploads: explicit form value for
// admins, the session's company otherwise.
func (h *Handler) companyCode(c *gin.Context) string {
	claims, _ := middleware.ClaimsFromContext(c)
	if claims.HasRole(crm.RoleAdmin) {
		if code := strings.TrimSpace(c.PostForm("companyCode")); code != "" {
			return code
		}
	}
	return claims.CompanyCode
}

func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}

func intQuery(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}
