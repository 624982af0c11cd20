package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"dataportal/domain/table"
	"dataportal/internal/errors"
	"dataportal/internal/export"
	"dataportal/internal/ingest"
	"dataportal/internal/projector"
	"dataportal/internal/query"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// TableHandler serves imports, row queries, edits and exports of upload tables
type TableHandler struct {
	ingest *ingest.Coordinator
	query  *query.Service
	export *export.Composer
	logger *zap.Logger
}

// NewTableHandler creates a new table handler
func NewTableHandler(ic *ingest.Coordinator, qs *query.Service, ec *export.Composer, logger *zap.Logger) *TableHandler {
	return &TableHandler{ingest: ic, query: qs, export: ec, logger: logger}
}

// rowRequest accepts JSON numbers and booleans as well as strings; values
// are stored as their text form.
type rowRequest struct {
	Partition string                 `json:"partition"`
	Values    map[string]interface{} `json:"values"`
}

// optionalQuery distinguishes an absent parameter from an empty one
func optionalQuery(c *gin.Context, key string) *string {
	if v, ok := c.GetQuery(key); ok {
		return &v
	}
	return nil
}

// Import handles POST /api/tables/:table/imports
func (h *TableHandler) Import(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		respondError(c, h.logger, errors.InvalidInput("multipart field file is required"))
		return
	}
	layout, ok := table.LayoutByName(c.PostForm("layout"))
	if !ok {
		respondError(c, h.logger, errors.InvalidInput(fmt.Sprintf("unknown layout %q", c.PostForm("layout"))))
		return
	}

	f, err := fh.Open()
	if err != nil {
		respondError(c, h.logger, errors.ParseError("failed to open upload", err))
		return
	}
	defer f.Close()

	report, err := h.ingest.ImportFile(c.Request.Context(), fh.Filename, f, c.Param("table"), ingest.Options{
		Mode:         table.Mode(c.PostForm("mode")),
		Layout:       layout,
		Partition:    c.PostForm("partition"),
		EmptyHeaders: table.EmptyHeaderPolicy(c.PostForm("empty_headers")),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ListImports handles GET /api/tables/:table/imports
func (h *TableHandler) ListImports(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	runs, err := h.ingest.ListImportRuns(c.Request.Context(), c.Param("table"), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// ListTables handles GET /api/tables
func (h *TableHandler) ListTables(c *gin.Context) {
	names, err := h.query.ListTables(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tables": names})
}

// Describe handles GET /api/tables/:table
func (h *TableHandler) Describe(c *gin.Context) {
	lt, err := h.query.Describe(c.Request.Context(), c.Param("table"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":          lt.Name,
		"columns":       lt.DataColumns(),
		"has_partition": lt.HasPartition,
	})
}

// ListPartitions handles GET /api/tables/:table/partitions
func (h *TableHandler) ListPartitions(c *gin.Context) {
	parts, err := h.query.ListPartitions(c.Request.Context(), c.Param("table"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"partitions": parts})
}

// ListRows handles GET /api/tables/:table/rows?partition=&q=&where[col]=
func (h *TableHandler) ListRows(c *gin.Context) {
	rows, err := h.query.ListRows(c.Request.Context(), c.Param("table"), query.Filter{
		Partition: optionalQuery(c, "partition"),
		Search:    c.Query("q"),
		Where:     c.QueryMap("where"),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows, "count": len(rows)})
}

func (h *TableHandler) rowID(c *gin.Context) (int64, bool) {
	id, err := query.ParseRowID(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return 0, false
	}
	return id, true
}

// GetRow handles GET /api/tables/:table/rows/:id
func (h *TableHandler) GetRow(c *gin.Context) {
	id, ok := h.rowID(c)
	if !ok {
		return
	}
	row, err := h.query.GetRow(c.Request.Context(), c.Param("table"), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

// InsertRow handles POST /api/tables/:table/rows
func (h *TableHandler) InsertRow(c *gin.Context) {
	var req rowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, errors.InvalidInput("invalid request body: "+err.Error()))
		return
	}
	row, err := h.query.InsertRow(c.Request.Context(), c.Param("table"), req.Partition, projector.StringifyMap(req.Values))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, row)
}

// UpdateRow handles PUT /api/tables/:table/rows/:id
func (h *TableHandler) UpdateRow(c *gin.Context) {
	id, ok := h.rowID(c)
	if !ok {
		return
	}
	var req rowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, errors.InvalidInput("invalid request body: "+err.Error()))
		return
	}
	row, err := h.query.UpdateRow(c.Request.Context(), c.Param("table"), id, projector.StringifyMap(req.Values))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

// DeleteRow handles DELETE /api/tables/:table/rows/:id
func (h *TableHandler) DeleteRow(c *gin.Context) {
	id, ok := h.rowID(c)
	if !ok {
		return
	}
	if err := h.query.DeleteRow(c.Request.Context(), c.Param("table"), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearTable handles DELETE /api/tables/:table/rows
func (h *TableHandler) ClearTable(c *gin.Context) {
	n, err := h.query.ClearTable(c.Request.Context(), c.Param("table"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// DeletePartition handles DELETE /api/tables/:table/partitions/:partition
func (h *TableHandler) DeletePartition(c *gin.Context) {
	n, err := h.query.DeletePartition(c.Request.Context(), c.Param("table"), c.Param("partition"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// Export handles GET /api/tables/:table/export. The workbook is built in
// memory so a failure never sends a truncated download.
func (h *TableHandler) Export(c *gin.Context) {
	name := c.Param("table")
	var buf bytes.Buffer
	if err := h.export.ExportTable(c.Request.Context(), name, &buf); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(name)))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// Summary handles GET /api/tables/:table/columns/:column/summary?partition=
func (h *TableHandler) Summary(c *gin.Context) {
	sum, err := h.query.SummarizeColumn(c.Request.Context(), c.Param("table"), c.Param("column"), optionalQuery(c, "partition"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// Composition handles GET /api/tables/:table/composition?label=&value=&partition=
func (h *TableHandler) Composition(c *gin.Context) {
	label, value := c.Query("label"), c.Query("value")
	if label == "" || value == "" {
		respondError(c, h.logger, errors.InvalidInput("label and value are required"))
		return
	}
	shares, err := h.query.Composition(c.Request.Context(), c.Param("table"), label, value, optionalQuery(c, "partition"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shares": shares})
}
