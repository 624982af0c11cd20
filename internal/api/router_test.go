package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"dataportal/internal/api"
	"dataportal/internal/container"
	"dataportal/internal/errors"
	"dataportal/internal/testkit"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pdfBody = "%PDF-1.4\n%%EOF"

func newApp(t *testing.T) *container.Container {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	c, err := container.New(testkit.Config(t), nil)
	require.NoError(t, err)
	require.NoError(t, c.Connect(ctx))
	t.Cleanup(func() { _ = c.Shutdown(ctx) })
	return c
}

func newRouter(c *container.Container) http.Handler {
	return api.NewRouter(api.Services{
		Ingest:    c.Ingest,
		Query:     c.Query,
		Export:    c.Export,
		Documents: c.Documents,
	}, nil)
}

func multipartBody(t *testing.T, fileName string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func do(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var out map[string]interface{}
	if w.Header().Get("Content-Type") != "" && bytes.HasPrefix(w.Body.Bytes(), []byte("{")) {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func errorCode(body map[string]interface{}) string {
	e, _ := body["error"].(map[string]interface{})
	code, _ := e["code"].(string)
	return code
}

func importWorkbook(t *testing.T, h http.Handler) {
	t.Helper()
	data := testkit.BuildXLSX(t,
		testkit.Sheet("Kota A",
			testkit.Row("Nama", "Tunai"),
			testkit.Row("PT A", "1.000"),
			testkit.Row("PT B", "3.000"),
		),
		testkit.Sheet("Kota B",
			testkit.Row("Nama", "Tunai"),
			testkit.Row("CV C", "4.000"),
		),
	)
	body, ct := multipartBody(t, "modal.xlsx", data, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/tables/modal/imports", body)
	req.Header.Set("Content-Type", ct)
	w, out := do(t, h, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 3, out["rows_imported"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.NotFound("x"), http.StatusNotFound},
		{errors.EmptyTable("x"), http.StatusNotFound},
		{errors.InvalidInput("x"), http.StatusBadRequest},
		{errors.UnsupportedFilter("x"), http.StatusBadRequest},
		{errors.UnsupportedFileType(".doc"), http.StatusBadRequest},
		{errors.SchemaConflict("x"), http.StatusConflict},
		{errors.FileTooLarge(1), http.StatusRequestEntityTooLarge},
		{errors.Wrap(errors.NotFound("x"), "lookup"), http.StatusNotFound},
		{errors.DatabaseError("x", nil), http.StatusInternalServerError},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, api.StatusFor(tt.err), tt.err.Error())
	}
}

func TestTableRoutes(t *testing.T) {
	h := newRouter(newApp(t))
	importWorkbook(t, h)

	w, out := do(t, h, httptest.NewRequest(http.MethodGet, "/api/tables", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{"modal"}, out["tables"])

	w, out = do(t, h, httptest.NewRequest(http.MethodGet, "/api/tables/modal/partitions", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{"Kota A", "Kota B"}, out["partitions"])

	q := url.Values{"partition": {"Kota A"}, "q": {"pt b"}}
	w, out = do(t, h, httptest.NewRequest(http.MethodGet, "/api/tables/modal/rows?"+q.Encode(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, out["count"])

	q = url.Values{"where[nama]": {"CV C"}}
	w, out = do(t, h, httptest.NewRequest(http.MethodGet, "/api/tables/modal/rows?"+q.Encode(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, out["count"])

	q = url.Values{"where[id]": {"1"}}
	w, out = do(t, h, httptest.NewRequest(http.MethodGet, "/api/tables/modal/rows?"+q.Encode(), nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.CodeUnsupportedFilter, errorCode(out))

	w, out = do(t, h, httptest.NewRequest(http.MethodGet, "/api/tables/modal/columns/tunai/summary", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "8000", out["total"])

	q = url.Values{"label": {"nama"}, "value": {"tunai"}}
	w, out = do(t, h, httptest.NewRequest(http.MethodGet, "/api/tables/modal/composition?"+q.Encode(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, out["shares"], 3)

	w, out = do(t, h, httptest.NewRequest(http.MethodGet, "/api/tables/modal/imports", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, out["runs"], 1)

	w, _ = do(t, h, httptest.NewRequest(http.MethodGet, "/api/tables/modal/export", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="modal.xlsx"`)
	f := testkit.ReadXLSX(t, w.Body.Bytes())
	assert.Equal(t, []string{"Kota A", "Kota B"}, f.GetSheetList())

	w, out = do(t, h, httptest.NewRequest(http.MethodDelete, "/api/tables/modal/partitions/"+url.PathEscape("Kota A"), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, out["deleted"])
}

func TestRowRoutes(t *testing.T) {
	h := newRouter(newApp(t))
	importWorkbook(t, h)

	req := httptest.NewRequest(http.MethodPost, "/api/tables/modal/rows",
		bytes.NewBufferString(`{"values":{"nama":"PT Baru","tunai":"500"}}`))
	req.Header.Set("Content-Type", "application/json")
	w, out := do(t, h, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "manual", out["source_sheet"])
	id := int(out["id"].(float64))

	path := "/api/tables/modal/rows/" + jsonNumber(id)
	req = httptest.NewRequest(http.MethodPut, path, bytes.NewBufferString(`{"values":{"tunai":750}}`))
	req.Header.Set("Content-Type", "application/json")
	w, out = do(t, h, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "750", out["values"].(map[string]interface{})["tunai"])

	req = httptest.NewRequest(http.MethodPut, path, bytes.NewBufferString(`{"values":{"nama":"","tunai":null}}`))
	req.Header.Set("Content-Type", "application/json")
	w, out = do(t, h, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.CodeValidationError, errorCode(out))

	req = httptest.NewRequest(http.MethodPut, path, bytes.NewBufferString(`{"values":{"bogus":"1"}}`))
	req.Header.Set("Content-Type", "application/json")
	w, out = do(t, h, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.CodeInvalidInput, errorCode(out))

	w, _ = do(t, h, httptest.NewRequest(http.MethodDelete, path, nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, out = do(t, h, httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errors.CodeNotFound, errorCode(out))

	w, _ = do(t, h, httptest.NewRequest(http.MethodGet, "/api/tables/modal/rows/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, out = do(t, h, httptest.NewRequest(http.MethodDelete, "/api/tables/modal/rows", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, out["deleted"])

	w, out = do(t, h, httptest.NewRequest(http.MethodGet, "/api/tables/modal/export", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errors.CodeEmptyTable, errorCode(out))
}

func jsonNumber(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestImportErrors(t *testing.T) {
	h := newRouter(newApp(t))

	tests := []struct {
		name     string
		path     string
		file     string
		data     []byte
		fields   map[string]string
		status   int
		wantCode string
	}{
		{name: "unsupported type", path: "/api/tables/modal/imports", file: "notes.txt", data: []byte("x"), status: http.StatusBadRequest, wantCode: errors.CodeUnsupportedFileType},
		{name: "unknown layout", path: "/api/tables/modal/imports", file: "a.csv", data: []byte("a\n1\n"), fields: map[string]string{"layout": "nope"}, status: http.StatusBadRequest, wantCode: errors.CodeInvalidInput},
		{name: "unknown mode", path: "/api/tables/modal/imports", file: "a.csv", data: []byte("a\n1\n"), fields: map[string]string{"mode": "nope"}, status: http.StatusBadRequest, wantCode: errors.CodeInvalidInput},
		{name: "reserved table", path: "/api/tables/documents/imports", file: "a.csv", data: []byte("a\n1\n"), status: http.StatusConflict, wantCode: errors.CodeSchemaConflict},
		{name: "too large", path: "/api/tables/modal/imports", file: "a.csv", data: bytes.Repeat([]byte("a,b\n"), 1<<18+1), status: http.StatusRequestEntityTooLarge, wantCode: errors.CodeFileTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartBody(t, tt.file, tt.data, tt.fields)
			req := httptest.NewRequest(http.MethodPost, tt.path, body)
			req.Header.Set("Content-Type", ct)
			w, out := do(t, h, req)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.wantCode, errorCode(out))
		})
	}

	w, _ := do(t, h, httptest.NewRequest(http.MethodGet, "/api/tables/missing/rows", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentRoutes(t *testing.T) {
	app := newApp(t)
	h := newRouter(app)

	body, ct := multipartBody(t, "laporan.pdf", []byte(pdfBody), map[string]string{"title": "Laporan"})
	req := httptest.NewRequest(http.MethodPost, "/api/documents/external", body)
	req.Header.Set("Content-Type", ct)
	w, out := do(t, h, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := out["id"].(string)
	assert.NotContains(t, out, "storage_path")

	w, out = do(t, h, httptest.NewRequest(http.MethodGet, "/api/documents/external", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, out["documents"], 1)

	w, _ = do(t, h, httptest.NewRequest(http.MethodGet, "/api/documents/external/"+id+"/file", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, pdfBody, w.Body.String())

	w, _ = do(t, h, httptest.NewRequest(http.MethodGet, "/api/documents/internal/"+id, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, h, httptest.NewRequest(http.MethodGet, "/api/documents/secret", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	public := api.NewPublicServer(app.Documents, nil)
	w, out = do(t, public, httptest.NewRequest(http.MethodGet, "/documents", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, out["documents"], 1)

	w, _ = do(t, public, httptest.NewRequest(http.MethodGet, "/documents/"+id, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pdfBody, w.Body.String())

	w, _ = do(t, h, httptest.NewRequest(http.MethodDelete, "/api/documents/external/"+id, nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, out = do(t, public, httptest.NewRequest(http.MethodGet, "/documents/"+id, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errors.CodeNotFound, errorCode(out))

	body, ct = multipartBody(t, "memo.docx", []byte(pdfBody), map[string]string{"title": "Memo"})
	req = httptest.NewRequest(http.MethodPost, "/api/documents/internal", body)
	req.Header.Set("Content-Type", ct)
	w, out = do(t, h, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.CodeUnsupportedFileType, errorCode(out))
}

func TestHealthz(t *testing.T) {
	h := newRouter(newApp(t))
	w, out := do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", out["status"])
}
