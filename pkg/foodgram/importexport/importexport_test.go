package importexport

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/foodgram/pkg/foodgram/metrics"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"github.com/mikepea/foodgram/pkg/foodgram/testutil"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestRouter(db *gorm.DB) *gin.Engine {
	r := testutil.SetupTestRouter()
	NewHandler(NewImporter(db), 1<<20).RegisterRoutes(r.Group("/api/admin"))
	return r
}

func TestParseCSV(t *testing.T) {
	records, err := ParseCSV(strings.NewReader("name,measurement_unit\nflour, g\n\"salt, sea\",pinch\nbroken\n"))
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{Name: "flour", MeasurementUnit: "g"},
		{Name: "salt, sea", MeasurementUnit: "pinch"},
		{Name: "broken"},
	}, records)

	records, err = ParseCSV(strings.NewReader("milk,ml\n"))
	require.NoError(t, err)
	assert.Equal(t, []Record{{Name: "milk", MeasurementUnit: "ml"}}, records, "header is optional")

	_, err = ParseCSV(strings.NewReader("\"unterminated,g\n"))
	assert.Error(t, err)
}

func TestParseJSON(t *testing.T) {
	records, err := ParseJSON(strings.NewReader(`[{"name":"egg","measurement_unit":"pcs"}]`))
	require.NoError(t, err)
	assert.Equal(t, []Record{{Name: "egg", MeasurementUnit: "pcs"}}, records)

	_, err = ParseJSON(strings.NewReader(`{"name":"egg"}`))
	assert.Error(t, err)
}

func TestImportSkipsExistingAndInvalid(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.CreateTestIngredient(t, db, "flour", "g")
	before := promtestutil.ToFloat64(metrics.IngredientsImported)

	result, err := NewImporter(db).Import(context.Background(), []Record{
		{Name: "flour", MeasurementUnit: "g"},
		{Name: " sugar ", MeasurementUnit: "g"},
		{Name: "sugar", MeasurementUnit: "g"},
		{Name: "flour", MeasurementUnit: "kg"},
		{Name: "", MeasurementUnit: "g"},
		{Name: "moon dust", MeasurementUnit: "parsec"},
		{Name: strings.Repeat("x", 201), MeasurementUnit: "g"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 5, result.Skipped)
	require.Len(t, result.Errors, 3)
	assert.Equal(t, "record 5: name: this field is required", result.Errors[0])
	assert.Equal(t, "record 6: measurement_unit: unknown measurement unit", result.Errors[1])
	assert.Equal(t, "record 7: name: must be at most 200 characters", result.Errors[2])
	assert.Equal(t, before+2, promtestutil.ToFloat64(metrics.IngredientsImported))

	var count int64
	db.Model(&models.Ingredient{}).Count(&count)
	assert.Equal(t, int64(3), count)
}

func TestImportHandlerJSON(t *testing.T) {
	db := testutil.SetupTestDB(t)
	r := setupTestRouter(db)

	body := `[{"name":"egg","measurement_unit":"pcs"},{"name":"milk","measurement_unit":"ml"}]`
	req := httptest.NewRequest("POST", "/api/admin/ingredients/import", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var result Result
	json.Unmarshal(w.Body.Bytes(), &result)
	if result.Imported != 2 || result.Skipped != 0 {
		t.Errorf("Unexpected result %+v", result)
	}
}

func TestImportHandlerMultipartCSV(t *testing.T) {
	db := testutil.SetupTestDB(t)
	r := setupTestRouter(db)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "ingredients.csv")
	require.NoError(t, err)
	part.Write([]byte("name,measurement_unit\nbasil,bunch\ngarlic,clove\n"))
	mw.Close()

	req := httptest.NewRequest("POST", "/api/admin/ingredients/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var result Result
	json.Unmarshal(w.Body.Bytes(), &result)
	if result.Imported != 2 {
		t.Errorf("Expected 2 imported, got %+v", result)
	}
}

func TestImportHandlerRejectsGarbage(t *testing.T) {
	db := testutil.SetupTestDB(t)
	r := setupTestRouter(db)

	req := httptest.NewRequest("POST", "/api/admin/ingredients/import", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}

	req = httptest.NewRequest("POST", "/api/admin/ingredients/import", strings.NewReader("<xml/>"))
	req.Header.Set("Content-Type", "application/xml")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for unsupported type, got %d", w.Code)
	}
}

func TestExportHandler(t *testing.T) {
	db := testutil.SetupTestDB(t)
	r := setupTestRouter(db)
	testutil.CreateTestIngredient(t, db, "sugar", "g")
	testutil.CreateTestIngredient(t, db, "flour", "kg")
	testutil.CreateTestIngredient(t, db, "flour", "g")

	req := httptest.NewRequest("GET", "/api/admin/ingredients/export", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var records []Record
	json.Unmarshal(w.Body.Bytes(), &records)
	want := []Record{{"flour", "g"}, {"flour", "kg"}, {"sugar", "g"}}
	if len(records) != 3 || records[0] != want[0] || records[1] != want[1] || records[2] != want[2] {
		t.Errorf("Expected %v, got %v", want, records)
	}

	req = httptest.NewRequest("GET", "/api/admin/ingredients/export?format=csv", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Body.String(); got != "name,measurement_unit\nflour,g\nflour,kg\nsugar,g\n" {
		t.Errorf("Unexpected CSV %q", got)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "ingredients.csv") {
		t.Errorf("Unexpected content disposition %q", cd)
	}

	req = httptest.NewRequest("GET", "/api/admin/ingredients/export?format=xml", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for unknown format, got %d", w.Code)
	}
}
