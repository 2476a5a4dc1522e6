package labinterp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	return h, e
}

func expectHTTPStatus(t *testing.T, err error, code int) {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	if he.Code != code {
		t.Errorf("expected %d, got %d", code, he.Code)
	}
}

func TestHandler_ListCategories(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListCategories(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var cats []CategoryDefinition
	if err := json.Unmarshal(rec.Body.Bytes(), &cats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cats) != h.svc.Catalog().Len() {
		t.Errorf("expected %d categories, got %d", h.svc.Catalog().Len(), len(cats))
	}
}

func TestHandler_GetCategory(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("serology")

	if err := h.GetCategory(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"hiv_screening"`) {
		t.Errorf("expected serology fields in body: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("astrology")
	expectHTTPStatus(t, h.GetCategory(c), http.StatusNotFound)
}

func TestHandler_CreateLabResult(t *testing.T) {
	h, e := newTestHandler()
	body := `{"patient_id":"` + uuid.New().String() + `","test_name":"CBC","raw_results":{"hemoglobin":{"value":"9.1"}}}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateLabResult(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestHandler_CreateLabResult_BadRequest(t *testing.T) {
	h, e := newTestHandler()
	body := `{"test_name":"CBC"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	expectHTTPStatus(t, h.CreateLabResult(c), http.StatusBadRequest)
}

func TestHandler_GetLabResult(t *testing.T) {
	h, e := newTestHandler()
	lr := &LabResult{PatientID: uuid.New(), TestName: "CBC"}
	h.svc.CreateLabResult(context.Background(), lr)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(lr.ID.String())

	if err := h.GetLabResult(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_GetLabResult_NotFound(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	expectHTTPStatus(t, h.GetLabResult(c), http.StatusNotFound)
}

func TestHandler_GetLabResult_InvalidID(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	expectHTTPStatus(t, h.GetLabResult(c), http.StatusBadRequest)
}

func TestHandler_ListLabResults(t *testing.T) {
	h, e := newTestHandler()
	patientID := uuid.New()
	for i := 0; i < 3; i++ {
		h.svc.CreateLabResult(context.Background(), &LabResult{PatientID: patientID, TestName: "CBC"})
	}

	req := httptest.NewRequest(http.MethodGet, "/?patient_id="+patientID.String()+"&limit=2", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListLabResults(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Data    []LabResult `json:"data"`
		Total   int         `json:"total"`
		HasMore bool        `json:"has_more"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 3 || len(resp.Data) != 2 || !resp.HasMore {
		t.Errorf("unexpected page: total=%d len=%d has_more=%v", resp.Total, len(resp.Data), resp.HasMore)
	}
}

func TestHandler_ListLabResults_RequiresPatient(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	expectHTTPStatus(t, h.ListLabResults(c), http.StatusBadRequest)
}

func TestHandler_UpdateLabResult(t *testing.T) {
	h, e := newTestHandler()
	lr := &LabResult{PatientID: uuid.New(), TestName: "CBC"}
	h.svc.CreateLabResult(context.Background(), lr)

	body := `{"patient_id":"` + lr.PatientID.String() + `","test_name":"CBC","status":"amended","raw_results":{"hemoglobin":"13"}}`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(lr.ID.String())

	if err := h.UpdateLabResult(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_UpdateLabResult_NotFound(t *testing.T) {
	h, e := newTestHandler()
	body := `{"patient_id":"` + uuid.New().String() + `","test_name":"CBC"}`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	expectHTTPStatus(t, h.UpdateLabResult(c), http.StatusNotFound)
}

func TestHandler_DeleteLabResult(t *testing.T) {
	h, e := newTestHandler()
	lr := &LabResult{PatientID: uuid.New(), TestName: "CBC"}
	h.svc.CreateLabResult(context.Background(), lr)

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(lr.ID.String())

	if err := h.DeleteLabResult(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_InterpretRaw(t *testing.T) {
	h, e := newTestHandler()
	body := `{"raw_results":{"hiv_screening":{"result":"Reactive"},"tsh":"9.5"}}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.InterpretRaw(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var in Interpretation
	if err := json.Unmarshal(rec.Body.Bytes(), &in); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(in.Recommendations) != 2 {
		t.Fatalf("expected 2 recommendations, got %+v", in.Recommendations)
	}
	if in.Recommendations[0].Test != "TSH" || in.Recommendations[0].Severity != SeverityCritical {
		t.Errorf("unexpected first record: %+v", in.Recommendations[0])
	}
	if in.Summary.Highest != SeverityCritical {
		t.Errorf("expected critical summary, got %s", in.Summary.Highest)
	}
}

func TestHandler_InterpretRaw_UnknownCategory(t *testing.T) {
	h, e := newTestHandler()
	body := `{"category":"astrology","raw_results":{}}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	expectHTTPStatus(t, h.InterpretRaw(c), http.StatusNotFound)
}

func TestHandler_InterpretRaw_NotObject(t *testing.T) {
	h, e := newTestHandler()
	body := `{"raw_results":[1,2,3]}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	expectHTTPStatus(t, h.InterpretRaw(c), http.StatusBadRequest)
}

func TestHandler_InterpretLabResult(t *testing.T) {
	h, e := newTestHandler()
	lr := &LabResult{PatientID: uuid.New(), TestName: "Lipids", RawResults: json.RawMessage(`{"hdl_cholesterol":"0.9"}`)}
	h.svc.CreateLabResult(context.Background(), lr)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(lr.ID.String())

	if err := h.InterpretLabResult(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"severity":"low"`) {
		t.Errorf("expected low finding in body: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())
	expectHTTPStatus(t, h.InterpretLabResult(c), http.StatusNotFound)
}

func TestHandler_InterpretPatient(t *testing.T) {
	h, e := newTestHandler()
	patientID := uuid.New()
	h.svc.CreateLabResult(context.Background(), &LabResult{PatientID: patientID, TestName: "A", RawResults: json.RawMessage(`{"potassium":"6.0"}`)})
	h.svc.CreateLabResult(context.Background(), &LabResult{PatientID: patientID, TestName: "B", RawResults: json.RawMessage(`{"potassium":"4.0"}`)})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("patient_id")
	c.SetParamValues(patientID.String())

	if err := h.InterpretPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out []Interpretation
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 interpretations, got %d", len(out))
	}
	if out[0].TestName != "A" || out[0].Summary.Highest != SeverityHigh {
		t.Errorf("unexpected first interpretation: %+v", out[0])
	}
	if out[1].TestName != "B" || out[1].Summary.Highest != SeverityNormal {
		t.Errorf("unexpected second interpretation: %+v", out[1])
	}
}

func TestHandler_InterpretPatient_InvalidID(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("patient_id")
	c.SetParamValues("nope")

	expectHTTPStatus(t, h.InterpretPatient(c), http.StatusBadRequest)
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, e := newTestHandler()
	api := e.Group("/api/v1")
	h.RegisterRoutes(api)

	want := map[string]bool{}
	for _, route := range []string{
		"GET /api/v1/lab-catalog",
		"GET /api/v1/lab-catalog/:id",
		"GET /api/v1/lab-results",
		"GET /api/v1/lab-results/:id",
		"GET /api/v1/lab-results/:id/interpretation",
		"GET /api/v1/patients/:patient_id/lab-interpretations",
		"POST /api/v1/lab-interpretations",
		"POST /api/v1/lab-results",
		"PUT /api/v1/lab-results/:id",
		"DELETE /api/v1/lab-results/:id",
	} {
		want[route] = false
	}
	for _, r := range e.Routes() {
		key := r.Method + " " + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for route, found := range want {
		if !found {
			t.Errorf("route %s not registered", route)
		}
	}
}
