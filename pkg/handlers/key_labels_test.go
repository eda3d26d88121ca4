package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
)

func decodeAPIResponse(t *testing.T, rec *httptest.ResponseRecorder, data any) {
	t.Helper()
	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	if data != nil {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ApiResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Success)
	return resp.Error
}

// ============================================================================
// Record Handler Tests
// ============================================================================

func TestKeyLabelsHandler_Record(t *testing.T) {
	tests := []struct {
		name       string
		created    bool
		wantStatus int
	}{
		{"new decision", true, http.StatusCreated},
		{"existing decision", false, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newMockKeyLabelService()
			svc.created = tt.created
			handler := NewKeyLabelsHandler(svc, zap.NewNop())

			body := `{"tableA":"raw_orders","columnsA":["customer_id"],"tableB":"raw_customers","columnsB":["id"],"isKey":true,"author":"ana"}`
			req := httptest.NewRequest(http.MethodPost, "/api/key-labels", bytes.NewBufferString(body))
			rec := httptest.NewRecorder()

			handler.Record(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			var label models.KeyLabel
			decodeAPIResponse(t, rec, &label)
			assert.Equal(t, "RAW_ORDERS", label.TableA)
			assert.Equal(t, []string{"CUSTOMER_ID"}, label.ColumnsA)
			assert.True(t, label.IsKey)
			assert.Equal(t, "ana", svc.lastDecision.Author)
		})
	}
}

func TestKeyLabelsHandler_Record_BadRequests(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"malformed json", `{not json`, "invalid_request"},
		{"missing isKey", `{"tableA":"a","columnsA":["x"],"tableB":"b","columnsB":["y"]}`, "validation_error"},
		{"empty columns", `{"tableA":"a","columnsA":[],"tableB":"b","columnsB":["y"],"isKey":false}`, "validation_error"},
		{"missing table", `{"columnsA":["x"],"tableB":"b","columnsB":["y"],"isKey":true}`, "validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewKeyLabelsHandler(newMockKeyLabelService(), zap.NewNop())

			req := httptest.NewRequest(http.MethodPost, "/api/key-labels", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()

			handler.Record(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantCode, decodeErrorCode(t, rec))
		})
	}
}

func TestKeyLabelsHandler_Record_ServiceError(t *testing.T) {
	svc := newMockKeyLabelService()
	svc.err = errors.New("connection refused")
	handler := NewKeyLabelsHandler(svc, zap.NewNop())

	body := `{"tableA":"a","columnsA":["x"],"tableB":"b","columnsB":["y"],"isKey":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/key-labels", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	handler.Record(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "record_key_label_failed", decodeErrorCode(t, rec))
}

// ============================================================================
// List / Get / Update / Delete Handler Tests
// ============================================================================

func TestKeyLabelsHandler_List(t *testing.T) {
	svc := newMockKeyLabelService()
	id := uuid.New()
	svc.labels[id] = &models.KeyLabel{ID: id, TableA: "RAW_ORDERS"}
	handler := NewKeyLabelsHandler(svc, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/key-labels?tableA=raw_orders&tableB=raw_customers", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var list KeyLabelListResponse
	decodeAPIResponse(t, rec, &list)
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, "raw_orders", svc.lastFilter.TableA)
	assert.Equal(t, "raw_customers", svc.lastFilter.TableB)
}

func TestKeyLabelsHandler_List_Empty(t *testing.T) {
	handler := NewKeyLabelsHandler(newMockKeyLabelService(), zap.NewNop())

	rec := httptest.NewRecorder()
	handler.List(rec, httptest.NewRequest(http.MethodGet, "/api/key-labels", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"labels":[]`)
}

func TestKeyLabelsHandler_Get(t *testing.T) {
	svc := newMockKeyLabelService()
	id := uuid.New()
	svc.labels[id] = &models.KeyLabel{ID: id, TableA: "RAW_ORDERS"}
	handler := NewKeyLabelsHandler(svc, zap.NewNop())

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/key-labels/"+id.String(), nil)
		req.SetPathValue("id", id.String())
		rec := httptest.NewRecorder()

		handler.Get(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var label models.KeyLabel
		decodeAPIResponse(t, rec, &label)
		assert.Equal(t, id, label.ID)
	})

	t.Run("not found", func(t *testing.T) {
		missing := uuid.New()
		req := httptest.NewRequest(http.MethodGet, "/api/key-labels/"+missing.String(), nil)
		req.SetPathValue("id", missing.String())
		rec := httptest.NewRecorder()

		handler.Get(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "key_label_not_found", decodeErrorCode(t, rec))
	})

	t.Run("malformed id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/key-labels/abc", nil)
		req.SetPathValue("id", "abc")
		rec := httptest.NewRecorder()

		handler.Get(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_id", decodeErrorCode(t, rec))
	})
}

func TestKeyLabelsHandler_Update(t *testing.T) {
	svc := newMockKeyLabelService()
	id := uuid.New()
	svc.labels[id] = &models.KeyLabel{ID: id, IsKey: true}
	handler := NewKeyLabelsHandler(svc, zap.NewNop())

	req := httptest.NewRequest(http.MethodPut, "/api/key-labels/"+id.String(),
		bytes.NewBufferString(`{"isKey":false,"justification":"duplicates found","author":"ben"}`))
	req.SetPathValue("id", id.String())
	rec := httptest.NewRecorder()

	handler.Update(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var label models.KeyLabel
	decodeAPIResponse(t, rec, &label)
	assert.False(t, label.IsKey)
	assert.Equal(t, "duplicates found", label.Justification)

	req = httptest.NewRequest(http.MethodPut, "/api/key-labels/"+id.String(), bytes.NewBufferString(`{}`))
	req.SetPathValue("id", id.String())
	rec = httptest.NewRecorder()

	handler.Update(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeErrorCode(t, rec))
}

func TestKeyLabelsHandler_Delete(t *testing.T) {
	svc := newMockKeyLabelService()
	id := uuid.New()
	svc.labels[id] = &models.KeyLabel{ID: id}
	handler := NewKeyLabelsHandler(svc, zap.NewNop())

	req := httptest.NewRequest(http.MethodDelete, "/api/key-labels/"+id.String(), nil)
	req.SetPathValue("id", id.String())
	rec := httptest.NewRecorder()

	handler.Delete(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uuid.UUID{id}, svc.deleted)

	rec = httptest.NewRecorder()
	handler.Delete(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestKeyLabelsHandler_RegisterRoutes(t *testing.T) {
	svc := newMockKeyLabelService()
	handler := NewKeyLabelsHandler(svc, zap.NewNop())

	scoped := 0
	scope := ScopeMiddleware(func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			scoped++
			next(w, r)
		}
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, scope)

	body := `{"tableA":"a","columnsA":["x"],"tableB":"b","columnsB":["y"],"isKey":true}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/key-labels", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var created models.KeyLabel
	decodeAPIResponse(t, rec, &created)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/key-labels/"+created.ID.String(), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, scoped)
}
