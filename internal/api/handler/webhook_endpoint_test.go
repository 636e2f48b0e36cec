package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/leyden/paysandbox/internal/core"
	"github.com/leyden/paysandbox/internal/model"
)

func newWebhookEndpointHandler() *WebhookEndpoint {
	return NewWebhookEndpoint(nil, nil)
}

// endpointScan plays back a webhook_endpoints row in the column order the
// service selects.
func endpointScan(ep model.WebhookEndpoint) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = ep.ID
		*(dest[1].(*string)) = ep.OwnerID
		*(dest[2].(*string)) = ep.URL
		*(dest[3].(*string)) = ep.SecretEncrypted
		*(dest[4].(*[]string)) = ep.SubscribedEvents
		*(dest[5].(*bool)) = ep.IsActive
		*(dest[6].(*time.Time)) = ep.CreatedAt
		*(dest[7].(*time.Time)) = ep.UpdatedAt
		return nil
	}
}

func testStoredEndpoint(ownerID string) model.WebhookEndpoint {
	now := time.Now().Truncate(time.Microsecond)
	return model.WebhookEndpoint{
		ID:               validID,
		OwnerID:          ownerID,
		URL:              "https://merchant.test/hooks",
		SecretEncrypted:  "sealed",
		SubscribedEvents: []string{model.EventTransactionCreated},
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// --- Create ---

func TestWebhookEndpointCreate_NoSession(t *testing.T) {
	h := newWebhookEndpointHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/webhook-endpoints", map[string]any{
		"url":    "https://merchant.test/hooks",
		"events": []string{model.EventTransactionCreated},
	})

	h.Create(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookEndpointCreate_InvalidJSON(t *testing.T) {
	h := newWebhookEndpointHandler()
	rec := httptest.NewRecorder()
	r := withSession(newRequestRaw(http.MethodPost, "/webhook-endpoints", "{bad json"), testAccountID, "owner@merchant.test")

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "invalid JSON")
}

func TestWebhookEndpointCreate_BadURL(t *testing.T) {
	h := newWebhookEndpointHandler()
	rec := httptest.NewRecorder()
	r := withSession(newRequest(http.MethodPost, "/webhook-endpoints", map[string]any{
		"url":    "not-a-url",
		"events": []string{model.EventTransactionCreated},
	}), testAccountID, "owner@merchant.test")

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "validation error")
}

func TestWebhookEndpointCreate_NoEvents(t *testing.T) {
	h := newWebhookEndpointHandler()
	rec := httptest.NewRecorder()
	r := withSession(newRequest(http.MethodPost, "/webhook-endpoints", map[string]any{
		"url":    "https://merchant.test/hooks",
		"events": []string{},
	}), testAccountID, "owner@merchant.test")

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "validation error")
}

func TestWebhookEndpointCreate_UnknownEventType(t *testing.T) {
	// Event validation happens before any storage access.
	h := NewWebhookEndpoint(core.NewWebhookEndpointService(nil, testKEK), nil)
	rec := httptest.NewRecorder()
	r := withSession(newRequest(http.MethodPost, "/webhook-endpoints", map[string]any{
		"url":    "https://merchant.test/hooks",
		"events": []string{"transaction.exploded"},
	}), testAccountID, "owner@merchant.test")

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "unknown event type")
}

func TestWebhookEndpointCreate_ReturnsSecretOnce(t *testing.T) {
	db := &handlerMockDB{}
	h := NewWebhookEndpoint(core.NewWebhookEndpointService(db, testKEK), nil)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil).Once()
	now := time.Now().Truncate(time.Microsecond)
	tsRow := &handlerMockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*time.Time)) = now
		*(dest[1].(*time.Time)) = now
		return nil
	}}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(tsRow).Once()

	rec := httptest.NewRecorder()
	r := withSession(newRequest(http.MethodPost, "/webhook-endpoints", map[string]any{
		"url":    "https://merchant.test/hooks",
		"events": []string{model.EventTransactionCreated, model.EventTransactionCompleted},
	}), testAccountID, "owner@merchant.test")

	h.Create(rec, r)

	require.Equal(t, http.StatusCreated, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	secret, _ := got["secret"].(string)
	assert.True(t, strings.HasPrefix(secret, "whsec_"), "secret %q should carry the whsec_ prefix", secret)
	assert.Equal(t, testAccountID, got["owner_id"])
	// The sealed form stays server-side.
	assert.NotContains(t, rec.Body.String(), "secret_encrypted")
	db.AssertExpectations(t)
}

// --- List ---

func TestWebhookEndpointList_NoSession(t *testing.T) {
	h := newWebhookEndpointHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodGet, "/webhook-endpoints", nil)

	h.List(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookEndpointList_Paginated(t *testing.T) {
	db := &handlerMockDB{}
	h := NewWebhookEndpoint(core.NewWebhookEndpointService(db, testKEK), nil)

	first := testStoredEndpoint(testAccountID)
	second := testStoredEndpoint(testAccountID)
	second.ID = "test-id-2"
	rows := newHandlerMockRows(endpointScan(first), endpointScan(second))
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(rows, nil).Once()

	rec := httptest.NewRecorder()
	r := withSession(newRequest(http.MethodGet, "/webhook-endpoints?limit=1", nil), testAccountID, "owner@merchant.test")

	h.List(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Items      []model.WebhookEndpoint `json:"items"`
		NextCursor string                  `json:"next_cursor"`
		HasMore    bool                    `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Items, 1)
	assert.True(t, got.HasMore)
	assert.Equal(t, validID, got.NextCursor)
}

// --- Get ---

func TestWebhookEndpointGet_EmptyID(t *testing.T) {
	h := newWebhookEndpointHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodGet, "/webhook-endpoints/", nil)
	r = withChiURLParam(r, "id", "")

	h.Get(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "missing required ID")
}

func TestWebhookEndpointGet_ForeignOwner(t *testing.T) {
	db := &handlerMockDB{}
	h := NewWebhookEndpoint(core.NewWebhookEndpointService(db, testKEK), nil)

	stored := testStoredEndpoint("someone-else")
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&handlerMockRow{scanFunc: endpointScan(stored)}).Once()

	rec := httptest.NewRecorder()
	r := withSession(newRequest(http.MethodGet, "/webhook-endpoints/"+validID, nil), testAccountID, "owner@merchant.test")
	r = withChiURLParam(r, "id", validID)

	h.Get(rec, r)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Equal(t, "not found", body["error"])
}

// --- Update ---

func TestWebhookEndpointUpdate_EmptyID(t *testing.T) {
	h := newWebhookEndpointHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPatch, "/webhook-endpoints/", map[string]any{"is_active": false})
	r = withChiURLParam(r, "id", "")

	h.Update(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "missing required ID")
}

func TestWebhookEndpointUpdate_MergesAbsentFields(t *testing.T) {
	db := &handlerMockDB{}
	h := NewWebhookEndpoint(core.NewWebhookEndpointService(db, testKEK), nil)

	stored := testStoredEndpoint(testAccountID)
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&handlerMockRow{scanFunc: endpointScan(stored)}).Once()
	var capturedArgs []any
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) { capturedArgs = args.Get(2).([]any) }).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil).Once()
	deactivated := stored
	deactivated.IsActive = false
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&handlerMockRow{scanFunc: endpointScan(deactivated)}).Once()

	rec := httptest.NewRecorder()
	r := withSession(newRequest(http.MethodPatch, "/webhook-endpoints/"+validID, map[string]any{
		"is_active": false,
	}), testAccountID, "owner@merchant.test")
	r = withChiURLParam(r, "id", validID)

	h.Update(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	// URL and events pass through untouched; only the flag changed.
	require.Len(t, capturedArgs, 4)
	assert.Equal(t, stored.URL, capturedArgs[0])
	assert.Equal(t, stored.SubscribedEvents, capturedArgs[1])
	assert.Equal(t, false, capturedArgs[2])
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, false, got["is_active"])
	db.AssertExpectations(t)
}

// --- Rotate ---

func TestWebhookEndpointRotate_EmptyID(t *testing.T) {
	h := newWebhookEndpointHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/webhook-endpoints//rotate", nil)
	r = withChiURLParam(r, "id", "")

	h.Rotate(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "missing required ID")
}

// --- ListDeliveries ---

func TestWebhookEndpointListDeliveries_EmptyID(t *testing.T) {
	h := newWebhookEndpointHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodGet, "/webhook-endpoints//deliveries", nil)
	r = withChiURLParam(r, "id", "")

	h.ListDeliveries(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "missing required ID")
}

func TestWebhookEndpointListDeliveries_ForeignOwner(t *testing.T) {
	db := &handlerMockDB{}
	h := NewWebhookEndpoint(core.NewWebhookEndpointService(db, testKEK), core.NewWebhookDeliveryService(db))

	stored := testStoredEndpoint("someone-else")
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&handlerMockRow{scanFunc: endpointScan(stored)}).Once()

	rec := httptest.NewRecorder()
	r := withSession(newRequest(http.MethodGet, "/webhook-endpoints/"+validID+"/deliveries", nil), testAccountID, "owner@merchant.test")
	r = withChiURLParam(r, "id", validID)

	h.ListDeliveries(rec, r)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	// The delivery log was never queried.
	db.AssertNotCalled(t, "Query")
}

func TestWebhookEndpointListDeliveries_ReturnsLog(t *testing.T) {
	db := &handlerMockDB{}
	h := NewWebhookEndpoint(core.NewWebhookEndpointService(db, testKEK), core.NewWebhookDeliveryService(db))

	stored := testStoredEndpoint(testAccountID)
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&handlerMockRow{scanFunc: endpointScan(stored)}).Once()

	now := time.Now().Truncate(time.Microsecond)
	delivered := now.Add(-time.Minute)
	deliveryRows := newHandlerMockRows(func(dest ...any) error {
		*(dest[0].(*string)) = "dlv_1"
		*(dest[1].(*string)) = validID
		*(dest[2].(*string)) = model.EventTestPing
		*(dest[3].(*[]byte)) = []byte(`{"test":true}`)
		*(dest[4].(*string)) = model.DeliveryDelivered
		*(dest[5].(*int)) = 1
		*(dest[6].(*string)) = ""
		*(dest[7].(**time.Time)) = &delivered
		*(dest[8].(*time.Time)) = now
		return nil
	})
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(deliveryRows, nil).Once()

	rec := httptest.NewRecorder()
	r := withSession(newRequest(http.MethodGet, "/webhook-endpoints/"+validID+"/deliveries", nil), testAccountID, "owner@merchant.test")
	r = withChiURLParam(r, "id", validID)

	h.ListDeliveries(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string][]model.WebhookDelivery
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got["deliveries"], 1)
	assert.Equal(t, model.DeliveryDelivered, got["deliveries"][0].Status)
	// Raw payload bytes stay out of the JSON.
	assert.NotContains(t, rec.Body.String(), "payload")
	db.AssertExpectations(t)
}

// --- Delete ---

func TestWebhookEndpointDelete_EmptyID(t *testing.T) {
	h := newWebhookEndpointHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodDelete, "/webhook-endpoints/", nil)
	r = withChiURLParam(r, "id", "")

	h.Delete(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "missing required ID")
}
