package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func auditScan(id int64, method, path string, status int) func(dest ...any) error {
	return func(dest ...any) error {
		keyID := "key_1"
		resType := "api_key"
		resID := "key_2"
		*(dest[0].(*int64)) = id
		*(dest[1].(**string)) = &keyID
		*(dest[2].(*string)) = method
		*(dest[3].(*string)) = path
		*(dest[4].(**string)) = &resType
		*(dest[5].(**string)) = &resID
		*(dest[6].(*int)) = status
		*(dest[7].(*json.RawMessage)) = json.RawMessage(`{"key_type":"secret"}`)
		*(dest[8].(*time.Time)) = time.Now().Truncate(time.Microsecond)
		return nil
	}
}

func TestAuditList_ReturnsAccountEntries(t *testing.T) {
	db := new(handlerMockDB)
	h := NewAudit(db)

	var gotSQL string
	var gotArgs []any
	rows := newHandlerMockRows(auditScan(12, "POST", "/api/v1/api-keys", 201), auditScan(11, "GET", "/api/v1/me", 200))
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			gotSQL = args.String(1)
			gotArgs = args.Get(2).([]any)
		}).
		Return(rows, nil).Once()

	rec := httptest.NewRecorder()
	r := withSession(newRequest(http.MethodGet, "/audit-logs", nil), testAccountID, "owner@merchant.test")

	h.List(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Items      []AuditLog `json:"items"`
		NextCursor string     `json:"next_cursor"`
		HasMore    bool       `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Items, 2)
	assert.Equal(t, int64(12), got.Items[0].ID)
	assert.Equal(t, "POST", got.Items[0].Method)
	assert.Equal(t, "/api/v1/api-keys", got.Items[0].Path)
	assert.Equal(t, 201, got.Items[0].StatusCode)
	assert.False(t, got.HasMore)

	// Only the caller's own trail is visible.
	assert.Contains(t, gotSQL, "account_id = $1")
	require.NotEmpty(t, gotArgs)
	assert.Equal(t, testAccountID, gotArgs[0])
	db.AssertExpectations(t)
}

func TestAuditList_NoSession(t *testing.T) {
	db := new(handlerMockDB)
	h := NewAudit(db)

	rec := httptest.NewRecorder()
	h.List(rec, newRequest(http.MethodGet, "/audit-logs", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuditList_Filters(t *testing.T) {
	db := new(handlerMockDB)
	h := NewAudit(db)

	var gotSQL string
	var gotArgs []any
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			gotSQL = args.String(1)
			gotArgs = args.Get(2).([]any)
		}).
		Return(newHandlerMockRows(), nil).Once()

	rec := httptest.NewRecorder()
	r := withSession(newRequest(http.MethodGet, "/audit-logs?resource_type=webhook_endpoint&action=DELETE&date_from=2026-01-01", nil), testAccountID, "owner@merchant.test")

	h.List(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, gotSQL, "resource_type = $2")
	assert.Contains(t, gotSQL, "method = $3")
	assert.Contains(t, gotSQL, "created_at >= $4")
	require.Len(t, gotArgs, 5)
	assert.Equal(t, "webhook_endpoint", gotArgs[1])
	assert.Equal(t, "DELETE", gotArgs[2])
	assert.Equal(t, "2026-01-01", gotArgs[3])
}

func TestAuditList_Pagination(t *testing.T) {
	db := new(handlerMockDB)
	h := NewAudit(db)

	rows := newHandlerMockRows(auditScan(20, "GET", "/api/v1/me", 200), auditScan(19, "GET", "/api/v1/me", 200))
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(rows, nil).Once()

	rec := httptest.NewRecorder()
	r := withSession(newRequest(http.MethodGet, "/audit-logs?limit=1", nil), testAccountID, "owner@merchant.test")

	h.List(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Items      []AuditLog `json:"items"`
		NextCursor string     `json:"next_cursor"`
		HasMore    bool       `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Items, 1)
	assert.True(t, got.HasMore)
	assert.Equal(t, "20", got.NextCursor)
}

func TestAuditList_CursorWalksDown(t *testing.T) {
	db := new(handlerMockDB)
	h := NewAudit(db)

	var gotSQL string
	var gotArgs []any
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			gotSQL = args.String(1)
			gotArgs = args.Get(2).([]any)
		}).
		Return(newHandlerMockRows(), nil).Once()

	rec := httptest.NewRecorder()
	r := withSession(newRequest(http.MethodGet, "/audit-logs?cursor=20", nil), testAccountID, "owner@merchant.test")

	h.List(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, gotSQL, "id < $2")
	require.Len(t, gotArgs, 3)
	assert.Equal(t, int64(20), gotArgs[1])
}

func TestAuditList_BadCursor(t *testing.T) {
	db := new(handlerMockDB)
	h := NewAudit(db)

	rec := httptest.NewRecorder()
	r := withSession(newRequest(http.MethodGet, "/audit-logs?cursor=not-a-number", nil), testAccountID, "owner@merchant.test")

	h.List(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
