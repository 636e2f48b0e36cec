package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	mw "github.com/leyden/paysandbox/internal/api/middleware"
	"github.com/leyden/paysandbox/internal/api/request"
	"github.com/leyden/paysandbox/internal/api/response"
	"github.com/leyden/paysandbox/internal/core"
)

// AuditLog is one recorded request against the account's resources.
type AuditLog struct {
	ID           int64           `json:"id"`
	APIKeyID     *string         `json:"api_key_id,omitempty"`
	Method       string          `json:"method"`
	Path         string          `json:"path"`
	ResourceType *string         `json:"resource_type,omitempty"`
	ResourceID   *string         `json:"resource_id,omitempty"`
	StatusCode   int             `json:"status_code"`
	RequestBody  json.RawMessage `json:"request_body,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type Audit struct {
	db core.DB
}

func NewAudit(db core.DB) *Audit {
	return &Audit{db: db}
}

// List godoc
//
//	@Summary		List audit log entries
//	@Description	Returns the account's audit trail, newest first. Supports filtering by resource_type, HTTP method (action), and date range (date_from/date_to). Entries made with the account's API keys carry the acting key's ID.
//	@Tags			Audit Logs
//	@Security		SessionAuth
//	@Param			cursor			query		string	false	"Pagination cursor"
//	@Param			limit			query		int		false	"Page size (default 50)"
//	@Param			search			query		string	false	"Search in resource_type or method"
//	@Param			resource_type	query		string	false	"Filter by resource type"
//	@Param			action			query		string	false	"Filter by HTTP method"
//	@Param			date_from		query		string	false	"Filter by start date"
//	@Param			date_to			query		string	false	"Filter by end date"
//	@Success		200				{object}	response.PaginatedResponse{items=[]handler.AuditLog}
//	@Failure		400				{object}	response.ErrorResponse
//	@Failure		401				{object}	response.ErrorResponse
//	@Failure		500				{object}	response.ErrorResponse
//	@Router			/audit-logs [get]
func (h *Audit) List(w http.ResponseWriter, r *http.Request) {
	claims := mw.GetSession(r.Context())
	if claims == nil {
		response.WriteError(w, http.StatusUnauthorized, "missing session token")
		return
	}

	params := request.ParseListParams(r, "created_at")

	query := `SELECT id, api_key_id, method, path, resource_type, resource_id, status_code, request_body, created_at
              FROM audit_logs WHERE account_id = $1`
	args := []any{claims.Subject}
	argIdx := 2

	if params.Search != "" {
		query += fmt.Sprintf(` AND (resource_type ILIKE $%d OR method ILIKE $%d)`, argIdx, argIdx+1)
		args = append(args, "%"+params.Search+"%", "%"+params.Search+"%")
		argIdx += 2
	}
	if rt := r.URL.Query().Get("resource_type"); rt != "" {
		query += fmt.Sprintf(` AND resource_type = $%d`, argIdx)
		args = append(args, rt)
		argIdx++
	}
	if action := r.URL.Query().Get("action"); action != "" {
		query += fmt.Sprintf(` AND method = $%d`, argIdx)
		args = append(args, action)
		argIdx++
	}
	if from := r.URL.Query().Get("date_from"); from != "" {
		query += fmt.Sprintf(` AND created_at >= $%d`, argIdx)
		args = append(args, from)
		argIdx++
	}
	if to := r.URL.Query().Get("date_to"); to != "" {
		query += fmt.Sprintf(` AND created_at <= $%d`, argIdx)
		args = append(args, to)
		argIdx++
	}

	// Rows are returned newest first, so the cursor walks ids downward.
	if params.Cursor != "" {
		cursor, err := strconv.ParseInt(params.Cursor, 10, 64)
		if err != nil {
			response.WriteError(w, http.StatusBadRequest, "invalid cursor")
			return
		}
		query += fmt.Sprintf(` AND id < $%d`, argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d`, argIdx)
	args = append(args, params.Limit+1)

	rows, err := h.db.Query(r.Context(), query, args...)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer rows.Close()

	var logs []AuditLog
	for rows.Next() {
		var l AuditLog
		if err := rows.Scan(&l.ID, &l.APIKeyID, &l.Method, &l.Path, &l.ResourceType, &l.ResourceID, &l.StatusCode, &l.RequestBody, &l.CreatedAt); err != nil {
			response.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		logs = append(logs, l)
	}

	hasMore := len(logs) > params.Limit
	if hasMore {
		logs = logs[:params.Limit]
	}
	var nextCursor string
	if hasMore && len(logs) > 0 {
		nextCursor = strconv.FormatInt(logs[len(logs)-1].ID, 10)
	}

	response.WritePaginated(w, http.StatusOK, logs, nextCursor, hasMore)
}
