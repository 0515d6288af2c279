package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/faculty-auth/middleware"
	"github.com/upb/faculty-auth/models"
	"github.com/upb/faculty-auth/repositories/memory"
	"github.com/upb/faculty-auth/tokens"
	"go.uber.org/zap"
)

type failingAuditLister struct{}

func (failingAuditLister) ListByPrincipal(context.Context, uuid.UUID, int, int) ([]*models.AuditLog, error) {
	return nil, errors.New("connection reset")
}

func activityRequest(subject, query string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me/activity"+query, nil)
	if subject == "" {
		return req
	}
	claims := &tokens.Claims{
		Role:             models.RoleProfessor,
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
	}
	return req.WithContext(middleware.WithClaims(req.Context(), claims))
}

func TestActivityHandler_HandleMyActivity(t *testing.T) {
	ctx := context.Background()
	me := uuid.New()
	faculty := uuid.New()
	repo := memory.NewAuditRepository()

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for i, action := range []models.AuditAction{models.AuditActionLoginSucceeded, models.AuditActionTokenRefreshed, models.AuditActionLogout} {
		log := models.NewAuditLog(action, "principal").WithPrincipal(me, faculty)
		log.Timestamp = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Insert(ctx, log))
	}
	require.NoError(t, repo.Insert(ctx, models.NewAuditLog(models.AuditActionLoginSucceeded, "principal").WithPrincipal(uuid.New(), faculty)))

	handler := NewActivityHandler(repo, zap.NewNop())

	t.Run("lists only the caller's events newest first", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.HandleMyActivity(w, activityRequest(me.String(), ""))

		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Data ActivityResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Data.Events, 3)
		assert.Equal(t, models.AuditActionLogout, body.Data.Events[0].Action)
		assert.Equal(t, defaultActivityLimit, body.Data.Limit)
	})

	t.Run("limit is capped", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.HandleMyActivity(w, activityRequest(me.String(), "?limit=1000&offset=1"))

		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Data ActivityResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, maxActivityLimit, body.Data.Limit)
		assert.Len(t, body.Data.Events, 2)
	})

	t.Run("invalid paging", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.HandleMyActivity(w, activityRequest(me.String(), "?offset=-1"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("no claims", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.HandleMyActivity(w, activityRequest("", ""))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("repository failure is not leaked", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewActivityHandler(failingAuditLister{}, zap.NewNop()).HandleMyActivity(w, activityRequest(me.String(), ""))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "connection reset")
	})
}
