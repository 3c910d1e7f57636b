package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/castaways/internal/brain"
	"github.com/talgya/castaways/internal/engine"
	"github.com/talgya/castaways/internal/persistence"
	"github.com/talgya/castaways/internal/schema"
)

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(t *testing.T, ctx *app.RequestContext) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	return body
}

func TestCORSMiddleware(t *testing.T) {
	mw := corsMiddleware([]string{"https://isle.example"})

	ctx := &app.RequestContext{}
	ctx.Request.Header.Set("Origin", "https://isle.example")
	ctx.Request.Header.SetMethod(consts.MethodOptions)
	mw(context.Background(), ctx)
	assert.Equal(t, consts.StatusNoContent, ctx.Response.StatusCode())
	assert.Equal(t, "https://isle.example", string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")))
	assert.True(t, ctx.IsAborted())

	ctx = &app.RequestContext{}
	ctx.Request.Header.Set("Origin", "https://elsewhere.example")
	ctx.Request.Header.SetMethod(consts.MethodGet)
	mw(context.Background(), ctx)
	assert.Empty(t, ctx.Response.Header.Peek("Access-Control-Allow-Origin"))
	assert.False(t, ctx.IsAborted())

	ctx = &app.RequestContext{}
	ctx.Request.Header.Set("Origin", "http://localhost:5173")
	mw(context.Background(), ctx)
	assert.Equal(t, "http://localhost:5173", string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")))
}

func TestAdminOnly(t *testing.T) {
	s := newTestServer(t)

	ctx := &app.RequestContext{}
	s.adminOnly()(context.Background(), ctx)
	assert.Equal(t, consts.StatusForbidden, ctx.Response.StatusCode())
	assert.Equal(t, "admin_disabled", decodeError(t, ctx).Error.Code)

	s.Config.Server.AdminKey = "hunter2"

	ctx = &app.RequestContext{}
	ctx.Request.Header.Set("Authorization", "Bearer wrong")
	s.adminOnly()(context.Background(), ctx)
	assert.Equal(t, consts.StatusUnauthorized, ctx.Response.StatusCode())
	assert.True(t, ctx.IsAborted())

	ctx = &app.RequestContext{}
	ctx.Request.Header.Set("Authorization", "hunter2")
	s.adminOnly()(context.Background(), ctx)
	assert.Equal(t, consts.StatusUnauthorized, ctx.Response.StatusCode())

	ctx = &app.RequestContext{}
	ctx.Request.Header.Set("Authorization", "Bearer hunter2")
	s.adminOnly()(context.Background(), ctx)
	assert.Equal(t, consts.StatusOK, ctx.Response.StatusCode())
	assert.False(t, ctx.IsAborted())
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("x: %w", schema.ErrInvalid), consts.StatusBadRequest, "invalid_request"},
		{fmt.Errorf("x: %w", engine.ErrInvalidParams), consts.StatusBadRequest, "invalid_request"},
		{brain.ErrInvalidTrainConfig, consts.StatusBadRequest, "invalid_request"},
		{ErrTooManyGames, consts.StatusBadRequest, "too_many_games"},
		{ErrUnauthorized, consts.StatusUnauthorized, "unauthorized"},
		{ErrAdminDisabled, consts.StatusForbidden, "admin_disabled"},
		{fmt.Errorf("run x: %w", persistence.ErrNotFound), consts.StatusNotFound, "not_found"},
		{ErrTrainingBusy, consts.StatusConflict, "training_busy"},
		{engine.ErrDayLimit, consts.StatusUnprocessableEntity, "day_limit"},
		{ErrNoHistory, consts.StatusServiceUnavailable, "history_disabled"},
		{context.Canceled, consts.StatusServiceUnavailable, "cancelled"},
		{brain.ErrBadPolicy, consts.StatusInternalServerError, "bad_policy"},
		{errors.New("boom"), consts.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		status, code := errorStatus(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestWriteErrorRecordsFailure(t *testing.T) {
	s := newTestServer(t)
	ctx := &app.RequestContext{}
	s.writeError(ctx, ErrTrainingBusy)

	assert.Equal(t, consts.StatusConflict, ctx.Response.StatusCode())
	body := decodeError(t, ctx)
	assert.Equal(t, "training_busy", body.Error.Code)
	assert.Equal(t, ErrTrainingBusy.Error(), body.Error.Message)
	assert.Equal(t, 1, s.Metrics.Snapshot().Failures["training_busy"])
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.5, 2)
	t.Cleanup(rl.Stop)
	now := time.Unix(1_000, 0)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.Equal(t, 2, rl.RetryAfter("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"), "buckets are per client")

	now = now.Add(2 * time.Second)
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"))

	now = now.Add(time.Hour)
	rl.cleanup()
	rl.mu.Lock()
	assert.Empty(t, rl.buckets)
	rl.mu.Unlock()
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(1.0/60, 1)
	t.Cleanup(rl.Stop)
	mw := rl.Middleware()

	ctx := &app.RequestContext{}
	ctx.Request.Header.Set("X-Forwarded-For", "9.9.9.9, 10.0.0.1")
	mw(context.Background(), ctx)
	assert.False(t, ctx.IsAborted())

	ctx = &app.RequestContext{}
	ctx.Request.Header.Set("X-Forwarded-For", "9.9.9.9")
	mw(context.Background(), ctx)
	assert.True(t, ctx.IsAborted())
	assert.Equal(t, consts.StatusTooManyRequests, ctx.Response.StatusCode())
	assert.Equal(t, "60", string(ctx.Response.Header.Peek("Retry-After")))
	assert.Equal(t, "rate_limited", decodeError(t, ctx).Error.Code)
}
