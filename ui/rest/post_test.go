package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AzielCF/postpilot/infrastructure/social"
	"github.com/AzielCF/postpilot/scheduling/application"
	"github.com/AzielCF/postpilot/scheduling/domain/common"
	"github.com/AzielCF/postpilot/scheduling/domain/platform"
	"github.com/AzielCF/postpilot/scheduling/repository"
	"github.com/AzielCF/postpilot/ui/rest/middleware"
	"github.com/AzielCF/postpilot/usecase"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Results json.RawMessage `json:"results"`
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	repo := repository.NewLedgerGormRepository(db)
	require.NoError(t, repo.Init(context.Background()))

	ledger := application.NewLedger(repo, nil, common.HorizonPolicy{Kind: common.HorizonByDays, Value: 30})

	var publishers []application.Publisher
	for _, pf := range platform.All() {
		publishers = append(publishers, social.NewStubPublisher(pf))
	}
	dispatcher := application.NewDispatcher(repo, publishers, nil, time.Second, nil)

	service := usecase.NewPostService(ledger, dispatcher, nil)

	app := fiber.New()
	app.Use(middleware.Recovery())
	InitRestPost(app.Group("/api"), service)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func createPayload(recurring bool) map[string]any {
	payload := map[string]any{
		"account_id":       "acc-1",
		"content":          "Launch day is coming",
		"platforms":        []string{"twitter"},
		"first_occurrence": time.Now().UTC().Add(time.Hour).Format(time.RFC3339),
	}
	if recurring {
		payload["recurrence"] = map[string]any{"frequency": "daily"}
		payload["horizon_kind"] = "count"
		payload["horizon_value"] = 5
	}
	return payload
}

func TestRestCreatePostMaterializesInstances(t *testing.T) {
	app := newTestApp(t)

	status, env := doJSON(t, app, http.MethodPost, "/api/posts", createPayload(true))
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "CREATED", env.Code)

	var post common.ScheduledPost
	require.NoError(t, json.Unmarshal(env.Results, &post))
	require.NotEmpty(t, post.ID)
	assert.Equal(t, 5, post.EmittedCount)

	status, env = doJSON(t, app, http.MethodGet, "/api/posts/"+post.ID+"/instances?account_id=acc-1", nil)
	require.Equal(t, http.StatusOK, status)

	var instances []common.PostInstance
	require.NoError(t, json.Unmarshal(env.Results, &instances))
	assert.Len(t, instances, 5)
	for _, instance := range instances {
		assert.Equal(t, common.InstanceStateScheduled, instance.State)
		assert.Equal(t, "Launch day is coming", instance.Content)
	}
}

func TestRestCreatePostRejectsUnknownPlatform(t *testing.T) {
	app := newTestApp(t)

	payload := createPayload(false)
	payload["platforms"] = []string{"myspace"}

	status, env := doJSON(t, app, http.MethodPost, "/api/posts", payload)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", env.Code)
}

func TestRestRequiresAccountID(t *testing.T) {
	app := newTestApp(t)

	status, env := doJSON(t, app, http.MethodGet, "/api/posts", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", env.Code)
}

func TestRestCancelInstanceConflictsOnSecondCall(t *testing.T) {
	app := newTestApp(t)

	_, env := doJSON(t, app, http.MethodPost, "/api/posts", createPayload(false))
	var post common.ScheduledPost
	require.NoError(t, json.Unmarshal(env.Results, &post))

	_, env = doJSON(t, app, http.MethodGet, "/api/posts/"+post.ID+"/instances?account_id=acc-1", nil)
	var instances []common.PostInstance
	require.NoError(t, json.Unmarshal(env.Results, &instances))
	require.Len(t, instances, 1)

	status, env := doJSON(t, app, http.MethodPost, "/api/instances/"+instances[0].ID+"/cancel?account_id=acc-1", nil)
	require.Equal(t, http.StatusOK, status)

	var cancelled common.PostInstance
	require.NoError(t, json.Unmarshal(env.Results, &cancelled))
	assert.Equal(t, common.InstanceStateCancelled, cancelled.State)

	status, env = doJSON(t, app, http.MethodPost, "/api/instances/"+instances[0].ID+"/cancel?account_id=acc-1", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INVALID_TRANSITION", env.Code)
}

func TestRestDeletePostAllRemovesEverything(t *testing.T) {
	app := newTestApp(t)

	_, env := doJSON(t, app, http.MethodPost, "/api/posts", createPayload(true))
	var post common.ScheduledPost
	require.NoError(t, json.Unmarshal(env.Results, &post))

	status, _ := doJSON(t, app, http.MethodDelete, "/api/posts/"+post.ID+"?account_id=acc-1&scope=all", nil)
	require.Equal(t, http.StatusOK, status)

	status, env = doJSON(t, app, http.MethodGet, "/api/posts/"+post.ID+"?account_id=acc-1", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND_ERROR", env.Code)
}

func TestRestEditPostContent(t *testing.T) {
	app := newTestApp(t)

	_, env := doJSON(t, app, http.MethodPost, "/api/posts", createPayload(true))
	var post common.ScheduledPost
	require.NoError(t, json.Unmarshal(env.Results, &post))

	status, env := doJSON(t, app, http.MethodPut, "/api/posts/"+post.ID, map[string]any{
		"account_id": "acc-1",
		"content":    "Rescheduled launch",
	})
	require.Equal(t, http.StatusOK, status)

	var edited common.ScheduledPost
	require.NoError(t, json.Unmarshal(env.Results, &edited))
	assert.Equal(t, "Rescheduled launch", edited.Content)

	_, env = doJSON(t, app, http.MethodGet, "/api/posts/"+post.ID+"/instances?account_id=acc-1", nil)
	var instances []common.PostInstance
	require.NoError(t, json.Unmarshal(env.Results, &instances))
	for _, instance := range instances {
		assert.Equal(t, "Rescheduled launch", instance.Content)
	}
}
