package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"github.com/bjelicb/kinetix-backend-sub000/internal/api"
	"github.com/bjelicb/kinetix-backend-sub000/internal/dateutil"
	"github.com/bjelicb/kinetix-backend-sub000/internal/domain"
	"github.com/bjelicb/kinetix-backend-sub000/internal/metrics"
	"github.com/bjelicb/kinetix-backend-sub000/internal/repository"
	"github.com/bjelicb/kinetix-backend-sub000/internal/repository/memory"
	"github.com/bjelicb/kinetix-backend-sub000/internal/scheduler"
	"github.com/bjelicb/kinetix-backend-sub000/internal/service"
)

const testPassword = "correct-horse-battery"

type fakeJobs struct {
	report service.JobReport
	err    error
	ran    []string
}

func (f *fakeJobs) RunMissedNow(context.Context) (service.JobReport, error) {
	f.ran = append(f.ran, service.JobMissedWorkouts)
	return f.report, f.err
}

func (f *fakeJobs) RunWeeklyNow(context.Context) (service.JobReport, error) {
	f.ran = append(f.ran, service.JobWeeklyPenalties)
	return f.report, f.err
}

type testServer struct {
	router  *gin.Engine
	users   repository.UserRepository
	auth    service.AuthService
	clients *MockClientService
	jobs    *fakeJobs
	reg     *prometheus.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logrus.SetLevel(logrus.WarnLevel)

	ctrl := gomock.NewController(t)
	users := memory.NewUserRepository()
	clock := dateutil.SystemClock{}
	m, reg := metrics.NewTestManagerAndRegistry()

	ts := &testServer{
		router:  gin.New(),
		users:   users,
		auth:    service.NewAuthService(users, "handler-test-secret", time.Hour, clock),
		clients: NewMockClientService(ctrl),
		jobs:    &fakeJobs{},
		reg:     reg,
	}
	api.SetupRoutes(ts.router, api.Services{
		Auth:    ts.auth,
		Trainer: service.NewTrainerService(users),
		Client:  ts.clients,
		Ledger:  service.NewLedgerService(users, clock, m, "EUR"),
		Jobs:    ts.jobs,
	}, m, reg)
	return ts
}

// login registers a user with the given role and returns a bearer token.
func (ts *testServer) login(t *testing.T, role domain.Role, email string) (string, *domain.User) {
	t.Helper()
	ctx := context.Background()
	if role == domain.RoleAdmin {
		hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
		require.NoError(t, err)
		_, err = ts.users.Create(ctx, &domain.User{Name: "Admin", Email: email, PasswordHash: string(hash), Role: role})
		require.NoError(t, err)
	} else {
		_, err := ts.auth.Register(ctx, "User "+email, email, testPassword, role)
		require.NoError(t, err)
	}
	token, user, err := ts.auth.Login(ctx, email, testPassword)
	require.NoError(t, err)
	return token, user
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestPing(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"pong"}`, rr.Body.String())
}

func TestAuth_RegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name": "Tara", "email": "tara@example.com", "password": testPassword, "role": "trainer",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	user := decode[api.UserResponse](t, rr)
	assert.Equal(t, domain.RoleTrainer, user.Role)
	assert.Nil(t, user.Balance, "trainers carry no balance")

	rr = ts.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name": "Tara", "email": "tara@example.com", "password": testPassword, "role": "trainer",
	})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name": "Root", "email": "root@example.com", "password": testPassword, "role": "admin",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "tara@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "tara@example.com", "password": testPassword})
	require.Equal(t, http.StatusOK, rr.Code)
	login := decode[api.LoginResponse](t, rr)
	assert.NotEmpty(t, login.Token)

	rr = ts.do(t, http.MethodGet, "/api/v1/me", login.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"userId":"`+user.ID+`","role":"trainer"}`, rr.Body.String())
}

func TestAuthMiddleware(t *testing.T) {
	ts := newTestServer(t)

	testCases := []struct {
		name           string
		header         string
		expectedStatus int
	}{
		{name: "MissingHeader", expectedStatus: http.StatusUnauthorized},
		{name: "NotBearer", header: "Basic abc", expectedStatus: http.StatusUnauthorized},
		{name: "GarbageToken", header: "Bearer not-a-jwt", expectedStatus: http.StatusUnauthorized},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			ts.router.ServeHTTP(rr, req)
			assert.Equal(t, tc.expectedStatus, rr.Code)
		})
	}
}

func TestRoleMiddleware(t *testing.T) {
	ts := newTestServer(t)
	clientToken, _ := ts.login(t, domain.RoleClient, "client@example.com")
	trainerToken, _ := ts.login(t, domain.RoleTrainer, "trainer@example.com")

	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, "/api/v1/trainer/clients", clientToken, nil).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, "/api/v1/client/balance", trainerToken, nil).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPost, "/api/v1/admin/jobs/missed-workouts", trainerToken, nil).Code)
}

func TestTrainer_Roster(t *testing.T) {
	ts := newTestServer(t)
	trainerToken, _ := ts.login(t, domain.RoleTrainer, "trainer@example.com")
	otherToken, _ := ts.login(t, domain.RoleTrainer, "other@example.com")
	_, client := ts.login(t, domain.RoleClient, "client@example.com")

	rr := ts.do(t, http.MethodPost, "/api/v1/trainer/clients", trainerToken, gin.H{"email": "client@example.com"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	added := decode[api.UserResponse](t, rr)
	require.NotNil(t, added.Balance)
	assert.Zero(t, *added.Balance)

	rr = ts.do(t, http.MethodPost, "/api/v1/trainer/clients", otherToken, gin.H{"email": "client@example.com"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/v1/trainer/clients", trainerToken, gin.H{"email": "ghost@example.com"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.do(t, http.MethodGet, "/api/v1/trainer/clients", trainerToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]api.UserResponse](t, rr), 1)

	rr = ts.do(t, http.MethodGet, "/api/v1/trainer/clients/"+client.ID.Hex(), otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.do(t, http.MethodGet, "/api/v1/trainer/clients/not-an-id", trainerToken, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTrainer_ClearBalance(t *testing.T) {
	ts := newTestServer(t)
	trainerToken, trainer := ts.login(t, domain.RoleTrainer, "trainer@example.com")
	adminToken, _ := ts.login(t, domain.RoleAdmin, "admin@example.com")
	_, client := ts.login(t, domain.RoleClient, "client@example.com")
	require.NoError(t, ts.users.SetTrainerForClient(context.Background(), client.ID, trainer.ID))

	rr := ts.do(t, http.MethodPost, "/api/v1/admin/clients/"+client.ID.Hex()+"/penalties", adminToken, gin.H{"amount": 7.5, "reason": "late check-in"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	charged := decode[api.UserResponse](t, rr)
	require.NotNil(t, charged.Balance)
	assert.Equal(t, 7.5, *charged.Balance)

	rr = ts.do(t, http.MethodPost, "/api/v1/admin/clients/"+client.ID.Hex()+"/penalties", adminToken, gin.H{"amount": -1, "reason": "x"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/v1/trainer/clients/"+client.ID.Hex()+"/balance/clear", trainerToken, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	cleared := decode[api.UserResponse](t, rr)
	assert.Zero(t, *cleared.Balance)
	assert.Zero(t, *cleared.MonthlyBalance)
}

func TestClient_UnlockAndNextWeek(t *testing.T) {
	ts := newTestServer(t)
	token, client := ts.login(t, domain.RoleClient, "client@example.com")
	planID := primitive.NewObjectID()

	ts.clients.EXPECT().
		GetUnlockStatus(gomock.Any(), client.ID).
		Return(&service.UnlockStatus{CanUnlock: true, CurrentPlanID: &planID, NextPlanAssigned: false}, nil)

	rr := ts.do(t, http.MethodGet, "/api/v1/client/unlock-status", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	status := decode[service.UnlockStatus](t, rr)
	assert.True(t, status.CanUnlock)
	assert.Equal(t, &planID, status.CurrentPlanID)

	ts.clients.EXPECT().CheckMonthlyPaywall(gomock.Any(), client.ID).Return(true, nil).Times(2)
	ts.clients.EXPECT().
		RequestNextWeek(gomock.Any(), client.ID).
		Return(nil, service.ErrNextPlanNotAssigned)
	ts.clients.EXPECT().
		RequestNextWeek(gomock.Any(), client.ID).
		DoAndReturn(func(_ context.Context, _ primitive.ObjectID) (*service.NextWeekResult, error) {
			return &service.NextWeekResult{CurrentPlanID: planID, PlanStartDate: "2024-03-11", Charged: 20, Balance: 20, MonthlyBalance: 20}, nil
		})

	rr = ts.do(t, http.MethodPost, "/api/v1/client/next-week", token, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "next week")

	rr = ts.do(t, http.MethodPost, "/api/v1/client/next-week", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	result := decode[service.NextWeekResult](t, rr)
	assert.Equal(t, 20.0, result.Charged)
	assert.Equal(t, "2024-03-11", result.PlanStartDate)
}

func TestClient_Paywall(t *testing.T) {
	ts := newTestServer(t)
	token, client := ts.login(t, domain.RoleClient, "client@example.com")

	ts.clients.EXPECT().CheckMonthlyPaywall(gomock.Any(), client.ID).Return(false, nil).Times(3)

	for _, path := range []string{
		"/api/v1/client/next-week",
		"/api/v1/client/logs/2024-03-04/start",
		"/api/v1/client/weigh-ins",
	} {
		rr := ts.do(t, http.MethodPost, path, token, gin.H{"weightKg": 80})
		assert.Equal(t, http.StatusPaymentRequired, rr.Code, path)
	}

	// Reads stay open.
	ts.clients.EXPECT().
		GetBalance(gomock.Any(), client.ID).
		Return(&service.BalanceSummary{Balance: 40, MonthlyBalance: 40, Currency: "EUR"}, nil)
	rr := ts.do(t, http.MethodGet, "/api/v1/client/balance", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 40.0, decode[service.BalanceSummary](t, rr).Balance)
}

func TestClient_PaywallError(t *testing.T) {
	ts := newTestServer(t)
	token, client := ts.login(t, domain.RoleClient, "client@example.com")

	ts.clients.EXPECT().CheckMonthlyPaywall(gomock.Any(), client.ID).Return(false, errors.New("mongo unavailable"))

	rr := ts.do(t, http.MethodPost, "/api/v1/client/next-week", token, nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "mongo", "internal errors are not leaked")
}

func TestAdmin_Jobs(t *testing.T) {
	ts := newTestServer(t)
	adminToken, _ := ts.login(t, domain.RoleAdmin, "admin@example.com")

	ts.jobs.report = service.JobReport{Job: service.JobWeeklyPenalties, Processed: 4, Failed: 1, Err: errors.New("client x: boom")}
	rr := ts.do(t, http.MethodPost, "/api/v1/admin/jobs/weekly-penalties", adminToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode[map[string]any](t, rr)
	assert.Equal(t, float64(4), body["processed"])
	assert.Equal(t, "client x: boom", body["error"])

	ts.jobs.err = scheduler.ErrJobRunning
	rr = ts.do(t, http.MethodPost, "/api/v1/admin/jobs/missed-workouts", adminToken, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	assert.Equal(t, []string{service.JobWeeklyPenalties, service.JobMissedWorkouts}, ts.jobs.ran)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodGet, "/ping", "", nil)

	rr := ts.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "kinetix_test_server_")
}
