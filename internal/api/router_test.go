package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jstittsworth/bracket-optimizer/internal/api/middleware"
	"github.com/jstittsworth/bracket-optimizer/internal/models"
	"github.com/jstittsworth/bracket-optimizer/internal/selector"
	"github.com/jstittsworth/bracket-optimizer/internal/services"
	"github.com/jstittsworth/bracket-optimizer/pkg/config"
	"github.com/jstittsworth/bracket-optimizer/pkg/database"
	"github.com/jstittsworth/bracket-optimizer/pkg/utils"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

type APITestSuite struct {
	suite.Suite
	db     *database.DB
	hub    *services.WebSocketHub
	cfg    *config.Config
	router *gin.Engine
}

func (s *APITestSuite) SetupTest() {
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	s.Require().NoError(err)
	sqlDB, err := gormDB.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)

	s.db = &database.DB{DB: gormDB}
	s.Require().NoError(s.db.AutoMigrate(&models.TeamForecast{}, &models.SelectionRun{}))

	s.cfg = &config.Config{
		JWTSecret:        testSecret,
		CorsOrigins:      []string{"http://localhost:5173"},
		Gender:           "mens",
		MinFirstRoundWin: 0.8,
		BoundSlack:       selector.DefaultSlack,
		MaxDay:           9,
		PairDays:         []int{0, 1},
		DayRounds:        []int{2, 2, 3, 3, 4, 4, 5, 5, 6, 7},
		SearchTimeout:    20 * time.Second,
		RateLimitRPS:     100,
		RateLimitBurst:   100,
	}
	s.router = s.newRouter()
}

func (s *APITestSuite) newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	s.hub = services.NewWebSocketHub()
	cache := services.NewCacheService(nil, 0, nil)
	store := services.NewForecastStore(s.db)
	return NewRouter(Dependencies{
		DB:         s.db,
		Cache:      cache,
		Hub:        s.hub,
		Forecasts:  store,
		Selections: services.NewSelectionService(s.db, store, cache, s.hub, s.cfg),
		Config:     s.cfg,
	})
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

func (s *APITestSuite) token() string {
	claims := middleware.Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "importer",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	s.Require().NoError(err)
	return signed
}

func (s *APITestSuite) do(method, path string, body interface{}, authorized bool) (*httptest.ResponseRecorder, utils.Response) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authorized {
		req.Header.Set("Authorization", "Bearer "+s.token())
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp utils.Response
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func fieldRows(date string) []models.TeamForecast {
	var rows []models.TeamForecast
	for _, region := range []string{"South", "West", "Midwest", "East"} {
		for seed := 1; seed <= 16; seed++ {
			p := 1 - float64(seed)/17
			rows = append(rows, models.TeamForecast{
				ForecastDate: date, Gender: "mens",
				TeamName: fmt.Sprintf("%s %d", region, seed), TeamRegion: region, TeamSeed: fmt.Sprint(seed),
				Rd1Win: 1, Rd2Win: p, Rd3Win: p * 0.75, Rd4Win: p * 0.5,
				Rd5Win: p * 0.3, Rd6Win: p * 0.2, Rd7Win: p * 0.1,
			})
		}
	}
	return rows
}

func (s *APITestSuite) importField(date string) {
	w, resp := s.do(http.MethodPost, "/api/v1/forecasts/import", gin.H{"forecasts": fieldRows(date)}, true)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	s.True(resp.Success)
}

func (s *APITestSuite) TestHealth() {
	w, _ := s.do(http.MethodGet, "/health", nil, false)
	s.Equal(http.StatusOK, w.Code)

	var body map[string]interface{}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal("ok", body["status"])
	s.Equal("disabled", body["cache"])
}

func (s *APITestSuite) TestImportRequiresToken() {
	w, resp := s.do(http.MethodPost, "/api/v1/forecasts/import", gin.H{"forecasts": fieldRows("2018-03-13")}, false)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal(utils.ErrCodeUnauthorized, resp.Error.Code)
}

func (s *APITestSuite) TestImportRejectsBadRows() {
	rows := fieldRows("2018-03-13")
	rows[3].Rd4Win = 1.5
	w, resp := s.do(http.MethodPost, "/api/v1/forecasts/import", gin.H{"forecasts": rows}, true)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal(utils.ErrCodeValidation, resp.Error.Code)

	w, _ = s.do(http.MethodPost, "/api/v1/forecasts/import", gin.H{"forecasts": []models.TeamForecast{}}, true)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *APITestSuite) TestImportAndListDates() {
	s.importField("2018-03-13")
	s.importField("2018-03-15")

	w, resp := s.do(http.MethodGet, "/api/v1/forecasts/dates", nil, false)
	s.Equal(http.StatusOK, w.Code)
	s.Equal([]interface{}{"2018-03-15", "2018-03-13"}, resp.Data)
}

func (s *APITestSuite) TestRunSelection() {
	s.importField("2018-03-13")

	w, resp := s.do(http.MethodPost, "/api/v1/selections", gin.H{"forecast_date": "2018-03-13"}, false)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.True(resp.Success)

	var run services.SelectionResponse
	s.decode(resp.Data, &run)
	s.True(run.Feasible)
	s.True(run.Complete)
	s.Len(run.Picks, 12)
	s.Require().NotNil(run.Value)

	w, resp = s.do(http.MethodGet, "/api/v1/selections/"+run.RunID, nil, false)
	s.Equal(http.StatusOK, w.Code)
	var stored services.SelectionResponse
	s.decode(resp.Data, &stored)
	s.Equal(run.Picks, stored.Picks)

	w, resp = s.do(http.MethodGet, "/api/v1/selections?forecast_date=2018-03-13", nil, false)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(int64(1), resp.Meta.Total)
}

func (s *APITestSuite) TestRunSelectionWithEmptyBodyUsesLatestSnapshot() {
	s.importField("2018-03-13")
	s.cfg.MaxDay = 1

	w, resp := s.do(http.MethodPost, "/api/v1/selections", nil, false)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var run services.SelectionResponse
	s.decode(resp.Data, &run)
	s.Equal("2018-03-13", run.ForecastDate)
	s.Len(run.Picks, 4)
}

func (s *APITestSuite) TestRunSelectionInfeasible() {
	s.importField("2018-03-13")

	w, resp := s.do(http.MethodPost, "/api/v1/selections", gin.H{"forecast_date": "2018-03-13", "min_first_round_win": 0.85}, false)
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal(utils.ErrCodeInfeasible, resp.Error.Code)

	var run services.SelectionResponse
	s.decode(resp.Data, &run)
	s.False(run.Feasible)
	s.Empty(run.Picks)
}

func (s *APITestSuite) TestRunSelectionErrors() {
	w, resp := s.do(http.MethodPost, "/api/v1/selections", gin.H{}, false)
	s.Equal(http.StatusNotFound, w.Code, "no snapshot stored yet")
	s.Equal(utils.ErrCodeNotFound, resp.Error.Code)

	s.importField("2018-03-13")

	w, resp = s.do(http.MethodPost, "/api/v1/selections", gin.H{"max_day": 12}, false)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal(utils.ErrCodeValidation, resp.Error.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/selections/does-not-exist", nil, false)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *APITestSuite) TestRateLimit() {
	s.cfg.RateLimitRPS = 0.001
	s.cfg.RateLimitBurst = 1
	s.router = s.newRouter()

	w, _ := s.do(http.MethodPost, "/api/v1/selections", gin.H{}, false)
	s.Equal(http.StatusNotFound, w.Code)

	w, resp := s.do(http.MethodPost, "/api/v1/selections", gin.H{}, false)
	s.Equal(http.StatusTooManyRequests, w.Code)
	s.Equal(utils.ErrCodeRateLimited, resp.Error.Code)
}

func (s *APITestSuite) TestCORSPreflight() {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/selections", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusNoContent, w.Code)
	s.Equal("http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/selections", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Empty(w.Header().Get("Access-Control-Allow-Origin"))
}

func (s *APITestSuite) decode(data interface{}, dest interface{}) {
	raw, err := json.Marshal(data)
	s.Require().NoError(err)
	s.Require().NoError(json.Unmarshal(raw, dest))
}
