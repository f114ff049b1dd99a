package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"secretsanta/internal/blacklist"
	"secretsanta/internal/exchange"
	jwttoken "secretsanta/internal/jwt_token"
	"secretsanta/internal/kv"
	"secretsanta/internal/lifecycle"
	"secretsanta/internal/matching"
	"secretsanta/internal/messaging"
	"secretsanta/internal/participant"
)

const owner = "1000"

type HandlerSuite struct {
	suite.Suite
	jwt    *jwttoken.JWTService
	router http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	store := kv.NewInMemory()
	machine, err := lifecycle.New(store)
	s.Require().NoError(err)
	dir, err := participant.NewDirectory(store, machine)
	s.Require().NoError(err)
	engine, err := matching.NewEngine(matching.NewTSP(16), matching.WithSeed(1))
	s.Require().NoError(err)

	svc, err := exchange.New(owner, exchange.Deps{
		Phases:      machine,
		Directory:   dir,
		Constraints: blacklist.Empty(),
		Matcher:     engine,
		Messenger:   messaging.NewLogMessenger(nil),
	})
	s.Require().NoError(err)

	s.jwt = jwttoken.NewJWTService("test-key", "secretsanta")
	r := chi.NewRouter()
	New(svc, s.jwt, nil, 5*time.Second).Register(r)
	s.router = r
}

func (s *HandlerSuite) do(caller, method, path string, body any) *httptest.ResponseRecorder {
	s.T().Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		token, err := s.jwt.GenerateCallerToken(caller, time.Hour)
		s.Require().NoError(err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) errorCode(rec *httptest.ResponseRecorder) string {
	s.T().Helper()
	var body map[string]string
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
	return body["error"]
}

func (s *HandlerSuite) TestAuthentication() {
	s.Run("missing token", func() {
		rec := s.do("", http.MethodGet, "/admin/status", nil)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("token signed with another key", func() {
		other := jwttoken.NewJWTService("other-key", "secretsanta")
		token, err := other.GenerateCallerToken(owner, time.Hour)
		s.Require().NoError(err)
		req := httptest.NewRequest(http.MethodGet, "/admin/status", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("non-owner on admin route", func() {
		rec := s.do("42", http.MethodPost, "/admin/registration/open", nil)
		s.Equal(http.StatusForbidden, rec.Code)
		s.Equal("forbidden", s.errorCode(rec))
	})
}

func (s *HandlerSuite) TestErrorMapping() {
	s.Run("register before registration opens is a conflict", func() {
		rec := s.do("42", http.MethodPost, "/participants/registration", registerRequest{Description: "tea"})
		s.Equal(http.StatusConflict, rec.Code)
		s.Equal("invalid_phase_transition", s.errorCode(rec))
	})

	s.Run("malformed body", func() {
		rec := s.do("42", http.MethodPost, "/participants/registration", map[string]int{"nope": 1})
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestExchangeFlow() {
	s.Equal(http.StatusNoContent, s.do(owner, http.MethodPost, "/admin/registration/open", nil).Code)

	for _, id := range []string{"1", "2", "3"} {
		rec := s.do(id, http.MethodPost, "/participants/registration", registerRequest{Description: "likes " + id})
		s.Require().Equal(http.StatusCreated, rec.Code)
	}
	rec := s.do("1", http.MethodPost, "/participants/registration", registerRequest{Description: "again"})
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal("already_registered", s.errorCode(rec))

	rec = s.do(owner, http.MethodPost, "/admin/registration/close", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var delivery exchange.Delivery
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&delivery))
	s.Equal(3, delivery.Sent)

	s.Equal(http.StatusNoContent, s.do("1", http.MethodPost, "/participants/registration/confirm", nil).Code)
	s.Equal(http.StatusOK, s.do("2", http.MethodPost, "/inbound/callback", callbackRequest{Data: "confirm"}).Code)

	s.Run("infeasible with two confirmed", func() {
		rec := s.do(owner, http.MethodPost, "/admin/matching/run", nil)
		s.Equal(http.StatusUnprocessableEntity, rec.Code)
		s.Equal("infeasible", s.errorCode(rec))
	})

	s.Equal(http.StatusNoContent, s.do("3", http.MethodPost, "/participants/registration/confirm", nil).Code)

	rec = s.do(owner, http.MethodPost, "/admin/matching/run", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var result exchange.RunResult
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&result))
	s.Len(result.Chain, 3)
	s.True(result.Report.Healthy())

	rec = s.do(owner, http.MethodGet, "/admin/status", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var status exchange.Status
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&status))
	s.Equal(lifecycle.PhaseExchangeActive, status.Phase)
	s.Equal(3, status.Matched)

	s.Equal(http.StatusOK, s.do(owner, http.MethodPost, "/admin/matching/send", nil).Code)

	s.Run("relay", func() {
		rec := s.do("1", http.MethodPost, "/inbound/text", textRequest{Text: "/help"})
		s.Equal(http.StatusNoContent, rec.Code)

		rec = s.do("1", http.MethodPost, "/inbound/text", textRequest{Text: "hi"})
		s.Require().Equal(http.StatusOK, rec.Code)
		var prompt replyResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&prompt))
		s.Len(prompt.Reply.Options, 2)

		rec = s.do("1", http.MethodPost, "/inbound/callback", callbackRequest{Data: "santa"})
		s.Equal(http.StatusOK, rec.Code)

		rec = s.do("1", http.MethodPost, "/inbound/callback", callbackRequest{Data: "nonsense"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("clearing after activation is a conflict", func() {
		rec := s.do(owner, http.MethodDelete, "/admin/matching", nil)
		s.Equal(http.StatusConflict, rec.Code)
	})

	rec = s.do(owner, http.MethodPost, "/admin/broadcast", textRequest{Text: "party at 8"})
	s.Require().Equal(http.StatusOK, rec.Code)
}
