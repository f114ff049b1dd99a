package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"secretsanta/internal/exchange"
	"secretsanta/internal/messaging"
	"secretsanta/internal/participant"
	"secretsanta/internal/platform/middleware"
	dErrors "secretsanta/pkg/domain-errors"
	"secretsanta/pkg/platform/httputil"
	"secretsanta/pkg/requestcontext"
)

// Service defines the exchange operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, description string) (*participant.Participant, error)
	Confirm(ctx context.Context) error
	Withdraw(ctx context.Context) error

	HandleText(ctx context.Context, text string) (*messaging.Message, error)
	HandlePhoto(ctx context.Context, photoID, caption string) (*messaging.Message, error)
	HandleCallback(ctx context.Context, data string) (*messaging.Message, error)

	OpenRegistration(ctx context.Context) error
	CloseRegistration(ctx context.Context) (exchange.Delivery, error)
	CancelPending(ctx context.Context) ([]string, error)
	RunMatching(ctx context.Context) (*exchange.RunResult, error)
	ClearAssignments(ctx context.Context) error
	SendResults(ctx context.Context) (exchange.Delivery, error)
	Status(ctx context.Context) (*exchange.Status, error)
	Broadcast(ctx context.Context, text string) (exchange.Delivery, error)
}

// Handler serves the exchange API.
type Handler struct {
	service   Service
	validator middleware.CallerValidator
	logger    *slog.Logger
	timeout   time.Duration
}

// New creates a Handler. timeout bounds every request, matching runs
// included.
func New(service Service, validator middleware.CallerValidator, logger *slog.Logger, timeout time.Duration) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Handler{service: service, validator: validator, logger: logger, timeout: timeout}
}

// Register mounts the exchange routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(chimw.Recoverer)
		r.Use(middleware.RequestContext)
		r.Use(chimw.Timeout(h.timeout))
		r.Use(middleware.RequireCaller(h.validator, h.logger))

		r.Route("/participants/registration", func(r chi.Router) {
			r.Post("/", h.handleRegister)
			r.Delete("/", h.handleWithdraw)
			r.Post("/confirm", h.handleConfirm)
		})

		r.Route("/inbound", func(r chi.Router) {
			r.Post("/text", h.handleText)
			r.Post("/photo", h.handlePhoto)
			r.Post("/callback", h.handleCallback)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/registration/open", h.handleOpenRegistration)
			r.Post("/registration/close", h.handleCloseRegistration)
			r.Post("/registration/cancel-pending", h.handleCancelPending)
			r.Post("/matching/run", h.handleRunMatching)
			r.Delete("/matching", h.handleClearAssignments)
			r.Post("/matching/send", h.handleSendResults)
			r.Get("/status", h.handleStatus)
			r.Post("/broadcast", h.handleBroadcast)
		})
	})
}

type registerRequest struct {
	Description string `json:"description"`
}

type textRequest struct {
	Text string `json:"text"`
}

type photoRequest struct {
	PhotoID string `json:"photo_id"`
	Caption string `json:"caption"`
}

type callbackRequest struct {
	Data string `json:"data"`
}

type replyResponse struct {
	Reply *messaging.Message `json:"reply"`
}

type purgedResponse struct {
	Purged []string `json:"purged"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.service.Register(r.Context(), strings.TrimSpace(req.Description))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	h.noContent(w, r, h.service.Confirm(r.Context()))
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	h.noContent(w, r, h.service.Withdraw(r.Context()))
}

func (h *Handler) handleText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	reply, err := h.service.HandleText(r.Context(), req.Text)
	h.reply(w, r, reply, err)
}

func (h *Handler) handlePhoto(w http.ResponseWriter, r *http.Request) {
	var req photoRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	reply, err := h.service.HandlePhoto(r.Context(), req.PhotoID, req.Caption)
	h.reply(w, r, reply, err)
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	reply, err := h.service.HandleCallback(r.Context(), req.Data)
	h.reply(w, r, reply, err)
}

func (h *Handler) handleOpenRegistration(w http.ResponseWriter, r *http.Request) {
	h.noContent(w, r, h.service.OpenRegistration(r.Context()))
}

func (h *Handler) handleCloseRegistration(w http.ResponseWriter, r *http.Request) {
	delivery, err := h.service.CloseRegistration(r.Context())
	h.ok(w, r, delivery, err)
}

func (h *Handler) handleCancelPending(w http.ResponseWriter, r *http.Request) {
	purged, err := h.service.CancelPending(r.Context())
	h.ok(w, r, purgedResponse{Purged: purged}, err)
}

func (h *Handler) handleRunMatching(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RunMatching(r.Context())
	h.ok(w, r, result, err)
}

func (h *Handler) handleClearAssignments(w http.ResponseWriter, r *http.Request) {
	h.noContent(w, r, h.service.ClearAssignments(r.Context()))
}

func (h *Handler) handleSendResults(w http.ResponseWriter, r *http.Request) {
	delivery, err := h.service.SendResults(r.Context())
	h.ok(w, r, delivery, err)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Status(r.Context())
	h.ok(w, r, status, err)
}

func (h *Handler) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	delivery, err := h.service.Broadcast(r.Context(), req.Text)
	h.ok(w, r, delivery, err)
}

func (h *Handler) ok(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) noContent(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// reply answers an inbound message. A nil reply means the message was not
// for the relay.
func (h *Handler) reply(w http.ResponseWriter, r *http.Request, reply *messaging.Message, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if reply == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, replyResponse{Reply: reply})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"caller_id", requestcontext.CallerID(ctx),
		"path", r.URL.Path,
		"error", err,
	}
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "request failed", attrs...)
	} else {
		h.logger.InfoContext(ctx, "request rejected", attrs...)
	}
	httputil.WriteError(w, err)
}
