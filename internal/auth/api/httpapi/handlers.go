// Package httpapi exposes the auth service over JSON HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/meridianbank/passkeyd/internal/auth/service"
	"github.com/meridianbank/passkeyd/internal/auth/token"
	apperrors "github.com/meridianbank/passkeyd/internal/platform/errors"
)

// AuthService is the orchestrator surface the handlers invoke.
type AuthService interface {
	RequestOTP(ctx context.Context, email string) error
	StartVerification(ctx context.Context, email string, code string) (service.StartVerificationResult, error)
	FinishRegistration(ctx context.Context, contextID string, response []byte) (token.Tokens, error)
	FinishLogin(ctx context.Context, contextID string, credentialID string, response []byte) (token.Tokens, error)
}

// Handler serves the ceremony endpoints.
type Handler struct {
	service AuthService
}

// NewHandler builds the HTTP handler set over the auth service.
func NewHandler(svc AuthService) *Handler {
	return &Handler{service: svc}
}

// Register installs the endpoint routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/otp", h.handleRequestOTP)
	mux.HandleFunc("POST /auth/verify", h.handleStartVerification)
	mux.HandleFunc("POST /auth/register/finish", h.handleFinishRegistration)
	mux.HandleFunc("POST /auth/login/finish", h.handleFinishLogin)
	mux.HandleFunc("GET /up", h.handleHealth)
}

type otpRequest struct {
	Email string `json:"email"`
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type finishRegistrationRequest struct {
	ContextID string          `json:"contextId"`
	Response  json.RawMessage `json:"response"`
}

type finishLoginRequest struct {
	ContextID    string          `json:"contextId"`
	CredentialID string          `json:"credentialId"`
	Response     json.RawMessage `json:"response"`
}

func (h *Handler) handleRequestOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if err := h.service.RequestOTP(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleStartVerification(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	result, err := h.service.StartVerification(r.Context(), req.Email, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleFinishRegistration(w http.ResponseWriter, r *http.Request) {
	var req finishRegistrationRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	tokens, err := h.service.FinishRegistration(r.Context(), req.ContextID, req.Response)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (h *Handler) handleFinishLogin(w http.ResponseWriter, r *http.Request) {
	var req finishLoginRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	tokens, err := h.service.FinishLogin(r.Context(), req.ContextID, req.CredentialID, req.Response)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: string(apperrors.CodeUnknown), Error: "malformed request body"})
		return false
	}
	return true
}

type errorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	code := apperrors.GetCode(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		// Internal detail stays in the logs.
		log.Printf("auth handler error: %v", err)
		message = "internal error"
	}
	writeJSON(w, status, errorBody{Code: string(code), Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("encode response: %v", err)
	}
}
