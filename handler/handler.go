package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"bank-assistant/internal/domain"
	"bank-assistant/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

var (
	errMissingBearer = errors.New("missing bearer token")
	errInvalidBearer = errors.New("invalid bearer token")
)

type authService interface {
	Login(ctx context.Context, accountNumber, code string) (usecase.LoginOutput, error)
	ValidateToken(ctx context.Context, token string) (string, error)
	Logout(ctx context.Context, token string) error
}

type chatService interface {
	HandleMessage(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
	History(ctx context.Context, in usecase.HistoryInput) ([]domain.Turn, error)
}

// Handler routes API Gateway proxy events to the auth and chat services.
type Handler struct {
	auth authService
	chat chatService
}

type authRequest struct {
	AccountNumber string `json:"accountNumber"`
	Code          string `json:"code"`
}

type authResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

type chatResponse struct {
	Response  string         `json:"response"`
	SessionID string         `json:"sessionId"`
	Action    string         `json:"action,omitempty"`
	Metrics   domain.Metrics `json:"metrics"`
}

type historyMessage struct {
	Message   string `json:"message"`
	IsBot     bool   `json:"isBot"`
	Timestamp string `json:"timestamp"`
}

type historyResponse struct {
	Messages []historyMessage `json:"messages"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func NewHandler(auth authService, chat chatService) (*Handler, error) {
	if auth == nil {
		return nil, errors.New("handler: auth service must not be nil")
	}
	if chat == nil {
		return nil, errors.New("handler: chat service must not be nil")
	}
	return &Handler{auth: auth, chat: chat}, nil
}

// Handle is the Lambda entry point for API Gateway proxy integrations.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	start := time.Now()

	resp := h.route(ctx, req, correlationID)
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers[correlationHeader] = correlationID

	slog.Info("request handled",
		"correlation_id", correlationID,
		"method", req.HTTPMethod,
		"path", req.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

func (h *Handler) route(ctx context.Context, req events.APIGatewayProxyRequest, correlationID string) events.APIGatewayProxyResponse {
	path := strings.TrimRight(req.Path, "/")
	method := strings.ToUpper(req.HTTPMethod)

	if method == http.MethodOptions {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent, Headers: corsHeaders()}
	}

	switch {
	case path == "/health" && method == http.MethodGet:
		return jsonResponse(http.StatusOK, statusResponse{Status: "ok"})
	case path == "/auth" && method == http.MethodPost:
		return h.login(ctx, req, correlationID)
	case path == "/auth/logout" && method == http.MethodPost:
		return h.logout(ctx, req, correlationID)
	case path == "/chat" && method == http.MethodPost:
		return h.requireAuthenticated(ctx, req, correlationID, h.sendMessage)
	case strings.HasPrefix(path, "/chat/history/") && method == http.MethodGet:
		return h.requireAuthenticated(ctx, req, correlationID, h.history)
	default:
		return jsonResponse(http.StatusNotFound, errorResponse{Error: "Not found", Code: "NOT_FOUND"})
	}
}

type authenticatedRoute func(ctx context.Context, req events.APIGatewayProxyRequest, customerID, correlationID string) events.APIGatewayProxyResponse

// requireAuthenticated resolves the bearer token to a customer before
// invoking next.
func (h *Handler) requireAuthenticated(ctx context.Context, req events.APIGatewayProxyRequest, correlationID string, next authenticatedRoute) events.APIGatewayProxyResponse {
	token, err := extractBearer(req.Headers)
	if err != nil {
		return errorFor(bearerError(err), correlationID)
	}
	customerID, err := h.auth.ValidateToken(ctx, token)
	if err != nil {
		return errorFor(err, correlationID)
	}
	return next(ctx, req, customerID, correlationID)
}

func (h *Handler) login(ctx context.Context, req events.APIGatewayProxyRequest, correlationID string) events.APIGatewayProxyResponse {
	var in authRequest
	if err := decodeBody(req, &in); err != nil {
		return invalidBody(correlationID, err)
	}
	if strings.TrimSpace(in.AccountNumber) == "" || in.Code == "" {
		return jsonResponse(http.StatusBadRequest, errorResponse{Error: "Missing credentials", Code: string(usecase.ErrorInvalidInput)})
	}

	out, err := h.auth.Login(ctx, in.AccountNumber, in.Code)
	if err != nil {
		return errorFor(err, correlationID)
	}
	resp := authResponse{Token: out.Token}
	if !out.ExpiresAt.IsZero() {
		resp.ExpiresAt = out.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return jsonResponse(http.StatusOK, resp)
}

func (h *Handler) logout(ctx context.Context, req events.APIGatewayProxyRequest, correlationID string) events.APIGatewayProxyResponse {
	token, err := extractBearer(req.Headers)
	if err != nil {
		return errorFor(bearerError(err), correlationID)
	}
	if err := h.auth.Logout(ctx, token); err != nil {
		return errorFor(err, correlationID)
	}
	return jsonResponse(http.StatusOK, statusResponse{Status: "ok"})
}

func (h *Handler) sendMessage(ctx context.Context, req events.APIGatewayProxyRequest, customerID, correlationID string) events.APIGatewayProxyResponse {
	var in chatRequest
	if err := decodeBody(req, &in); err != nil {
		return invalidBody(correlationID, err)
	}
	if strings.TrimSpace(in.Message) == "" {
		return jsonResponse(http.StatusBadRequest, errorResponse{Error: "Message is required", Code: string(usecase.ErrorInvalidInput)})
	}

	out, err := h.chat.HandleMessage(ctx, usecase.ChatInput{
		CustomerID: customerID,
		SessionID:  in.SessionID,
		Message:    in.Message,
	})
	if err != nil {
		return errorFor(err, correlationID)
	}

	resp := chatResponse{
		Response:  out.Response,
		SessionID: out.SessionID,
		Metrics:   out.Metrics,
	}
	if out.Action != domain.ActionNone {
		resp.Action = string(out.Action)
	}
	return jsonResponse(http.StatusOK, resp)
}

func (h *Handler) history(ctx context.Context, req events.APIGatewayProxyRequest, customerID, correlationID string) events.APIGatewayProxyResponse {
	sessionID := req.PathParameters["sessionId"]
	if sessionID == "" {
		sessionID = strings.TrimPrefix(strings.TrimRight(req.Path, "/"), "/chat/history/")
	}

	limit := 0
	if raw := req.QueryStringParameters["limit"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return jsonResponse(http.StatusBadRequest, errorResponse{Error: "Invalid limit", Code: string(usecase.ErrorInvalidInput)})
		}
		limit = n
	}

	turns, err := h.chat.History(ctx, usecase.HistoryInput{
		CustomerID: customerID,
		SessionID:  sessionID,
		Limit:      limit,
	})
	if err != nil {
		return errorFor(err, correlationID)
	}

	resp := historyResponse{Messages: make([]historyMessage, 0, len(turns))}
	for _, t := range turns {
		resp.Messages = append(resp.Messages, historyMessage{
			Message:   t.Text,
			IsBot:     t.IsBot,
			Timestamp: t.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return jsonResponse(http.StatusOK, resp)
}

func extractBearer(headers map[string]string) (string, error) {
	auth := headerValue(headers, "Authorization")
	if auth == "" || auth == "Bearer" {
		return "", errMissingBearer
	}
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", errInvalidBearer
	}
	token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	if token == "" {
		return "", errMissingBearer
	}
	return token, nil
}

func bearerError(err error) error {
	code := usecase.ErrorNoToken
	if errors.Is(err, errInvalidBearer) {
		code = usecase.ErrorInvalidSession
	}
	return &usecase.Error{Code: code, Reason: err.Error()}
}

func decodeBody(req events.APIGatewayProxyRequest, v any) error {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return err
		}
		body = decoded
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}

func invalidBody(correlationID string, err error) events.APIGatewayProxyResponse {
	slog.Warn("invalid request body", "correlation_id", correlationID, "err", err)
	return jsonResponse(http.StatusBadRequest, errorResponse{Error: "Invalid request body", Code: string(usecase.ErrorInvalidInput)})
}

// errorFor maps a usecase error to its HTTP status and client message.
// Server-side detail is only logged.
func errorFor(err error, correlationID string) events.APIGatewayProxyResponse {
	code := usecase.CodeOf(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "correlation_id", correlationID, "code", code, "err", err)
	}
	return jsonResponse(status, errorResponse{Error: messageFor(err, code), Code: string(code)})
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorInvalidCredentials, usecase.ErrorNoToken, usecase.ErrorInvalidSession:
		return http.StatusUnauthorized
	case usecase.ErrorServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var inputMessages = map[string]string{
	"missing_credentials": "Missing credentials",
	"empty_message":       "Message is required",
	"message_too_long":    "Message is too long",
	"missing_session_id":  "Session ID is required",
}

func messageFor(err error, code usecase.ErrorCode) string {
	switch code {
	case usecase.ErrorInvalidInput:
		var ue *usecase.Error
		if errors.As(err, &ue) {
			if msg, ok := inputMessages[ue.Reason]; ok {
				return msg
			}
		}
		return "Invalid request"
	case usecase.ErrorInvalidCredentials:
		return "Invalid credentials"
	case usecase.ErrorNoToken:
		return "No token provided"
	case usecase.ErrorInvalidSession:
		return "Invalid session"
	case usecase.ErrorServiceUnavailable:
		return "Service temporarily unavailable"
	default:
		return "Failed to process message"
	}
}

func jsonResponse(status int, v any) events.APIGatewayProxyResponse {
	headers := corsHeaders()
	headers["Content-Type"] = "application/json"

	body, err := json.Marshal(v)
	if err != nil {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Headers:    headers,
			Body:       `{"error":"Failed to encode response"}`,
		}
	}
	return events.APIGatewayProxyResponse{StatusCode: status, Headers: headers, Body: string(body)}
}

func corsHeaders() map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Headers": "Content-Type, Authorization, X-Correlation-Id",
		"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
	}
}

// headerValue looks a header up case-insensitively; API Gateway forwards
// header names as the client sent them.
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
