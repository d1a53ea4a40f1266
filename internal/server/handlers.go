package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/velamed/velamed/internal/auth"
	"github.com/velamed/velamed/internal/engine"
	"github.com/velamed/velamed/internal/vault"
)

const (
	ctxKeyRequestID = "velamed.request_id"
	ctxKeyProject   = "velamed.project"
)

// errorBody is the uniform error envelope. Messages are static or taxonomy
// driven; they never echo request text.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func errJSON(c echo.Context, status int, typ, msg string) error {
	return c.JSON(status, errorBody{Error: errorDetail{Type: typ, Message: msg}})
}

// requireAPIKey authenticates the bearer token against configured projects.
// With no projects configured the server runs open (local/dev mode).
func (s *Server) requireAPIKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.auth.Open() {
			c.Set(ctxKeyProject, auth.Project{ID: "default"})
			return next(c)
		}

		header := c.Request().Header.Get("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if header == "" || token == header {
			return errJSON(c, http.StatusUnauthorized, "authentication_error", "missing bearer token")
		}
		proj, ok := s.auth.Lookup(token)
		if !ok {
			return errJSON(c, http.StatusUnauthorized, "authentication_error", "invalid api key")
		}
		c.Set(ctxKeyProject, proj)
		return next(c)
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": engine.Version,
	})
}

type deidentifyRequest struct {
	Text    string `json:"text"`
	Options struct {
		Reversible bool   `json:"reversible"`
		AuditLog   bool   `json:"auditLog"`
		Key        string `json:"key,omitempty"`
	} `json:"options"`
}

func (s *Server) handleDeidentify(c echo.Context) error {
	var req deidentifyRequest
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid_input_error", "malformed request body")
	}

	proj, _ := c.Get(ctxKeyProject).(auth.Project)
	requestID, _ := c.Get(ctxKeyRequestID).(string)

	resp, err := s.engine.Deidentify(c.Request().Context(), engine.Request{
		Text: req.Text,
		Options: engine.Options{
			Reversible: req.Options.Reversible,
			AuditLog:   req.Options.AuditLog,
			Key:        req.Options.Key,
		},
		ProjectID: proj.ID,
		RequestID: requestID,
	})
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

type reidentifyRequest struct {
	Text           string        `json:"text"`
	TokenMapExport *vault.Export `json:"tokenMapExport"`
}

type reidentifyResponse struct {
	Text string `json:"text"`
}

func (s *Server) handleReidentify(c echo.Context) error {
	var req reidentifyRequest
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid_input_error", "malformed request body")
	}
	if req.TokenMapExport == nil {
		return errJSON(c, http.StatusBadRequest, "invalid_input_error", "tokenMapExport is required")
	}

	text, err := s.engine.Reidentify(c.Request().Context(), req.Text, req.TokenMapExport)
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, reidentifyResponse{Text: text})
}

// mapError translates the engine's error taxonomy onto HTTP statuses.
func (s *Server) mapError(c echo.Context, err error) error {
	requestID, _ := c.Get(ctxKeyRequestID).(string)

	switch {
	case engine.IsInvalidInput(err):
		var iie *engine.InvalidInputError
		errors.As(err, &iie)
		return errJSON(c, http.StatusBadRequest, "invalid_input_error", iie.Reason)
	case engine.IsEncryption(err):
		// The underlying cause stays server-side.
		s.log.Warn().Str("request_id", requestID).Msg("encryption failure")
		return errJSON(c, http.StatusUnprocessableEntity, "encryption_error", "reversible token map could not be sealed")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errJSON(c, http.StatusServiceUnavailable, "engine_error", "request cancelled")
	default:
		s.log.Error().Str("request_id", requestID).Msg("engine failure")
		return errJSON(c, http.StatusInternalServerError, "engine_error", "internal error")
	}
}
