package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"go-user-template/internal/middleware"
	"go-user-template/internal/model"
	"go-user-template/internal/service"
	"go-user-template/pkg/apierror"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a single JSON object into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	defer r.Body.Close()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apierror.New("PAYLOAD_TOO_LARGE", "request body too large", "", http.StatusRequestEntityTooLarge)
		case errors.Is(err, io.EOF):
			return apierror.BadRequest("request body is required", "")
		default:
			return apierror.BadRequest("invalid JSON body", err.Error())
		}
	}

	return validateStruct(dst)
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apierror.BadRequest("invalid "+name, raw)
	}
	return id, nil
}

func parseIntOrDefault(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return value
}

func parseInt64OrZero(raw string) int64 {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return value
}

// requestContext carries the caller IP down to the audit trail.
func requestContext(r *http.Request) context.Context {
	return service.WithClientIP(r.Context(), middleware.ClientIP(r))
}

func actorFromRequest(r *http.Request) (model.TokenUser, error) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		return model.TokenUser{}, apierror.Unauthorized("authentication required")
	}
	return user, nil
}
