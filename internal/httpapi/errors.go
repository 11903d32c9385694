package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/spigell/lead-scorer/internal/leads"
	"github.com/spigell/lead-scorer/internal/session"
	"github.com/spigell/lead-scorer/internal/upload"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

var errInvalidRequest = errors.New("invalid request")

type apiError struct {
	status int
	code   string
}

// classify maps domain errors to a status and a stable error code.
func classify(err error) apiError {
	switch {
	case errors.Is(err, leads.ErrInvalidOffer):
		return apiError{http.StatusBadRequest, "invalid_offer"}
	case errors.Is(err, leads.ErrNoOfferConfigured):
		return apiError{http.StatusBadRequest, "no_offer_configured"}
	case errors.Is(err, leads.ErrNoLeadsUploaded):
		return apiError{http.StatusBadRequest, "no_leads_uploaded"}
	case errors.Is(err, leads.ErrNoResults):
		return apiError{http.StatusNotFound, "no_results"}
	case errors.Is(err, upload.ErrNoHeader):
		return apiError{http.StatusBadRequest, "invalid_upload"}
	case errors.Is(err, errInvalidRequest):
		return apiError{http.StatusBadRequest, "invalid_request"}
	case errors.Is(err, session.ErrRunInProgress):
		return apiError{http.StatusConflict, "run_in_progress"}
	case errors.Is(err, session.ErrSessionChanged):
		return apiError{http.StatusConflict, "session_changed"}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apiError{http.StatusServiceUnavailable, "cancelled"}
	default:
		return apiError{http.StatusInternalServerError, "internal"}
	}
}

func abortWithError(c *gin.Context, err error) {
	abortWithStatus(c, classify(err).status, err)
}

// abortWithStatus keeps the error code of err but overrides the status.
func abortWithStatus(c *gin.Context, status int, err error) {
	resp := ErrorResponse{
		Error:   classify(err).code,
		Message: err.Error(),
	}

	var offerErr *leads.OfferError
	if errors.As(err, &offerErr) {
		resp.Details = offerErr.Fields
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, resp)
}
