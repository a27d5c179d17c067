package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/lunevo/bidwire/internal/models"
)

// SendErrorResponse writes an error as JSON with the given status code.
func SendErrorResponse(w http.ResponseWriter, statusCode int, kind models.ErrorKind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := models.Error{
		Kind:       kind,
		StatusCode: statusCode,
		Message:    message,
	}
	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		log.Println(err)
	}
}

// SendError maps a service error to an HTTP error response. Typed negotiation
// errors keep their status code and kind; anything else is an internal error.
func SendError(w http.ResponseWriter, logger *log.Logger, err error, fallback string) {
	var negotiationErr *models.Error
	if errors.As(err, &negotiationErr) {
		logger.Println(err)
		statusCode := negotiationErr.StatusCode
		if statusCode == 0 {
			statusCode = http.StatusInternalServerError
		}
		SendErrorResponse(w, statusCode, negotiationErr.Kind, negotiationErr.Message)
		return
	}
	logger.Println(err)
	SendErrorResponse(w, http.StatusInternalServerError, models.KindUnknown, fallback)
}

// SendJSON writes a value as a JSON response.
func SendJSON(w http.ResponseWriter, logger *log.Logger, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Println(err)
	}
}

// ParseLimitOffset parses limit and offset query parameters.
func ParseLimitOffset(limitStr, offsetStr string) (int, int, error) {
	var limit, offset int
	var err error

	if limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit <= 0 || limit > 50 {
			return 0, 0, fmt.Errorf("invalid limit parameter, must be a positive integer [0:50]")
		}
	} else {
		limit = 20
	}

	if offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset parameter, must be a non-negative integer")
		}
	} else {
		offset = 0
	}

	return limit, offset, nil
}
