package server

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/dasmlab/polyglot/pkg/admission"
	"github.com/dasmlab/polyglot/pkg/api"
	"github.com/dasmlab/polyglot/pkg/federation"
	"github.com/dasmlab/polyglot/pkg/translator"
)

// retryAfterSeconds is sent with every 503 and every forwarded peer error.
const retryAfterSeconds = "5"

// Wire messages of errors whose Go text differs from what clients see.
const (
	msgRejected   = "Request limit exceeded"
	msgUnexpected = "There was an unexpected error with the translator proxy client."
)

type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string {
	return e.msg
}

func missingParameter(name string) error {
	return &badRequestError{msg: "Missing parameter '" + name + "'"}
}

// writeError maps an error to its status code and writes an ErrorResponse.
func (s *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.logger.WithFields(logrus.Fields{
		"request_id": api.RequestIDFrom(r.Context()),
		"path":       r.URL.Path,
	})

	var bad *badRequestError
	switch {
	case errors.As(err, &bad), translator.IsUnsupportedInput(err):
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})

	case translator.IsNotReady(err):
		log.WithError(err).Debug("Service unavailable")
		w.Header().Set("Retry-After", retryAfterSeconds)
		writeJSON(w, http.StatusServiceUnavailable, api.ErrorResponse{Error: err.Error()})

	case errors.Is(err, admission.ErrRejected):
		w.Header().Set("Retry-After", retryAfterSeconds)
		writeJSON(w, http.StatusServiceUnavailable, api.ErrorResponse{Error: msgRejected})

	case errors.Is(err, translator.ErrUnexpected):
		log.WithError(err).Error("Unexpected translation error")
		writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{Error: msgUnexpected})

	default:
		if fe, ok := federation.AsApplication(err); ok {
			log.WithFields(logrus.Fields{
				"peer":        fe.Peer,
				"status_code": fe.StatusCode,
			}).Debug("Forwarding peer error")
			w.Header().Set("Retry-After", retryAfterSeconds)
			writeJSON(w, fe.StatusCode, api.ErrorResponse{Error: fe.Message})
			return
		}
		log.WithError(err).Error("Request failed")
		writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{Error: "Internal server error"})
	}
}
