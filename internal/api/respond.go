package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"parkingapi/internal/auth"
	apperrors "parkingapi/internal/errors"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("http_encode_failed")
	}
}

// writeError answers with the JSON error envelope. Storage and unknown
// failures are logged with their cause and returned as a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	httpErr := apperrors.FromError(err)
	if httpErr.Code >= http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", r.Header.Get(requestIDHeader)).
			Str("path", r.URL.Path).Msg("http_request_failed")
	}
	writeJSON(w, httpErr.Code, map[string]*apperrors.HTTPError{"error": httpErr})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.Validation("invalid request body: %s", err.Error())
	}
	return nil
}

// pathID reads a positive integer path variable.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.Validation("invalid %s", name)
	}
	return id, nil
}

// callerOf returns the authenticated caller. Routes that use it sit behind auth.Middleware.
func callerOf(r *http.Request) (auth.Caller, error) {
	c, ok := auth.CallerFrom(r.Context())
	if !ok {
		return auth.Caller{}, apperrors.Unauthorized("missing bearer token")
	}
	return c, nil
}
