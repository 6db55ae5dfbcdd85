package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/govern-lab/mnemosyne/pkg/domain/model/auth"
	"github.com/govern-lab/mnemosyne/pkg/usecase"
	"github.com/govern-lab/mnemosyne/pkg/utils/errutil"
	"github.com/m-mizutani/goerr/v2"
)

type Authenticator = usecase.Authenticator

type userMeResponse struct {
	Subject string `json:"sub"`
	Name    string `json:"name,omitempty"`
	Tier    string `json:"tier"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// writeJSON writes a JSON response with proper error handling
func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		errutil.Handle(ctx, err, "failed to encode JSON response")
	}
}

// authMeHandler returns the authenticated requester's identity and tier
func authMeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requester, ok := auth.RequesterFromContext(r.Context())
		if !ok {
			errutil.HandleHTTP(r.Context(), w, goerr.New("requester identity missing"), http.StatusUnauthorized, "")
			return
		}

		writeJSON(r.Context(), w, http.StatusOK, userMeResponse{
			Subject: requester.Subject,
			Name:    requester.Name,
			Tier:    requester.Tier.String(),
		})
	}
}
