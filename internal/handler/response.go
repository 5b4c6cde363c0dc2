package handler

import (
	"net/http"

	"github.com/studyhall/focus-server/internal/httputil"
	"github.com/studyhall/focus-server/internal/model"
	"github.com/studyhall/focus-server/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

type claimResponse struct {
	Success bool `json:"success"`
	*model.ClaimResult
}

// writeClaim renders a claim outcome. Both successful outcomes are 200 so a
// retried reservation looks the same as the first one.
func writeClaim(w http.ResponseWriter, result *model.ClaimResult) {
	if appErr := service.ClaimError(result); appErr != nil {
		httputil.WriteError(w, appErr)
		return
	}
	writeJSON(w, http.StatusOK, claimResponse{Success: true, ClaimResult: result})
}
