package handlers

import (
	"net/http"

	"profile-service/middleware"
)

func Health(w http.ResponseWriter, r *http.Request) error {
	return middleware.WriteJSON(w, http.StatusOK, JSONResponse{"status": "ok"})
}
