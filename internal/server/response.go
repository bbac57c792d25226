package server

import (
	"encoding/json"
	"net/http"

	"github.com/MrEthical07/gatekeeper"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// messageResponse is the success and failure body shape.
type messageResponse struct {
	Message  string `json:"message"`
	Token    string `json:"token,omitempty"`
	Username string `json:"username,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

// writeError classifies err. Collaborator and unknown failures get fallback
// instead of the generic text.
func writeError(w http.ResponseWriter, err error, fallback string) {
	status := gatekeeper.StatusOf(err)
	message := gatekeeper.MessageOf(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}
	writeMessage(w, status, message)
}

// decodeCredentials reads {"username", "password"}. Both must be present.
func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, error) {
	var req credentialsRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(&req); err != nil {
		return req, gatekeeper.ErrBadRequest
	}
	if req.Username == "" || req.Password == "" {
		return req, gatekeeper.ErrBadRequest
	}
	return req, nil
}
