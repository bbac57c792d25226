package server

import (
	"net/http"

	"github.com/MrEthical07/gatekeeper"
	gkmiddleware "github.com/MrEthical07/gatekeeper/middleware"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCredentials(w, r)
	if err != nil {
		writeError(w, err, "")
		return
	}
	if s.users == nil {
		writeMessage(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	if err := s.users.Register(r.Context(), req.Username, req.Password); err != nil {
		s.logger.WithError(err).WithField("username", req.Username).Warn("registration failed")
		writeMessage(w, http.StatusInternalServerError, "Registration failed")
		return
	}
	writeMessage(w, http.StatusOK, "Registration successful")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCredentials(w, r)
	if err != nil {
		writeError(w, err, "")
		return
	}

	res, err := s.engine.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err, "Login failed")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{
		Message:  "Login successful",
		Token:    res.Token,
		Username: res.Username,
	})
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCredentials(w, r)
	if err != nil {
		// Admin login never distinguishes a malformed body from a wrong pair.
		writeError(w, gatekeeper.ErrUnauthorized, "")
		return
	}

	res, err := s.engine.AdminLogin(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err, "Admin login failed")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{
		Message:  "Admin Login successful",
		Token:    res.Token,
		Username: res.Username,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Logout(r.Context(), gkmiddleware.BearerToken(r)); err != nil {
		writeError(w, err, "Logout failed")
		return
	}
	writeMessage(w, http.StatusOK, "Logout successful")
}

type verifyResponse struct {
	Valid    bool   `json:"valid"`
	Username string `json:"username,omitempty"`
	UserType string `json:"user_type,omitempty"`
	Message  string `json:"message,omitempty"`
}

func (s *Server) handleVerifySession(w http.ResponseWriter, r *http.Request) {
	res := s.engine.VerifySession(r.Context(), gkmiddleware.BearerToken(r))
	if !res.Valid {
		writeJSON(w, gatekeeper.StatusOf(res.Reason), verifyResponse{
			Message: gatekeeper.MessageOf(res.Reason),
		})
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{
		Valid:    true,
		Username: res.Subject,
		UserType: string(res.Role),
	})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.engine.ListUsers(r.Context())
	if err != nil {
		writeError(w, err, "Failed to fetch users")
		return
	}
	if users == nil {
		users = []string{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleUserDashboard(w http.ResponseWriter, r *http.Request) {
	id, _ := gkmiddleware.IdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Welcome to user dashboard",
		"username": id.Subject,
	})
}

func (s *Server) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	id, _ := gkmiddleware.IdentityFromContext(r.Context())

	count, err := s.engine.CountUsers(r.Context())
	if err != nil {
		writeError(w, err, "Dashboard error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Welcome to admin dashboard",
		"user_count": count,
		"admin":      id.Subject,
	})
}

func (s *Server) handleDBInfo(w http.ResponseWriter, r *http.Request) {
	if s.users == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"connection_status": "failed"})
		return
	}

	info, err := s.users.Info(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("database info failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":             "database unavailable",
			"connection_status": "failed",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"database_version":  info.Version,
		"current_database":  info.CurrentDatabase,
		"tables":            info.Tables,
		"total_users":       info.TotalUsers,
		"connection_status": "success",
	})
}
