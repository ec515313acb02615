package server

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// LoginHandler looks the username/email pair up in the static users file.
// The file is re-read on every request so edits apply without a restart.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	users, err := loadUsers(s.cfg.UsersPath())
	if err != nil {
		log.Error().Err(err).Msg("Error reading users")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Server error"})
		return
	}

	user, found := lo.Find(users, func(u map[string]interface{}) bool {
		return u["name"] == req.Username && u["email"] == req.Email
	})
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "User not found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "User found", "user": user})
}

// loadUsers reads a JSON array of user objects. Objects keep every field so
// the login response can echo them back.
func loadUsers(path string) ([]map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	var users []map[string]interface{}
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return users, nil
}
