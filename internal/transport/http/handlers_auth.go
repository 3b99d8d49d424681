package httptransport

import (
	"net/http"

	dErrors "wardgate/pkg/domain-errors"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token       string `json:"token"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	IsAdmin     bool   `json:"isAdmin"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[loginRequest](w, r)
	if !ok {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, dErrors.New(dErrors.CodeValidation, "username and password are required"))
		return
	}
	token, user, err := h.auth.Login(r.Context(), req.Username, req.Password, r.UserAgent())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token:       token,
		UserID:      user.ID.String(),
		DisplayName: user.DisplayName,
		IsAdmin:     user.IsAdmin,
	})
}
