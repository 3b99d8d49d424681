package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"wardgate/internal/catalog"
	"wardgate/internal/roles"
	id "wardgate/pkg/domain"
	dErrors "wardgate/pkg/domain-errors"
)

type roleResponse struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Permissions []string  `json:"permissions"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toRoleResponse(role *roles.Role) roleResponse {
	resp := roleResponse{
		ID:          role.ID.String(),
		Code:        role.Code,
		Name:        role.Name,
		Permissions: []string{},
		IsActive:    role.IsActive,
		CreatedAt:   role.CreatedAt,
		UpdatedAt:   role.UpdatedAt,
	}
	for _, code := range role.Permissions.Codes() {
		resp.Permissions = append(resp.Permissions, string(code))
	}
	return resp
}

func toCodes(raw []string) []catalog.Code {
	out := make([]catalog.Code, 0, len(raw))
	for _, s := range raw {
		out = append(out, catalog.Code(s))
	}
	return out
}

type createRoleRequest struct {
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

func (h *Handler) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[createRoleRequest](w, r)
	if !ok {
		return
	}
	role, err := h.roles.CreateRole(r.Context(), req.Code, req.Name, toCodes(req.Permissions))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRoleResponse(role))
}

func (h *Handler) handleListRoles(w http.ResponseWriter, r *http.Request) {
	list, err := h.roles.ListRoles(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]roleResponse, 0, len(list))
	for _, role := range list {
		out = append(out, toRoleResponse(role))
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": out})
}

func (h *Handler) handleGetRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := h.roleID(w, r)
	if !ok {
		return
	}
	role, err := h.roles.GetRole(r.Context(), roleID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoleResponse(role))
}

type setPermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

func (h *Handler) handleSetRolePermissions(w http.ResponseWriter, r *http.Request) {
	roleID, ok := h.roleID(w, r)
	if !ok {
		return
	}
	req, ok := decode[setPermissionsRequest](w, r)
	if !ok {
		return
	}
	role, err := h.roles.SetRolePermissions(r.Context(), roleID, toCodes(req.Permissions))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) handleActivateRole(w http.ResponseWriter, r *http.Request) {
	h.setRoleActive(w, r, true)
}

func (h *Handler) handleDeactivateRole(w http.ResponseWriter, r *http.Request) {
	h.setRoleActive(w, r, false)
}

func (h *Handler) setRoleActive(w http.ResponseWriter, r *http.Request, active bool) {
	roleID, ok := h.roleID(w, r)
	if !ok {
		return
	}
	role, err := h.roles.SetActive(r.Context(), roleID, active)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := h.roleID(w, r)
	if !ok {
		return
	}
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.roles.AssignRole(r.Context(), userID, roleID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "assigned"})
}

func (h *Handler) handleUnassignRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := h.roleID(w, r)
	if !ok {
		return
	}
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.roles.UnassignRole(r.Context(), userID, roleID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unassigned"})
}

func (h *Handler) roleID(w http.ResponseWriter, r *http.Request) (id.RoleID, bool) {
	roleID, err := id.ParseRoleID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid role id"))
		return id.RoleID{}, false
	}
	return roleID, true
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID, err := id.ParseUserID(chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid user id"))
		return id.UserID{}, false
	}
	return userID, true
}
