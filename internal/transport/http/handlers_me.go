package httptransport

import (
	"net/http"
	"strings"

	"wardgate/internal/catalog"
)

type permissionsResponse struct {
	Permissions []permissionEntry `json:"permissions"`
	IsAdmin     bool              `json:"isAdmin"`
	Has         *bool             `json:"has,omitempty"`
	HasAny      *bool             `json:"hasAny,omitempty"`
	HasAll      *bool             `json:"hasAll,omitempty"`
}

type permissionEntry struct {
	Code   string `json:"code"`
	Source string `json:"source"`
}

// handleMyPermissions returns the caller's effective set, optionally
// answering has/any/all predicates via query parameters:
//
//	GET /me/permissions?has=edit_billing
//	GET /me/permissions?any=view_patients,view_staff
//	GET /me/permissions?all=view_patients,edit_patients
func (h *Handler) handleMyPermissions(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	eff, err := h.resolver.Resolve(ctx, principal.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := permissionsResponse{
		Permissions: []permissionEntry{},
		IsAdmin:     eff.Admin,
	}
	for _, code := range eff.Permissions.Codes() {
		resp.Permissions = append(resp.Permissions, permissionEntry{
			Code:   string(code),
			Source: string(eff.SourceOf(code)),
		})
	}

	q := r.URL.Query()
	if code := q.Get("has"); code != "" {
		granted, err := h.resolver.Has(ctx, principal.UserID, catalog.Code(code))
		if err != nil {
			writeError(w, err)
			return
		}
		resp.Has = &granted
	}
	if raw := q.Get("any"); raw != "" {
		granted, err := h.resolver.HasAny(ctx, principal.UserID, splitCodes(raw)...)
		if err != nil {
			writeError(w, err)
			return
		}
		resp.HasAny = &granted
	}
	if raw := q.Get("all"); raw != "" {
		granted, err := h.resolver.HasAll(ctx, principal.UserID, splitCodes(raw)...)
		if err != nil {
			writeError(w, err)
			return
		}
		resp.HasAll = &granted
	}
	writeJSON(w, http.StatusOK, resp)
}

func splitCodes(raw string) []catalog.Code {
	parts := strings.Split(raw, ",")
	out := make([]catalog.Code, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, catalog.Code(p))
		}
	}
	return out
}
