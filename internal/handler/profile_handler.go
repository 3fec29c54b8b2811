package handler

import (
	"net/http"

	"attendance/internal/query"
)

type ProfileHandler struct {
	*Pages
	auth AuthAPI
}

func NewProfileHandler(p *Pages, auth AuthAPI) *ProfileHandler {
	return &ProfileHandler{Pages: p, auth: auth}
}

// Profile shows the user as the API currently knows it, which may differ
// from the record stored at login.
func (h *ProfileHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := query.Get(r.Context(), h.cache, ownerKey(r, "profile"), h.auth.GetProfile)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "profile", h.page(r, "Profile", user))
}
