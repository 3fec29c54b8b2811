package handler

import (
	"net/http"
)

type IndexHandler struct {
	*Pages
}

func NewIndexHandler(p *Pages) *IndexHandler {
	return &IndexHandler{Pages: p}
}

func (h *IndexHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "index", h.page(r, "Home", nil))
}
