package http

import (
	"net/http"

	"github.com/fjod/go_cart/cafe-service/internal/catalog"
)

type MenuHandler struct {
	catalog *catalog.Catalog
}

func NewMenuHandler(c *catalog.Catalog) *MenuHandler {
	return &MenuHandler{catalog: c}
}

func (h *MenuHandler) GetMenu(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, toMenuDTO(h.catalog))
}
