package http

import (
	"net/http"

	"chassis/internal/buildinfo"
)

// VersionHandler serves static build metadata.
type VersionHandler struct {
	info buildinfo.Info
}

// NewVersionHandler creates the handler from metadata collected at startup.
func NewVersionHandler(info buildinfo.Info) *VersionHandler {
	return &VersionHandler{info: info}
}

// Version handles GET /version.
func (h *VersionHandler) Version(w http.ResponseWriter, r *http.Request) {
	OK(w, r, h.info)
}
