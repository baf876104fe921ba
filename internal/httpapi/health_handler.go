package httpapi

import (
	"database/sql"
	"net/http"

	"pulse-link/internal/hub"
	"pulse-link/internal/upstream"
)

// HealthHandler 健康检查
type HealthHandler struct {
	db   *sql.DB
	link *upstream.Link
	hub  *hub.Hub
}

// NewHealthHandler 创建 HealthHandler
func NewHealthHandler(db *sql.DB, link *upstream.Link, h *hub.Hub) *HealthHandler {
	return &HealthHandler{db: db, link: link, hub: h}
}

// Healthz GET /healthz
// 存储不可达不算进程不健康（读路径容错、写路径丢点继续），
// 这里只报告各依赖的当前状态
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	database := "ok"
	if err := h.db.PingContext(r.Context()); err != nil {
		database = "unreachable"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"database": database,
		"upstream": h.link.State().String(),
		"sessions": h.hub.Count(),
	})
}
