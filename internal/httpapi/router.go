package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口（用于 promhttp 等）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterDataRoutes 注册历史数据查询路由
func (r *Router) RegisterDataRoutes(d *DataHandler) {
	r.Handle("/api/data/historical", getOnly(d.GetHistorical))
	r.Handle("/api/data/time-ranges", getOnly(d.GetTimeRanges))
	r.Handle("/api/data/stats", getOnly(d.GetStats))
	r.Handle("/api/data/recent", getOnly(d.GetRecent))
	r.Handle("/api/data/aggregated", getOnly(d.GetAggregated))
	r.Handle("/api/data/export", getOnly(d.Export))

	// preset/{preset}
	r.Handle("/api/data/preset/", getOnly(func(w http.ResponseWriter, req *http.Request) {
		name := strings.TrimPrefix(req.URL.Path, "/api/data/preset/")
		if name == "" || strings.Contains(name, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		d.GetPreset(w, req, name)
	}))
}

// RegisterLiveRoutes 注册实时推送与健康检查路由
func (r *Router) RegisterLiveRoutes(ws *WSHandler, h *HealthHandler) {
	r.Handle("/ws", ws.Serve)
	r.Handle("/healthz", getOnly(h.Healthz))
}

func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}
