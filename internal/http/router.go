package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

const apiPrefix = "/spc/api/v1"

// Router 使用标准库 http.ServeMux
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

// HandleHandler 支持 http.Handler 接口（用于 /metrics）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// ConnectionChecker 外部连接状态（notify.MQTTClient 实现）
type ConnectionChecker interface {
	IsConnected() bool
}

// RegisterHealthRoutes 健康检查；mqtt 为 nil 表示未启用报警
func (r *Router) RegisterHealthRoutes(mqtt ConnectionChecker) {
	r.Handle("/health", func(w http.ResponseWriter, req *http.Request) {
		status := map[string]string{"status": "ok", "mqtt": "disabled"}
		if mqtt != nil {
			if !mqtt.IsConnected() {
				status["status"] = "degraded"
				status["mqtt"] = "disconnected"
				writeJSON(w, http.StatusServiceUnavailable, Result[map[string]string]{
					Code: ResultError, Type: "error", Message: "mqtt disconnected", Result: status,
				})
				return
			}
			status["mqtt"] = "connected"
		}
		writeJSON(w, http.StatusOK, Ok(status))
	})
}

// RegisterSPCRoutes 注册 SPC 路由
func (r *Router) RegisterSPCRoutes(h *SPCHandler) {
	r.Handle(apiPrefix+"/keys", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ResolveKey(w, req)
	})

	r.Handle(apiPrefix+"/samples", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.SaveSample(w, req)
	})

	// samples/{id}
	r.Handle(apiPrefix+"/samples/", func(w http.ResponseWriter, req *http.Request) {
		id, rest := pathID(req, apiPrefix+"/samples/")
		if id == "" || rest != "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if req.Method != http.MethodPatch {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.AnnotateSample(w, req, id)
	})

	r.Handle(apiPrefix+"/dna", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ListRecords(w, req)
	})

	r.Handle(apiPrefix+"/dna/open", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.OpenCharacteristic(w, req)
	})

	// dna/{id}, dna/{id}/due, dna/{id}/series
	r.Handle(apiPrefix+"/dna/", func(w http.ResponseWriter, req *http.Request) {
		id, rest := pathID(req, apiPrefix+"/dna/")
		if id == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		switch rest {
		case "":
			switch req.Method {
			case http.MethodGet:
				h.GetRecord(w, req, id)
			case http.MethodPatch:
				h.UpdateRecord(w, req, id)
			default:
				w.WriteHeader(http.StatusMethodNotAllowed)
			}
		case "due":
			if req.Method != http.MethodGet {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			h.GetDueState(w, req, id)
		case "series":
			if req.Method != http.MethodGet {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			h.GetSeries(w, req, id)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}
