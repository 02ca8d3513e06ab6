package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pcb-assembly-tracking/internal/cache"
	"pcb-assembly-tracking/internal/catalog"
	"pcb-assembly-tracking/internal/service"
	"pcb-assembly-tracking/internal/session"
	"pcb-assembly-tracking/internal/web"
)

// startAPIServer 启动操作台的 HTTP API 服务
func startAPIServer(addr string, svc *service.CompletionService, cat *catalog.Catalog,
	store *cache.Store, hub *web.Hub, st *web.StateTracker, logger *slog.Logger) {

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", hub.ServeWs)

	mux.HandleFunc("GET /api/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, st.GetStateSnapshot())
	})

	mux.HandleFunc("GET /api/types", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"types": cat.TypeCodes()})
	})

	mux.HandleFunc("POST /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			TypeCode    string `json:"type_code"`
			WorkOrderID string `json:"work_order_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		sess, err := svc.StartSession(r.Context(), req.TypeCode, req.WorkOrderID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, sess.Snapshot())
	})

	mux.HandleFunc("GET /api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		sess, err := svc.Registry().Get(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, sess.Snapshot())
	})

	mux.HandleFunc("POST /api/sessions/{id}/scan", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Barcode string `json:"barcode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		result, err := svc.Scan(r.Context(), r.PathValue("id"), req.Barcode)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	mux.HandleFunc("POST /api/sessions/{id}/complete", func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.CompleteAssembly(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	mux.HandleFunc("DELETE /api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := svc.AbandonSession(id); err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		st.RemoveSession(id)
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/rework", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AssemblyID string `json:"assembly_id"`
			Reason     string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		assembly, err := svc.HandleRework(r.Context(), req.AssemblyID, req.Reason)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, assembly)
	})

	// 本地缓存视图：前端用来选择返工对象、查看未同步记录
	mux.HandleFunc("GET /api/assemblies", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"pending":   store.Pending(),
			"completed": store.Completed(),
		})
	})

	logger.Info("API 服务器启动", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("API 服务器启动失败", "error", err)
	}
}

// statusFor 把业务错误映射到 HTTP 状态码
func statusFor(err error) int {
	var notFound *catalog.ConfigurationNotFoundError
	var notReady *session.NotReadyError
	var dupSlot *session.DuplicateScanError
	var dupBarcode *session.DuplicateBarcodeError
	var mismatch *session.VerificationMismatchError
	var slotMissing *session.SlotNotFoundError
	var sessMissing *session.NotFoundError
	var completed *session.AlreadyCompletedError
	var noSlot *session.NoOpenSlotError
	switch {
	case errors.As(err, &notFound), errors.As(err, &sessMissing):
		return http.StatusNotFound
	case errors.As(err, &notReady), errors.As(err, &completed), errors.As(err, &noSlot):
		return http.StatusConflict
	case errors.As(err, &dupSlot), errors.As(err, &dupBarcode), errors.As(err, &mismatch):
		return http.StatusUnprocessableEntity
	case errors.As(err, &slotMissing):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
