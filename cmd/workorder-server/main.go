package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"pcb-assembly-tracking/internal/types"
)

// itemMasterRow 物料主数据的一条记录
type itemMasterRow struct {
	ID       string `json:"id"`
	ItemCode string `json:"item_code"`
	Name     string `json:"name,omitempty"`
	Code     string `json:"code,omitempty"`
}

// server 内存版工单服务，覆盖操作台依赖的全部端点
// 用于演示和集成测试，不做鉴权，重启即清空
type server struct {
	logger *slog.Logger

	mu         sync.Mutex
	workOrders map[string]types.WorkOrder
	processes  map[string]map[string]any
	parts      map[string][]types.ScannedPart
	reworks    []types.ReworkRequest
	items      []itemMasterRow
	nextProc   int
}

// main 是工单服务的入口
func main() {
	port := ":9090"
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", "workorder-server")
	slog.SetDefault(logger)

	s := newServer(logger)
	logger.Info("=== 工单服务 (内存版) 启动 ===", "port", port)
	if err := http.ListenAndServe(port, s.routes()); err != nil {
		logger.Error("服务启动失败", "error", err)
	}
}

func newServer(logger *slog.Logger) *server {
	s := &server{
		logger:     logger,
		workOrders: make(map[string]types.WorkOrder),
		processes:  make(map[string]map[string]any),
		parts:      make(map[string][]types.ScannedPart),
	}
	s.seed()
	return s
}

// seed 预置演示数据：两条工单和常用物料的段位码
func (s *server) seed() {
	s.workOrders["WO-2026-001"] = types.WorkOrder{
		ID: "WO-2026-001", ItemCode: "5YB011057", Product: "YBS Duct Assembly",
		PCBType: "YBS", Quantity: 5, Status: types.StatusPending, ReleasedBy: "planner",
	}
	s.workOrders["WO-2026-002"] = types.WorkOrder{
		ID: "WO-2026-002", ItemCode: "5RS011027", Product: "RSM Duct Assembly",
		PCBType: "RSM", Quantity: 3, Status: types.StatusPending, ReleasedBy: "planner",
	}
	s.items = []itemMasterRow{
		{ID: "im-1", ItemCode: "5YB011057", Name: "YBS Assembly", Code: "24"},
		{ID: "im-2", ItemCode: "5RS011027", Name: "RSM Assembly", Code: "12"},
		{ID: "im-3", ItemCode: "4RS013097", Name: "Slave PCB", Code: "L1"},
		{ID: "im-4", ItemCode: "4RS013114", Name: "Master PCB", Code: "M1"},
		{ID: "im-5", ItemCode: "4RS013120", Name: "Slave to Slave Cable", Code: "C1"},
		{ID: "im-6", ItemCode: "4RS013121", Name: "Master to Slave Cable", Code: "C2"},
		{ID: "im-7", ItemCode: "4RS013122", Name: "Power & Communication Cable", Code: "C3"},
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/work-order/{id}/", s.getWorkOrder)
	mux.HandleFunc("PATCH /api/work-order/{id}/", s.patchWorkOrder)
	mux.HandleFunc("POST /api/work-order/", s.createWorkOrder)
	mux.HandleFunc("POST /api/work-order/{id}/complete_assembly/", s.completeAssembly)
	mux.HandleFunc("POST /api/work-order/{id}/create_rework/", s.createRework)
	mux.HandleFunc("POST /api/assembly-process/", s.createProcess)
	mux.HandleFunc("PATCH /api/assembly-process/{id}/", s.patchProcess)
	mux.HandleFunc("POST /api/assembly-process/{id}/add_scanned_part/", s.addScannedPart)
	mux.HandleFunc("GET /api/item-master/", s.searchItemMaster)
	return s.logRequests(mux)
}

// logRequests 记录每个请求并透传 Trace ID
func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := s.logger.With("method", r.Method, "path", r.URL.Path)
		if traceID := r.Header.Get("X-Trace-ID"); traceID != "" {
			logger = logger.With("trace_id", traceID)
		}
		logger.Info("接收到请求")
		next.ServeHTTP(w, r)
	})
}

func (s *server) getWorkOrder(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	wo, ok := s.workOrders[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "work order not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, wo)
}

func (s *server) patchWorkOrder(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	wo, ok := s.workOrders[r.PathValue("id")]
	if !ok {
		http.Error(w, "work order not found", http.StatusNotFound)
		return
	}
	if v, ok := fields["status"].(string); ok {
		wo.Status = types.WorkOrderStatus(v)
	}
	if v, ok := fields["completed_quantity"].(float64); ok {
		wo.CompletedQuantity = int(v)
	}
	s.workOrders[wo.ID] = wo
	writeJSON(w, http.StatusOK, wo)
}

func (s *server) createWorkOrder(w http.ResponseWriter, r *http.Request) {
	var wo types.WorkOrder
	if err := json.NewDecoder(r.Body).Decode(&wo); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if wo.ID == "" {
		wo.ID = "WO-" + time.Now().Format("20060102-150405.000")
	}
	s.mu.Lock()
	s.workOrders[wo.ID] = wo
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, wo)
}

func (s *server) completeAssembly(w http.ResponseWriter, r *http.Request) {
	var notice types.CompletionNotice
	if err := json.NewDecoder(r.Body).Decode(&notice); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if notice.AssemblyBarcode == "" {
		http.Error(w, "assembly_barcode is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	wo, ok := s.workOrders[r.PathValue("id")]
	if !ok {
		http.Error(w, "work order not found", http.StatusNotFound)
		return
	}
	s.logger.Info("收到完工通知", "work_order_id", wo.ID,
		"assembly_barcode", notice.AssemblyBarcode, "completed_by", notice.CompletedBy,
		"scanned_components", len(notice.ScannedComponents))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) createRework(w http.ResponseWriter, r *http.Request) {
	var req types.ReworkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Quantity <= 0 {
		http.Error(w, "quantity must be positive", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	wo, ok := s.workOrders[r.PathValue("id")]
	if !ok {
		http.Error(w, "work order not found", http.StatusNotFound)
		return
	}
	s.reworks = append(s.reworks, req)
	s.logger.Info("收到返工登记", "work_order_id", wo.ID,
		"notes", req.Notes, "released_by", req.ReleasedBy)
	// 返工把工单退回进行中
	if wo.Status == types.StatusCompleted {
		wo.Status = types.StatusInProgress
		if wo.CompletedQuantity > 0 {
			wo.CompletedQuantity--
		}
		s.workOrders[wo.ID] = wo
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"work_order_id": wo.ID,
		"quantity":      req.Quantity,
		"notes":         req.Notes,
		"released_by":   req.ReleasedBy,
	})
}

func (s *server) createProcess(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.nextProc++
	id := fmt.Sprintf("proc-%d", s.nextProc)
	payload["id"] = id
	s.processes[id] = payload
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, payload)
}

func (s *server) patchProcess(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	proc, ok := s.processes[r.PathValue("id")]
	if !ok {
		http.Error(w, "assembly process not found", http.StatusNotFound)
		return
	}
	for k, v := range fields {
		proc[k] = v
	}
	writeJSON(w, http.StatusOK, proc)
}

func (s *server) addScannedPart(w http.ResponseWriter, r *http.Request) {
	var part types.ScannedPart
	if err := json.NewDecoder(r.Body).Decode(&part); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := r.PathValue("id")
	if _, ok := s.processes[id]; !ok {
		http.Error(w, "assembly process not found", http.StatusNotFound)
		return
	}
	s.parts[id] = append(s.parts[id], part)
	writeJSON(w, http.StatusCreated, part)
}

func (s *server) searchItemMaster(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")
	s.mu.Lock()
	defer s.mu.Unlock()

	var results []itemMasterRow
	for _, item := range s.items {
		if search == "" || strings.Contains(item.ItemCode, search) {
			results = append(results, item)
		}
	}
	// 与真实服务一致，返回分页对象
	writeJSON(w, http.StatusOK, map[string]any{"count": len(results), "results": results})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
