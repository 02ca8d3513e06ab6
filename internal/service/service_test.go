package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pcb-assembly-tracking/internal/cache"
	"pcb-assembly-tracking/internal/catalog"
	"pcb-assembly-tracking/internal/client"
	"pcb-assembly-tracking/internal/event"
	"pcb-assembly-tracking/internal/session"
	"pcb-assembly-tracking/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// backendCounters 统计 stub 工单服务收到的关键请求，并留存请求体供断言
type backendCounters struct {
	completeAssembly atomic.Int64
	createRework     atomic.Int64
	scannedParts     atomic.Int64
	failWorkOrder    atomic.Bool // 置位后 GET work-order 返回 500，模拟远程劣化

	mu             sync.Mutex
	completionBody map[string]json.RawMessage
	reworkBody     map[string]json.RawMessage
	processPatch   map[string]json.RawMessage
}

func captureBody(r *http.Request, mu *sync.Mutex, dst *map[string]json.RawMessage) {
	var body map[string]json.RawMessage
	_ = json.NewDecoder(r.Body).Decode(&body)
	mu.Lock()
	*dst = body
	mu.Unlock()
}

// newBackend 模拟远程工单服务，覆盖完工流水线依赖的全部端点
func newBackend(t *testing.T, counters *backendCounters) *httptest.Server {
	t.Helper()
	workOrder := types.WorkOrder{
		ID: "WO-1", ItemCode: "5RS011093", Product: "RSM Duct Assembly",
		PCBType: "RSM", Quantity: 2, Status: types.StatusPending,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/work-order/WO-1/", func(w http.ResponseWriter, r *http.Request) {
		if counters.failWorkOrder.Load() {
			http.Error(w, "backend down", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(workOrder)
	})
	mux.HandleFunc("PATCH /api/work-order/WO-1/", func(w http.ResponseWriter, r *http.Request) {
		var fields map[string]any
		_ = json.NewDecoder(r.Body).Decode(&fields)
		if v, ok := fields["completed_quantity"].(float64); ok {
			workOrder.CompletedQuantity = int(v)
		}
		if v, ok := fields["status"].(string); ok {
			workOrder.Status = types.WorkOrderStatus(v)
		}
		json.NewEncoder(w).Encode(workOrder)
	})
	mux.HandleFunc("POST /api/work-order/WO-1/complete_assembly/", func(w http.ResponseWriter, r *http.Request) {
		counters.completeAssembly.Add(1)
		captureBody(r, &counters.mu, &counters.completionBody)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /api/work-order/WO-1/create_rework/", func(w http.ResponseWriter, r *http.Request) {
		counters.createRework.Add(1)
		captureBody(r, &counters.mu, &counters.reworkBody)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /api/assembly-process/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "proc-1"})
	})
	mux.HandleFunc("PATCH /api/assembly-process/proc-1/", func(w http.ResponseWriter, r *http.Request) {
		captureBody(r, &counters.mu, &counters.processPatch)
		json.NewEncoder(w).Encode(map[string]string{"id": "proc-1"})
	})
	mux.HandleFunc("POST /api/assembly-process/proc-1/add_scanned_part/", func(w http.ResponseWriter, r *http.Request) {
		counters.scannedParts.Add(1)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /api/item-master/", func(w http.ResponseWriter, r *http.Request) {
		search := r.URL.Query().Get("search")
		results := []client.ItemMaster{}
		if search == "5RS011093" {
			results = append(results, client.ItemMaster{ID: "im-1", ItemCode: "5RS011093", Code: "12"})
		}
		json.NewEncoder(w).Encode(map[string]any{"results": results})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestService(t *testing.T, baseURL string) *CompletionService {
	t.Helper()
	store, err := cache.NewStore(t.TempDir(), cache.DefaultCaps, testLogger())
	if err != nil {
		t.Fatalf("初始化缓存失败: %v", err)
	}
	cli := client.New(baseURL, 2*time.Second, testLogger())
	return New(catalog.New(), session.NewRegistry(), cli, store, event.NewBus(), "tester", testLogger())
}

// completeOne 开工并扫满一台 5RS011093（4 个元件位）
func completeOne(t *testing.T, svc *CompletionService, workOrderID string) *session.Session {
	t.Helper()
	sess, err := svc.StartSession(context.Background(), "5RS011093", workOrderID)
	if err != nil {
		t.Fatalf("开工失败: %v", err)
	}
	for i := 1; i <= 4; i++ {
		if _, err := svc.Scan(context.Background(), sess.ID, fmt.Sprintf("BARCODE-%02d", i)); err != nil {
			t.Fatalf("扫描 %d 失败: %v", i, err)
		}
	}
	return sess
}

func TestCompletePipeline(t *testing.T) {
	var counters backendCounters
	backend := newBackend(t, &counters)
	svc := newTestService(t, backend.URL)

	sess := completeOne(t, svc, "WO-1")
	result, err := svc.CompleteAssembly(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("完工失败: %v", err)
	}

	if !result.Success || !result.PersistedRemotely {
		t.Fatalf("完工结果异常: %+v", result)
	}
	if len(result.AssemblyBarcode) != 11 {
		t.Fatalf("条码长度 = %d, 期望 11", len(result.AssemblyBarcode))
	}
	// 第 5-6 位是物料主数据下发的段位码
	if result.AssemblyBarcode[4:6] != "12" {
		t.Errorf("条码段位码 = %s, 期望 12", result.AssemblyBarcode[4:6])
	}
	if result.WorkOrderOutcome == nil {
		t.Fatal("关联工单的完工必须带数量结算")
	}
	if result.WorkOrderOutcome.WorkOrder.CompletedQuantity != 1 {
		t.Errorf("完成数量 = %d, 期望 1", result.WorkOrderOutcome.WorkOrder.CompletedQuantity)
	}
	if result.WorkOrderOutcome.Remaining != 1 {
		t.Errorf("剩余数量 = %d, 期望 1", result.WorkOrderOutcome.Remaining)
	}
	if counters.completeAssembly.Load() != 1 {
		t.Errorf("完工通知次数 = %d, 期望 1", counters.completeAssembly.Load())
	}
	if counters.scannedParts.Load() != 4 {
		t.Errorf("扫描明细上报数 = %d, 期望 4", counters.scannedParts.Load())
	}
}

// TestRemotePayloadContract 远程请求体字段名与工单服务的约定一致
func TestRemotePayloadContract(t *testing.T) {
	var counters backendCounters
	backend := newBackend(t, &counters)
	svc := newTestService(t, backend.URL)

	sess := completeOne(t, svc, "WO-1")
	if _, err := svc.CompleteAssembly(context.Background(), sess.ID); err != nil {
		t.Fatalf("完工失败: %v", err)
	}

	counters.mu.Lock()
	completion := counters.completionBody
	patch := counters.processPatch
	counters.mu.Unlock()

	for _, key := range []string{"assembly_barcode", "scanned_components", "completed_by", "start_time", "quality_notes"} {
		if _, ok := completion[key]; !ok {
			t.Errorf("complete_assembly 请求体缺少字段 %s, 实际 %v", key, keysOf(completion))
		}
	}
	var components []types.ScannedPart
	if err := json.Unmarshal(completion["scanned_components"], &components); err != nil || len(components) != 4 {
		t.Errorf("scanned_components 解析失败或数量错误: %v, %v", err, components)
	}

	var metadata struct {
		ScannedComponents []types.ScannedPart `json:"scanned_components"`
	}
	raw, ok := patch["metadata"]
	if !ok {
		t.Fatalf("装配过程回写缺少 metadata, 实际 %v", keysOf(patch))
	}
	if err := json.Unmarshal(raw, &metadata); err != nil || len(metadata.ScannedComponents) != 4 {
		t.Errorf("metadata.scanned_components 解析失败或数量错误: %v, %v", err, metadata.ScannedComponents)
	}

	completed := svc.store.Completed()
	if len(completed) != 1 {
		t.Fatalf("完工记录数 = %d", len(completed))
	}
	if _, err := svc.HandleRework(context.Background(), completed[0].AssemblyID, "外观不良"); err != nil {
		t.Fatalf("返工失败: %v", err)
	}

	counters.mu.Lock()
	rework := counters.reworkBody
	counters.mu.Unlock()
	for _, key := range []string{"quantity", "notes", "released_by"} {
		if _, ok := rework[key]; !ok {
			t.Errorf("create_rework 请求体缺少字段 %s, 实际 %v", key, keysOf(rework))
		}
	}
	var notes string
	if err := json.Unmarshal(rework["notes"], &notes); err != nil || notes != "外观不良" {
		t.Errorf("notes = %q, 期望返工原因", notes)
	}
}

func keysOf(body map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	return keys
}

// TestCompleteIdempotent 重复完工返回首次结果，不产生第二次远程调用
func TestCompleteIdempotent(t *testing.T) {
	var counters backendCounters
	backend := newBackend(t, &counters)
	svc := newTestService(t, backend.URL)

	sess := completeOne(t, svc, "WO-1")
	first, err := svc.CompleteAssembly(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("首次完工失败: %v", err)
	}
	second, err := svc.CompleteAssembly(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("重复完工失败: %v", err)
	}

	if first.AssemblyBarcode != second.AssemblyBarcode {
		t.Errorf("重复完工条码不一致: %s vs %s", first.AssemblyBarcode, second.AssemblyBarcode)
	}
	if counters.completeAssembly.Load() != 1 {
		t.Errorf("完工通知次数 = %d, 重复完工不应再次通知", counters.completeAssembly.Load())
	}
}

// TestCompleteRemoteDown 远程服务不可用：完工依然成功，记录落本地缓存
func TestCompleteRemoteDown(t *testing.T) {
	svc := newTestService(t, "http://127.0.0.1:1")

	sess := completeOne(t, svc, "WO-1")
	result, err := svc.CompleteAssembly(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("远程失败不应导致完工失败: %v", err)
	}

	if !result.Success {
		t.Fatal("完工应当成功")
	}
	if result.PersistedRemotely {
		t.Fatal("远程不可用时不应报告已持久化")
	}
	if result.Message == "" {
		t.Fatal("降级完工应当带操作员提示")
	}
	// 段位码回退到 RSM 兜底值
	if result.AssemblyBarcode[4:6] != "12" {
		t.Errorf("条码段位码 = %s, 期望兜底值 12", result.AssemblyBarcode[4:6])
	}

	completed := svc.store.Completed()
	if len(completed) != 1 {
		t.Fatalf("本地完工记录数 = %d, 期望 1", len(completed))
	}
	if completed[0].Barcode != result.AssemblyBarcode {
		t.Error("本地记录条码与返回结果不一致")
	}
	if len(svc.store.Pending()) != 0 {
		t.Error("在制记录应当已移入完工桶")
	}
}

// TestCompleteDegradedOutcome 完工时工单读不到：按开工快照结算，操作员仍能看到剩余数量
func TestCompleteDegradedOutcome(t *testing.T) {
	var counters backendCounters
	backend := newBackend(t, &counters)
	svc := newTestService(t, backend.URL)

	sess := completeOne(t, svc, "WO-1")
	counters.failWorkOrder.Store(true)

	result, err := svc.CompleteAssembly(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("降级完工失败: %v", err)
	}
	if result.PersistedRemotely {
		t.Fatal("工单读取失败时不应报告已持久化")
	}
	if result.WorkOrderOutcome == nil {
		t.Fatal("开工时已知工单计数，降级完工仍应带本地结算")
	}
	if result.WorkOrderOutcome.WorkOrder.CompletedQuantity != 1 {
		t.Errorf("完成数量 = %d, 期望 1", result.WorkOrderOutcome.WorkOrder.CompletedQuantity)
	}
	if result.WorkOrderOutcome.Remaining != 1 {
		t.Errorf("剩余数量 = %d, 期望 1", result.WorkOrderOutcome.Remaining)
	}
	if result.Message == "" {
		t.Fatal("降级完工应当带操作员提示")
	}
}

// TestAbandonClearsPending 放弃会话要清掉开工时写入的在制缓存记录
func TestAbandonClearsPending(t *testing.T) {
	backend := newBackend(t, &backendCounters{})
	svc := newTestService(t, backend.URL)

	sess, err := svc.StartSession(context.Background(), "5RS011093", "WO-1")
	if err != nil {
		t.Fatalf("开工失败: %v", err)
	}
	if len(svc.store.Pending()) != 1 {
		t.Fatal("开工后在制桶应有一条记录")
	}

	if err := svc.AbandonSession(sess.ID); err != nil {
		t.Fatalf("放弃会话失败: %v", err)
	}
	if len(svc.store.Pending()) != 0 {
		t.Error("放弃会话后在制记录应被清理")
	}
	if _, err := svc.Registry().Get(sess.ID); err == nil {
		t.Error("放弃的会话不应留在会话表中")
	}
}

func TestCompleteNotReady(t *testing.T) {
	backend := newBackend(t, &backendCounters{})
	svc := newTestService(t, backend.URL)

	sess, err := svc.StartSession(context.Background(), "5RS011093", "")
	if err != nil {
		t.Fatalf("开工失败: %v", err)
	}
	_, err = svc.CompleteAssembly(context.Background(), sess.ID)
	var notReady *session.NotReadyError
	if !errors.As(err, &notReady) {
		t.Fatalf("期望 NotReadyError, 实际 %v", err)
	}
}

// TestHandleRework 返工：完工记录移回在制桶并累加返工次数
func TestHandleRework(t *testing.T) {
	var counters backendCounters
	backend := newBackend(t, &counters)
	svc := newTestService(t, backend.URL)

	sess := completeOne(t, svc, "WO-1")
	result, err := svc.CompleteAssembly(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("完工失败: %v", err)
	}
	completed := svc.store.Completed()
	if len(completed) != 1 {
		t.Fatalf("完工记录数 = %d", len(completed))
	}

	reworked, err := svc.HandleRework(context.Background(), completed[0].AssemblyID, "传感器虚焊")
	if err != nil {
		t.Fatalf("返工失败: %v", err)
	}
	if !reworked.IsRework || reworked.ReworkCount != 1 {
		t.Errorf("返工标记异常: is_rework=%v count=%d", reworked.IsRework, reworked.ReworkCount)
	}
	if reworked.Barcode != result.AssemblyBarcode {
		t.Error("返工记录应保留原条码")
	}
	if len(svc.store.Completed()) != 0 {
		t.Error("完工桶应当已清空")
	}
	pending := svc.store.Pending()
	if len(pending) != 1 || pending[0].ReworkReason != "传感器虚焊" {
		t.Fatalf("在制桶内容错误: %+v", pending)
	}
	if counters.createRework.Load() != 1 {
		t.Errorf("远程返工登记次数 = %d, 期望 1", counters.createRework.Load())
	}
}

// TestHandleReworkMissingRecord 本地记录缺失时返工仍然成立
func TestHandleReworkMissingRecord(t *testing.T) {
	backend := newBackend(t, &backendCounters{})
	svc := newTestService(t, backend.URL)

	reworked, err := svc.HandleRework(context.Background(), "ghost-assembly", "记录丢失")
	if err != nil {
		t.Fatalf("缺失记录的返工不应报错: %v", err)
	}
	if reworked.ReworkCount != 1 {
		t.Errorf("返工次数 = %d, 期望 1", reworked.ReworkCount)
	}
}
