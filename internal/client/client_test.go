package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"pcb-assembly-tracking/internal/types"
	"pcb-assembly-tracking/internal/util"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestTraceIDHeader Context 里的 Trace ID 要随请求带到远程服务
func TestTraceIDHeader(t *testing.T) {
	var gotTrace string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTrace = r.Header.Get("X-Trace-ID")
		json.NewEncoder(w).Encode(types.WorkOrder{ID: "WO-1"})
	}))
	defer server.Close()

	c := New(server.URL, time.Second, testLogger())
	ctx := util.ContextWithTraceID(context.Background(), "trace-abc")
	if _, err := c.GetWorkOrder(ctx, "WO-1"); err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	if gotTrace != "trace-abc" {
		t.Errorf("X-Trace-ID = %q, 期望 trace-abc", gotTrace)
	}
}

// TestCSRFTokenRoundTrip 服务端下发的 csrftoken 要在写操作时回带
func TestCSRFTokenRoundTrip(t *testing.T) {
	var gotToken string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/work-order/WO-1/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "tok-123"})
		json.NewEncoder(w).Encode(types.WorkOrder{ID: "WO-1"})
	})
	mux.HandleFunc("PATCH /api/work-order/WO-1/", func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-CSRFToken")
		json.NewEncoder(w).Encode(types.WorkOrder{ID: "WO-1"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := New(server.URL, time.Second, testLogger())
	if _, err := c.GetWorkOrder(context.Background(), "WO-1"); err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if err := c.UpdateWorkOrder(context.Background(), "WO-1", map[string]any{"status": "In Progress"}); err != nil {
		t.Fatalf("更新失败: %v", err)
	}
	if gotToken != "tok-123" {
		t.Errorf("X-CSRFToken = %q, 期望 tok-123", gotToken)
	}
}

// TestGetWorkOrderNotFound 404 转换成 WorkOrderNotFoundError
func TestGetWorkOrderNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	c := New(server.URL, time.Second, testLogger())
	_, err := c.GetWorkOrder(context.Background(), "ghost")
	var notFound *WorkOrderNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("期望 WorkOrderNotFoundError, 实际 %v", err)
	}
}

// TestSearchItemMasterFormats 裸数组和分页对象两种响应格式都能解析
func TestSearchItemMasterFormats(t *testing.T) {
	paged := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []ItemMaster{{ID: "1", ItemCode: "5YB011057", Code: "24"}},
		})
	}))
	defer paged.Close()

	c := New(paged.URL, time.Second, testLogger())
	items, err := c.SearchItemMaster(context.Background(), "5YB011057")
	if err != nil || len(items) != 1 || items[0].Code != "24" {
		t.Fatalf("分页格式解析失败: %+v, %v", items, err)
	}

	plain := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]ItemMaster{{ID: "2", ItemCode: "4RS013097", Code: "L1"}})
	}))
	defer plain.Close()

	c = New(plain.URL, time.Second, testLogger())
	items, err = c.SearchItemMaster(context.Background(), "4RS013097")
	if err != nil || len(items) != 1 || items[0].Code != "L1" {
		t.Fatalf("裸数组格式解析失败: %+v, %v", items, err)
	}
}

// TestWirePayloadFieldNames 完工通知和返工登记序列化出约定的字段名
func TestWirePayloadFieldNames(t *testing.T) {
	var mu sync.Mutex
	bodies := map[string]map[string]json.RawMessage{}
	capture := func(name string, r *http.Request) {
		var body map[string]json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		bodies[name] = body
		mu.Unlock()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/work-order/WO-1/complete_assembly/", func(w http.ResponseWriter, r *http.Request) {
		capture("complete", r)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /api/work-order/WO-1/create_rework/", func(w http.ResponseWriter, r *http.Request) {
		capture("rework", r)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := New(server.URL, time.Second, testLogger())
	notice := types.CompletionNotice{
		AssemblyBarcode: "11112411111",
		ScannedComponents: []types.ScannedPart{
			{Name: "Left Slave PCB", ItemCode: "4YB013250", Barcode: "V22CL0065", Sequence: 1},
		},
		CompletedBy:  "tester",
		StartTime:    time.Now(),
		QualityNotes: "ok",
	}
	if err := c.CompleteAssembly(context.Background(), "WO-1", notice); err != nil {
		t.Fatalf("完工通知失败: %v", err)
	}
	if err := c.CreateRework(context.Background(), "WO-1", types.ReworkRequest{
		Quantity: 1, Notes: "复测不良", ReleasedBy: "tester",
	}); err != nil {
		t.Fatalf("返工登记失败: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, key := range []string{"assembly_barcode", "scanned_components", "completed_by", "start_time", "quality_notes"} {
		if _, ok := bodies["complete"][key]; !ok {
			t.Errorf("complete_assembly 请求体缺少字段 %s", key)
		}
	}
	for _, key := range []string{"quantity", "notes", "released_by"} {
		if _, ok := bodies["rework"][key]; !ok {
			t.Errorf("create_rework 请求体缺少字段 %s", key)
		}
	}
}

// TestRemotePersistenceError 连接失败包装成 RemotePersistenceError
func TestRemotePersistenceError(t *testing.T) {
	c := New("http://127.0.0.1:1", 500*time.Millisecond, testLogger())
	err := c.UpdateWorkOrder(context.Background(), "WO-1", map[string]any{"status": "Completed"})
	var remote *RemotePersistenceError
	if !errors.As(err, &remote) {
		t.Fatalf("期望 RemotePersistenceError, 实际 %v", err)
	}
}
