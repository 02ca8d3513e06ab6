package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"pcb-assembly-tracking/internal/metrics"
	"pcb-assembly-tracking/internal/types"
	"pcb-assembly-tracking/internal/util"
)

// ErrNotFound 远程服务返回 404，目标资源不存在
var ErrNotFound = errors.New("资源不存在")

// RemotePersistenceError 远程工单服务调用失败
// 调用方据此降级到本地缓存，而不是中断操作员流程
type RemotePersistenceError struct {
	Endpoint string
	Err      error
}

func (e *RemotePersistenceError) Error() string {
	return fmt.Sprintf("远程持久化失败 %s: %v", e.Endpoint, e.Err)
}

func (e *RemotePersistenceError) Unwrap() error { return e.Err }

// WorkOrderNotFoundError 远程服务中不存在指定工单
type WorkOrderNotFoundError struct {
	WorkOrderID string
}

func (e *WorkOrderNotFoundError) Error() string {
	return fmt.Sprintf("工单不存在: %s", e.WorkOrderID)
}

// ItemMaster 物料主数据中的一条记录
type ItemMaster struct {
	ID       string `json:"id"`
	ItemCode string `json:"item_code"`
	Name     string `json:"name,omitempty"`
	Code     string `json:"code,omitempty"` // 条码段位码 / 校验码
}

// Client 远程工单服务的 HTTP 客户端
// 服务端基于会话 Cookie 做 CSRF 防护，这里用 CookieJar 保存并回带令牌
type Client struct {
	BaseURL string
	Client  *http.Client
	logger  *slog.Logger
}

// New 创建工单服务客户端
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	jar, _ := cookiejar.New(nil)
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout, Jar: jar},
		logger:  logger.With("component", "workorder_client"),
	}
}

// do 发送请求并解析 JSON 响应，统一处理追踪头、CSRF 头和耗时指标
func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	logger := c.logger
	if traceID, ok := util.TraceIDFromContext(ctx); ok {
		logger = logger.With("trace_id", traceID)
	}

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return &RemotePersistenceError{Endpoint: endpoint, Err: err}
		}
		reqBody = bytes.NewBuffer(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.BaseURL+endpoint, reqBody)
	if err != nil {
		return &RemotePersistenceError{Endpoint: endpoint, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	// 将 Trace ID 放入 HTTP Header 中，实现跨服务追踪
	if traceID, ok := util.TraceIDFromContext(ctx); ok {
		httpReq.Header.Set("X-Trace-ID", traceID)
	}
	// 写操作回带服务端下发的 CSRF 令牌
	if method != http.MethodGet {
		if token := c.csrfToken(); token != "" {
			httpReq.Header.Set("X-CSRFToken", token)
		}
	}

	start := time.Now()
	resp, err := c.Client.Do(httpReq)
	metrics.RemoteRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		logger.Error("远程调用失败", "method", method, "endpoint", endpoint, "error", err)
		return &RemotePersistenceError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &RemotePersistenceError{Endpoint: endpoint, Err: ErrNotFound}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Error("远程服务返回错误状态", "method", method, "endpoint", endpoint, "status", resp.Status)
		return &RemotePersistenceError{Endpoint: endpoint, Err: fmt.Errorf("远程服务错误: %s", resp.Status)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			logger.Error("解析远程响应失败", "endpoint", endpoint, "error", err)
			return &RemotePersistenceError{Endpoint: endpoint, Err: fmt.Errorf("解析响应失败: %w", err)}
		}
	}
	return nil
}

// csrfToken 从 CookieJar 中取出服务端下发的 csrftoken
func (c *Client) csrfToken() string {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return ""
	}
	for _, cookie := range c.Client.Jar.Cookies(u) {
		if cookie.Name == "csrftoken" {
			return cookie.Value
		}
	}
	return ""
}

// GetWorkOrder 读取一条工单
func (c *Client) GetWorkOrder(ctx context.Context, id string) (types.WorkOrder, error) {
	var wo types.WorkOrder
	endpoint := fmt.Sprintf("/api/work-order/%s/", id)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &wo); err != nil {
		// GET 的 404 转换成明确的工单缺失错误
		if errors.Is(err, ErrNotFound) {
			return types.WorkOrder{}, &WorkOrderNotFoundError{WorkOrderID: id}
		}
		return types.WorkOrder{}, err
	}
	return wo, nil
}

// UpdateWorkOrder 部分更新一条工单（数量、状态等字段）
func (c *Client) UpdateWorkOrder(ctx context.Context, id string, fields map[string]any) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/work-order/%s/", id), fields, nil)
}

// CompleteAssembly 通知工单服务一台装配完工，服务端据此累加工单数量
func (c *Client) CompleteAssembly(ctx context.Context, workOrderID string, notice types.CompletionNotice) error {
	endpoint := fmt.Sprintf("/api/work-order/%s/complete_assembly/", workOrderID)
	return c.do(ctx, http.MethodPost, endpoint, notice, nil)
}

// CreateAssemblyProcess 开工时登记一条装配过程记录，返回远程记录 ID
func (c *Client) CreateAssemblyProcess(ctx context.Context, payload map[string]any) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/assembly-process/", payload, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// UpdateAssemblyProcess 部分更新装配过程记录（完工时间、条码等）
func (c *Client) UpdateAssemblyProcess(ctx context.Context, id string, fields map[string]any) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/assembly-process/%s/", id), fields, nil)
}

// AddScannedPart 上报一条扫描明细
func (c *Client) AddScannedPart(ctx context.Context, processID string, part types.ScannedPart) error {
	endpoint := fmt.Sprintf("/api/assembly-process/%s/add_scanned_part/", processID)
	return c.do(ctx, http.MethodPost, endpoint, part, nil)
}

// CreateRework 在远程服务登记一条返工
func (c *Client) CreateRework(ctx context.Context, workOrderID string, req types.ReworkRequest) error {
	endpoint := fmt.Sprintf("/api/work-order/%s/create_rework/", workOrderID)
	return c.do(ctx, http.MethodPost, endpoint, req, nil)
}

// CreateWorkOrder 创建一条工单（返工且原工单缺失时的兜底路径）
func (c *Client) CreateWorkOrder(ctx context.Context, wo types.WorkOrder) error {
	return c.do(ctx, http.MethodPost, "/api/work-order/", wo, nil)
}

// SearchItemMaster 按物料编码检索物料主数据
// 服务端可能返回裸数组或分页对象，两种格式都接受
func (c *Client) SearchItemMaster(ctx context.Context, search string) ([]ItemMaster, error) {
	endpoint := "/api/item-master/?search=" + url.QueryEscape(search)
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &raw); err != nil {
		return nil, err
	}

	var items []ItemMaster
	if err := json.Unmarshal(raw, &items); err == nil {
		return items, nil
	}
	var paged struct {
		Results []ItemMaster `json:"results"`
	}
	if err := json.Unmarshal(raw, &paged); err != nil {
		return nil, &RemotePersistenceError{Endpoint: endpoint, Err: fmt.Errorf("解析响应失败: %w", err)}
	}
	return paged.Results, nil
}
