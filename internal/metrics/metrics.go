package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 定义 Prometheus 监控指标
var (
	// ScansTotal 计数器：扫描总数
	// 按结果 (accepted/duplicate_slot/duplicate_barcode/mismatch) 分类
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assembly_scans_total",
		Help: "The total number of barcode scans by result",
	}, []string{"result"})

	// AssembliesCompletedTotal 计数器：完工装配总数
	// 按产品系列和装配类型分类
	AssembliesCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assemblies_completed_total",
		Help: "The total number of completed assemblies",
	}, []string{"family", "type"})

	// ReworksTotal 计数器：返工登记总数
	ReworksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assembly_reworks_total",
		Help: "The total number of assemblies sent back for rework",
	})

	// ActiveSessions 仪表盘：当前进行中的装配会话数量
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "assembly_active_sessions",
		Help: "The number of assembly sessions currently in progress",
	})

	// RemoteRequestDuration 直方图：远程工单服务请求耗时分布
	// 用于发现远程服务劣化，产线依赖本地降级时应当报警
	RemoteRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "remote_request_duration_seconds",
		Help:    "Time spent on work-order backend requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)
