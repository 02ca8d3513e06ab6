package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// AlertRule 定义一条完工告警规则
// Rule 为 expr 表达式，对每次完工的工单结算结果求值，命中则提示操作员
type AlertRule struct {
	Name    string `mapstructure:"name"`    // 规则名称
	Rule    string `mapstructure:"rule"`    // expr 表达式，返回布尔值
	Message string `mapstructure:"message"` // 命中时展示的提示语
}

// Config 定义应用程序的配置结构
// 使用 mapstructure 标签来映射配置文件中的字段
type Config struct {
	ListenAddr       string      `mapstructure:"listen_addr"`        // 操作台 HTTP 服务监听地址
	APIBaseURL       string      `mapstructure:"api_base_url"`       // 远程工单服务地址
	RequestTimeoutMs int         `mapstructure:"request_timeout_ms"` // 远程请求超时
	CacheDir         string      `mapstructure:"cache_dir"`          // 本地降级缓存目录
	Operator         string      `mapstructure:"operator"`           // 操作员标识，写入完工记录 completed_by
	PendingCap       int         `mapstructure:"pending_cap"`        // 待完工缓存容量
	CompletedCap     int         `mapstructure:"completed_cap"`      // 完工缓存容量
	LogCap           int         `mapstructure:"log_cap"`            // 操作日志缓存容量
	AlertRules       []AlertRule `mapstructure:"alert_rules"`        // 完工告警规则
}

// LoadConfig 从 config.yaml 文件加载配置
// 配置文件缺失时回退到默认值，保证操作台在裸机上也能启动
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config") // 配置文件名称 (不带扩展名)
	viper.SetConfigType("yaml")   // 配置文件类型
	viper.AddConfigPath(".")      // 查找配置文件的路径 (当前目录)

	// 设置默认值
	viper.SetDefault("listen_addr", ":8080")
	viper.SetDefault("api_base_url", "http://localhost:9090")
	viper.SetDefault("request_timeout_ms", 8000)
	viper.SetDefault("cache_dir", "./data")
	viper.SetDefault("operator", "operator-terminal")
	viper.SetDefault("pending_cap", 100)
	viper.SetDefault("completed_cap", 100)
	viper.SetDefault("log_cap", 1000)

	// 读取配置文件，文件不存在不算错误
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	// 将配置解析到结构体中
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	return &cfg, nil
}
