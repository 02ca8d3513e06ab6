package handlers

import (
	"fmt"
	"log/slog"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"

	"pcb-assembly-tracking/internal/config"
	"pcb-assembly-tracking/internal/types"
)

// compiledRule 一条编译好的告警规则
type compiledRule struct {
	name    string
	message string
	program *vm.Program
}

// AlertEvaluator 完工告警评估器
// 规则在启动时编译一次，每次完工对结算结果求值，命中即提示操作员
type AlertEvaluator struct {
	rules  []compiledRule
	logger *slog.Logger
}

// NewAlertEvaluator 编译配置中的全部告警规则，编译失败的规则跳过并告警
func NewAlertEvaluator(rules []config.AlertRule, logger *slog.Logger) *AlertEvaluator {
	ae := &AlertEvaluator{logger: logger.With("component", "alert_evaluator")}
	for _, r := range rules {
		if r.Rule == "" {
			continue
		}
		program, err := expr.Compile(r.Rule, expr.Env(alertEnv(types.WorkOrderOutcome{})))
		if err != nil {
			ae.logger.Error("告警规则编译失败，已跳过", "rule", r.Name, "error", err)
			continue
		}
		ae.rules = append(ae.rules, compiledRule{name: r.Name, message: r.Message, program: program})
	}
	return ae
}

// alertEnv 规则求值环境：order 为工单、outcome 为结算结果
func alertEnv(outcome types.WorkOrderOutcome) map[string]interface{} {
	return map[string]interface{}{
		"order":   outcome.WorkOrder,
		"outcome": outcome,
	}
}

// Evaluate 对一次完工结算求值，返回全部命中规则的提示语
func (ae *AlertEvaluator) Evaluate(outcome types.WorkOrderOutcome) []string {
	var notices []string
	env := alertEnv(outcome)
	for _, rule := range ae.rules {
		result, err := expr.Run(rule.program, env)
		if err != nil {
			ae.logger.Error("告警规则求值失败", "rule", rule.name, "error", err)
			continue
		}
		hit, ok := result.(bool)
		if !ok {
			ae.logger.Error("告警规则结果不是布尔值", "rule", rule.name)
			continue
		}
		if hit {
			notices = append(notices, fmt.Sprintf("[%s] %s", rule.name, rule.message))
		}
	}
	return notices
}
