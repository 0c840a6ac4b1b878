package diag

import (
	"strconv"
	"strings"
	"sync"
)

// 进程内最小指标：
// - op_total{comp,stage,result}
// - error_total{comp,code}
// - op_duration_ms{comp,stage}（累计）
var (
	metricsMu sync.Mutex
	counters  = map[string]int64{}
)

func key(name string, labels ...string) string {
	return name + "{" + strings.Join(labels, ",") + "}"
}

func add(k string, v int64) {
	metricsMu.Lock()
	counters[k] += v
	metricsMu.Unlock()
}

// IncOp 累加操作计数（result=success|error）。
func IncOp(comp, stage, result string) { add(key("op_total", comp, stage, result), 1) }

// IncError 按分类累加错误计数。
func IncError(comp, code string) { add(key("error_total", comp, code), 1) }

// ObserveDuration 累计阶段耗时（毫秒）。
func ObserveDuration(comp, stage string, durMS int64) {
	add(key("op_duration_ms", comp, stage), durMS)
}

// Snapshot 返回当前指标的副本。
func Snapshot() map[string]int64 {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	out := make(map[string]int64, len(counters))
	for k, v := range counters {
		out[k] = v
	}
	return out
}

// SnapshotKV 以字符串键值返回指标，供日志输出。
func SnapshotKV() map[string]string {
	snap := Snapshot()
	out := make(map[string]string, len(snap))
	for k, v := range snap {
		out[k] = strconv.FormatInt(v, 10)
	}
	return out
}

// ResetMetrics 清空全部指标（测试用）。
func ResetMetrics() {
	metricsMu.Lock()
	counters = map[string]int64{}
	metricsMu.Unlock()
}
