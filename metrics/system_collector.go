package metrics

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"leadwatch/logger"
)

// SystemMetricsCollector 进程与运行时指标采集器
type SystemMetricsCollector struct {
	pm       *PrometheusMetrics
	interval time.Duration
	proc     *process.Process // 获取失败时为 nil，只采集运行时指标
	lastGC   uint32
}

// NewSystemMetricsCollector 创建系统指标采集器
func NewSystemMetricsCollector(interval time.Duration) *SystemMetricsCollector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	smc := &SystemMetricsCollector{
		pm:       GetPrometheusMetrics(),
		interval: interval,
	}
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warn("⚠️ 获取进程信息失败，CPU/RSS 指标不可用: %v", err)
	} else {
		smc.proc = p
	}
	return smc
}

// Run 周期采集，直到 ctx 结束
func (smc *SystemMetricsCollector) Run(ctx context.Context) {
	ticker := time.NewTicker(smc.interval)
	defer ticker.Stop()

	// 立即采集一次
	smc.collect()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			smc.collect()
		}
	}
}

func (smc *SystemMetricsCollector) collect() {
	smc.collectProcess()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	smc.pm.SetGoroutineCount(runtime.NumGoroutine())
	smc.pm.SetMemoryAlloc(m.Alloc)

	// PauseNs 是循环缓冲区，只记录上次采集之后新增的 GC
	if m.NumGC > smc.lastGC {
		idx := (m.NumGC + 255) % 256
		if pauseNs := m.PauseNs[idx]; pauseNs > 0 {
			smc.pm.RecordGCPause(time.Duration(pauseNs))
		}
		smc.lastGC = m.NumGC
	}
}

// collectProcess 采集进程 CPU 和常驻内存
func (smc *SystemMetricsCollector) collectProcess() {
	if smc.proc == nil {
		return
	}
	// interval 为 0 时与上一次调用比较，首次调用返回 0
	if cpu, err := smc.proc.Percent(0); err == nil {
		smc.pm.SetProcessCPUPercent(cpu)
	} else {
		logger.Debug("获取进程 CPU 失败: %v", err)
	}
	if mem, err := smc.proc.MemoryInfo(); err == nil {
		smc.pm.SetProcessRSS(mem.RSS)
	} else {
		logger.Debug("获取进程内存失败: %v", err)
	}
}
