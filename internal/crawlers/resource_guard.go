package crawlers

import (
	"fmt"
	"time"

	"github.com/RecoveryAshes/InsightCrawler/internal/utils"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceGuard 启动浏览器前的系统资源检查
// 内存不足或CPU过载时拒绝启动新的浏览器进程
type ResourceGuard struct {
	// MinAvailableMemory 最低可用内存(字节),0表示不检查
	MinAvailableMemory uint64
	// CPULoadThreshold CPU使用率上限(%),0表示不检查
	CPULoadThreshold float64

	virtualMemory func() (*mem.VirtualMemoryStat, error)
	cpuPercent    func(interval time.Duration, percpu bool) ([]float64, error)
}

// NewResourceGuard 创建资源检查器
func NewResourceGuard(minAvailableMB int, cpuLoadThreshold int) *ResourceGuard {
	return &ResourceGuard{
		MinAvailableMemory: uint64(minAvailableMB) * 1024 * 1024,
		CPULoadThreshold:   float64(cpuLoadThreshold),
		virtualMemory:      mem.VirtualMemory,
		cpuPercent:         cpu.Percent,
	}
}

// Check 资源充足时返回nil
// 读取系统指标失败时放行
func (g *ResourceGuard) Check() error {
	if g.MinAvailableMemory > 0 {
		vm, err := g.virtualMemory()
		if err != nil {
			utils.Debugf("获取系统内存失败,跳过内存检查: %v", err)
		} else if vm.Available < g.MinAvailableMemory {
			return fmt.Errorf("可用内存不足: %.0fMB (最低 %.0fMB), 暂不启动浏览器",
				float64(vm.Available)/(1024*1024), float64(g.MinAvailableMemory)/(1024*1024))
		}
	}

	if g.CPULoadThreshold > 0 {
		percents, err := g.cpuPercent(200*time.Millisecond, false)
		if err != nil || len(percents) == 0 {
			utils.Debugf("获取CPU使用率失败,跳过CPU检查: %v", err)
		} else if percents[0] > g.CPULoadThreshold {
			return fmt.Errorf("CPU负载过高: %.1f%% (上限 %.0f%%), 暂不启动浏览器", percents[0], g.CPULoadThreshold)
		}
	}

	return nil
}
