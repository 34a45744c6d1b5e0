package api

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// ServerMetrics сведения о процессе для /api/status
type ServerMetrics struct {
	StartTime time.Time
}

// NewServerMetrics создает новый экземпляр метрик
func NewServerMetrics() *ServerMetrics {
	return &ServerMetrics{StartTime: time.Now()}
}

// StatusReport ответ /api/status
type StatusReport struct {
	Uptime     string  `json:"uptime"`
	UptimeSec  int64   `json:"uptime_sec"`
	HeapMB     float64 `json:"heap_mb"`
	SysMB      float64 `json:"sys_mb"`
	NumGC      uint32  `json:"num_gc"`
	Goroutines int     `json:"goroutines"`
	CPUPercent float64 `json:"cpu_percent"`
	RSSMB      float64 `json:"rss_mb"`
	Volumes    int     `json:"volumes"`
	Chunks     int     `json:"chunks"`
	Triangles  int     `json:"triangles"`
}

// GetUptime возвращает время работы сервера
func (sm *ServerMetrics) GetUptime() string {
	return formatUptime(time.Since(sm.StartTime))
}

func formatUptime(uptime time.Duration) string {
	days := int(uptime.Hours()) / 24
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60
	seconds := int(uptime.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dд %dч %dм %dс", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	default:
		return fmt.Sprintf("%dс", seconds)
	}
}

// Report собирает сводку о процессе. Ошибки gopsutil не фатальны:
// соответствующие поля остаются нулевыми.
func (sm *ServerMetrics) Report() StatusReport {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	r := StatusReport{
		Uptime:     sm.GetUptime(),
		UptimeSec:  int64(time.Since(sm.StartTime).Seconds()),
		HeapMB:     float64(m.HeapAlloc) / 1024 / 1024,
		SysMB:      float64(m.Sys) / 1024 / 1024,
		NumGC:      m.NumGC,
		Goroutines: runtime.NumGoroutine(),
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return r
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		r.CPUPercent = cpu
	}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		r.RSSMB = float64(mem.RSS) / 1024 / 1024
	}
	return r
}
