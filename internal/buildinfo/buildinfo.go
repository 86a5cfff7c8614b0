package buildinfo

import (
	"runtime"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
)

// Set with -ldflags "-X routeplanner/internal/buildinfo.Version=..."
var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

func Info() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"builtAt": BuiltAt,
	}
}

// Host describes the machine the solver runs on. Fields that cannot be
// read on the current platform are left empty.
type Host struct {
	OS          string  `json:"os"`
	Platform    string  `json:"platform,omitempty"`
	Hostname    string  `json:"hostname,omitempty"`
	CPUModel    string  `json:"cpuModel,omitempty"`
	LogicalCPUs int     `json:"logicalCpus"`
	GoMaxProcs  int     `json:"goMaxProcs"`
	MemTotalMB  uint64  `json:"memTotalMb,omitempty"`
	MemUsedPct  float64 `json:"memUsedPct,omitempty"`
}

func HostInfo() Host {
	h := Host{OS: runtime.GOOS, LogicalCPUs: runtime.NumCPU(), GoMaxProcs: runtime.GOMAXPROCS(0)}
	if hs, err := host.Info(); err == nil && hs != nil {
		h.Platform = hs.Platform + " " + hs.PlatformVersion
		h.Hostname = hs.Hostname
	}
	if cs, err := cpu.Info(); err == nil && len(cs) > 0 {
		h.CPUModel = cs[0].ModelName
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		h.MemTotalMB = vm.Total / (1 << 20)
		h.MemUsedPct = vm.UsedPercent
	}
	return h
}
