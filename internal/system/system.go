// Package system handles host-level concerns: file descriptor limits,
// ffmpeg capability detection and host stats for the render report.
package system

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// InitResourceLimits raises the open-file limit: a long script synthesizes
// one WAV per line and the encoder keeps several segments open at once.
func InitResourceLimits(logger *slog.Logger) {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		logger.Warn("could not read file limit", "error", err)
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		logger.Warn("could not raise file limit", "error", err)
	}
}

// BestH264Encoder probes ffmpeg for hardware H.264 encoders, preferring
// VideoToolbox (macOS) then NVENC, falling back to libx264.
func BestH264Encoder() string {
	out, err := exec.Command("ffmpeg", "-encoders").CombinedOutput()
	if err != nil {
		return "libx264"
	}
	for _, enc := range []string{"h264_videotoolbox", "h264_nvenc"} {
		if strings.Contains(string(out), enc) {
			return enc
		}
	}
	return "libx264"
}

// CheckFilterSupport reports whether the installed ffmpeg knows a filter.
func CheckFilterSupport(name string) bool {
	out, err := exec.Command("ffmpeg", "-filters").CombinedOutput()
	if err != nil {
		return false
	}
	return strings.Contains(string(out), name)
}

// FindLatestScript returns the most recently modified script file in dir.
func FindLatestScript(dir string) (string, error) {
	return findLatest(dir, []string{".yaml", ".yml", ".txt"})
}

func findLatest(dir string, extensions []string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		match := false
		for _, ext := range extensions {
			if strings.HasSuffix(strings.ToLower(f.Name()), ext) {
				match = true
				break
			}
		}
		if !match {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no matching files in %s", dir)
	}
	return latestFile, nil
}

// HostStats is a snapshot for the render report.
type HostStats struct {
	CPUCount    int
	CPUModel    string
	TotalMemory uint64
	UsedMemory  uint64
}

// CollectHostStats gathers CPU and memory information. Fields that cannot
// be read stay zero; stats are informational only.
func CollectHostStats() HostStats {
	var st HostStats

	if counts, err := cpu.Counts(true); err == nil {
		st.CPUCount = counts
	}
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		st.CPUModel = infos[0].ModelName
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		st.TotalMemory = vm.Total
		st.UsedMemory = vm.Used
	}
	return st
}

func (s HostStats) String() string {
	return fmt.Sprintf("%d cores (%s), %.1f/%.1f GiB memory used",
		s.CPUCount, s.CPUModel,
		float64(s.UsedMemory)/(1<<30), float64(s.TotalMemory)/(1<<30))
}
