package process

import (
	gopsprocess "github.com/shirou/gopsutil/v3/process"
)

// pidRecycled guards orphan adoption against PID reuse: a signal-0 probe
// alone can't tell a still-running dev server from an unrelated process the
// OS later handed the same pid after a crash. Cross-checking the kernel's
// recorded process start time against what was persisted at the last start
// catches that case.
func pidRecycled(pid int, recordedStartedAtMs int64) bool {
	if recordedStartedAtMs == 0 {
		return false
	}
	proc, err := gopsprocess.NewProcess(int32(pid))
	if err != nil {
		return true
	}
	createTimeMs, err := proc.CreateTime()
	if err != nil {
		return false
	}
	const toleranceMs = 2000
	diff := createTimeMs - recordedStartedAtMs
	if diff < 0 {
		diff = -diff
	}
	return diff > toleranceMs
}
