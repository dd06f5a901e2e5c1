package build

// ClampWorkerCount bounds requested to twice the available CPU parallelism.
// It never raises the count; the second return reports whether it lowered it.
func ClampWorkerCount(requested int, cpus int) (int, bool) {
	if cpus < 1 {
		cpus = 1
	}
	limit := 2 * cpus
	if requested > limit {
		return limit, true
	}
	return requested, false
}
