package logic

// ShouldToggle decides whether the channel switch must move to the other
// battery after a connect/disconnect/reconnect probe.
//
// The switch advances to the other battery on every reconnect, so v0 and v1
// belong to different batteries. Toggle back when the second battery looks
// floating, or when the first one reads lower without itself floating. The
// comparison is kept exactly as the hardware was validated with.
func ShouldToggle(v0, vFloat, v1 Sample) bool {
	return v1 <= vFloat || (v0 < v1 && v0 > vFloat)
}

// FastInterval is the shortened recheck count used when both batteries read
// nearly the same.
func FastInterval(slow int) int {
	return slow / 2
}

// ComputeInterval returns how many monitoring iterations to run before the
// next full reselection.
func ComputeInterval(v0, v1 Sample, slow int) int {
	delta := int(v0) - int(v1)
	if delta >= -1 && delta <= 1 {
		return FastInterval(slow)
	}
	return slow
}
