package common

// Sign returns -1, 0 or 1 matching the sign of i
func Sign(i int64) int64 {
	switch {
	case i > 0:
		return 1
	case i < 0:
		return -1
	default:
		return 0
	}
}

// Abs returns the absolute value of i
func Abs(i int64) int64 {
	if i < 0 {
		return -i
	}
	return i
}

// Min64 returns the smaller of a and b
func Min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
