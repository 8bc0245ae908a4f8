package format

import "fmt"

var byteUnits = []string{"KB", "MB", "GB", "TB"}

// Bytes renders a body or image size for log lines: "512 B", "1.50 KB".
// Negative counts are reported as zero.
func Bytes(n int64) string {
	if n < 1024 {
		if n < 0 {
			n = 0
		}
		return fmt.Sprintf("%d B", n)
	}

	size := float64(n) / 1024
	unit := 0
	for size >= 1024 && unit < len(byteUnits)-1 {
		size /= 1024
		unit++
	}
	return fmt.Sprintf("%.2f %s", size, byteUnits[unit])
}
