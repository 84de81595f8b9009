package format

import "fmt"

var byteUnits = []string{"KB", "MB", "GB", "TB"}

// FormatBytes renders b in binary units, dropping the decimals for whole values,
// e.g. 512B, 4KB, 1.50MB.
func FormatBytes(b int64) string {
	if b < 1024 {
		return fmt.Sprintf("%dB", b)
	}

	val := float64(b)
	unit := ""
	for _, u := range byteUnits {
		val /= 1024
		unit = u
		if val < 1024 {
			break
		}
	}

	if val == float64(int64(val)) {
		return fmt.Sprintf("%.0f%s", val, unit)
	}
	return fmt.Sprintf("%.2f%s", val, unit)
}
