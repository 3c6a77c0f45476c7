package tools

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB", "PB"}

func formatUnit(v float64, suffix string) string {
	i := 0
	for v >= 1000 && i < len(sizeUnits)-1 {
		v /= 1000
		i++
	}
	return fmt.Sprintf("%.2f %s%s", v, sizeUnits[i], suffix)
}

// FormatSize renders a byte count with decimal units and two decimals,
// "1.00 GB" style.
func FormatSize(bytes int64) string {
	return formatUnit(float64(bytes), "")
}

// FormatSpeed renders a transfer rate, "1.00 MB/s" style.
func FormatSpeed(bytesPerSecond float64) string {
	return formatUnit(bytesPerSecond, "/s")
}

// FormatDuration renders a second count in its largest natural unit with
// two decimals, "11.57 days" style.
func FormatDuration(seconds float64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%.2f seconds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%.2f minutes", seconds/60)
	case seconds < 86400:
		return fmt.Sprintf("%.2f hours", seconds/3600)
	default:
		return fmt.Sprintf("%.2f days", seconds/86400)
	}
}

// FormatNumber renders a number with thousands separators and up to two
// decimals, "1,234,567.89" style.
func FormatNumber(value float64) string {
	return humanize.CommafWithDigits(value, 2)
}
