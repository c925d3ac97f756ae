package web

import (
	"html"
	"strconv"
	"time"
)

func itoa(value int) string {
	return strconv.Itoa(value)
}

func esc(value string) string {
	return html.EscapeString(value)
}

func FormatTime(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format("2006-01-02 15:04:05")
}
