package log

import "fmt"

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

func sprint(args ...any) string {
	return fmt.Sprint(args...)
}
