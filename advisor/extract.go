package advisor

import (
	"regexp"
	"strconv"
)

var (
	labeledPID = regexp.MustCompile(`(?i)\bPID\s*[:=]\s*(\d+)`)
	bareInt    = regexp.MustCompile(`\d+`)
)

// ExtractPID recovers a pid from free-form oracle output. The labelled
// "PID:<n>" form wins; otherwise the first bare integer is taken.
func ExtractPID(text string) (int, bool) {
	if m := labeledPID.FindStringSubmatch(text); m != nil {
		if pid, err := strconv.Atoi(m[1]); err == nil {
			return pid, true
		}
	}
	if m := bareInt.FindString(text); m != "" {
		if pid, err := strconv.Atoi(m); err == nil {
			return pid, true
		}
	}
	return 0, false
}
