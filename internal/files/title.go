package files

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var titleCounter = regexp.MustCompile(`( \(([0-9]+)\)(\.[^.]*)?)$`)

// GetAvailableTitle returns title when exists reports it free. Otherwise it
// inserts " (1)" before the extension, or increments an existing counter,
// until exists reports false. The counter only grows, so the loop ends as
// soon as exists admits any counter value.
func GetAvailableTitle(title string, exists func(title string) (bool, error)) (string, error) {
	taken, err := exists(title)
	if err != nil {
		return "", fmt.Errorf("checking title %q: %w", title, err)
	}
	if !taken {
		return title, nil
	}

	if !titleCounter.MatchString(title) {
		at := len(title)
		if dot := strings.LastIndex(title, "."); dot != -1 {
			at = dot
		}
		title = title[:at] + " (1)" + title[at:]
	}

	for {
		taken, err := exists(title)
		if err != nil {
			return "", fmt.Errorf("checking title %q: %w", title, err)
		}
		if !taken {
			return title, nil
		}
		title = incrementCounter(title)
	}
}

func incrementCounter(title string) string {
	m := titleCounter.FindStringSubmatchIndex(title)
	if m == nil {
		return title + " (1)"
	}
	n, err := strconv.Atoi(title[m[4]:m[5]])
	if err != nil {
		// Overflowing counters restart with a fresh suffix.
		return title + " (1)"
	}
	ext := ""
	if m[6] != -1 {
		ext = title[m[6]:m[7]]
	}
	return title[:m[2]] + fmt.Sprintf(" (%d)", n+1) + ext
}
