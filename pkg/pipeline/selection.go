package pipeline

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSubredditSelection picks subreddits from list by 1-based position.
// sel is a comma-separated mix of numbers and inclusive ranges, e.g.
// "1,3-5,8". Invalid or out-of-range parts are skipped with a warning.
// The result keeps first-seen order without duplicates.
func ParseSubredditSelection(sel string, list []string) ([]string, []string) {
	var (
		picked   []string
		warnings []string
		seen     = map[string]bool{}
	)
	add := func(sub string) {
		if !seen[sub] {
			seen[sub] = true
			picked = append(picked, sub)
		}
	}

	for _, part := range strings.Split(sel, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err1 := strconv.Atoi(strings.TrimSpace(lo))
			end, err2 := strconv.Atoi(strings.TrimSpace(hi))
			if err1 != nil || err2 != nil {
				warnings = append(warnings, fmt.Sprintf("invalid range %q", part))
				continue
			}
			if start < 1 || end > len(list) {
				warnings = append(warnings, fmt.Sprintf("range %s out of bounds (1-%d)", part, len(list)))
				continue
			}
			for i := start; i <= end; i++ {
				add(list[i-1])
			}
			continue
		}

		n, err := strconv.Atoi(part)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("invalid selection %q", part))
			continue
		}
		if n < 1 || n > len(list) {
			warnings = append(warnings, fmt.Sprintf("subreddit #%d out of bounds (1-%d)", n, len(list)))
			continue
		}
		add(list[n-1])
	}
	return picked, warnings
}
