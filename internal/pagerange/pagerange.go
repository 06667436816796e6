// Package pagerange parses user-entered page selectors such as "1-5, 8-10, 15"
// into zero-based page indices.
package pagerange

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

var ErrInvalidSelector = errors.New("invalid page selector")

// TokenError names the selector token that failed validation.
type TokenError struct {
	Token  string
	Reason string
}

func (e *TokenError) Error() string {
	if strings.Contains(e.Token, "-") {
		return fmt.Sprintf("invalid page range %q: %s", e.Token, e.Reason)
	}
	return fmt.Sprintf("invalid page %q: %s", e.Token, e.Reason)
}

func (e *TokenError) Unwrap() error {
	return ErrInvalidSelector
}

// Parse returns the ascending, duplicate-free zero-based indices selected by
// selector for a document of pageCount pages. Any invalid token fails the
// whole parse.
func Parse(selector string, pageCount int) ([]int, error) {
	groups, err := ParseGroups(selector, pageCount)
	if err != nil {
		return nil, err
	}

	pages := lo.Uniq(lo.Flatten(groups))
	slices.Sort(pages)
	return pages, nil
}

// ParseGroups validates selector like Parse but keeps one group per token, in
// input order. Groups are not deduplicated against each other.
func ParseGroups(selector string, pageCount int) ([][]int, error) {
	groups := make([][]int, 0)
	for _, raw := range strings.Split(selector, ",") {
		token := strings.TrimSpace(raw)
		if token == "" {
			continue
		}

		start, end, err := parseToken(token, pageCount)
		if err != nil {
			return nil, err
		}

		group := make([]int, 0, end-start+1)
		for page := start; page <= end; page++ {
			group = append(group, page-1)
		}
		groups = append(groups, group)
	}

	return groups, nil
}

// Fixed splits pageCount pages into consecutive groups of size pages. The last
// group holds the remainder.
func Fixed(pageCount, size int) ([][]int, error) {
	if size < 1 || size > pageCount {
		return nil, fmt.Errorf("%w: range size %d outside 1-%d", ErrInvalidSelector, size, pageCount)
	}

	all := lo.Range(pageCount)
	return lo.Chunk(all, size), nil
}

// Selectors renders zero-based indices as 1-based selector strings, collapsing
// consecutive runs: [0 1 2 4] becomes ["1-3" "5"].
func Selectors(indices []int) []string {
	if len(indices) == 0 {
		return nil
	}

	sorted := slices.Clone(indices)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	var out []string
	start, prev := sorted[0], sorted[0]
	flush := func() {
		if start == prev {
			out = append(out, strconv.Itoa(start+1))
			return
		}
		out = append(out, fmt.Sprintf("%d-%d", start+1, prev+1))
	}

	for _, idx := range sorted[1:] {
		if idx == prev+1 {
			prev = idx
			continue
		}
		flush()
		start, prev = idx, idx
	}
	flush()

	return out
}

func parseToken(token string, pageCount int) (int, int, error) {
	if !strings.Contains(token, "-") {
		page, err := parsePage(token, pageCount)
		if err != nil {
			return 0, 0, &TokenError{Token: token, Reason: err.Error()}
		}
		return page, page, nil
	}

	parts := strings.Split(token, "-")
	if len(parts) != 2 {
		return 0, 0, &TokenError{Token: token, Reason: "expected start-end"}
	}

	start, err := parsePage(parts[0], pageCount)
	if err != nil {
		return 0, 0, &TokenError{Token: token, Reason: err.Error()}
	}
	end, err := parsePage(parts[1], pageCount)
	if err != nil {
		return 0, 0, &TokenError{Token: token, Reason: err.Error()}
	}
	if start > end {
		return 0, 0, &TokenError{Token: token, Reason: "start is after end"}
	}

	return start, end, nil
}

func parsePage(value string, pageCount int) (int, error) {
	value = strings.TrimSpace(value)
	page, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", value)
	}
	if page < 1 {
		return 0, fmt.Errorf("page %d is below 1", page)
	}
	if page > pageCount {
		return 0, fmt.Errorf("page %d exceeds page count %d", page, pageCount)
	}
	return page, nil
}
