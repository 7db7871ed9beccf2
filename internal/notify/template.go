package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/play-it-team/healthchecks/internal/domain/check"
)

// Vars builds the substitution set for shell and webhook templates:
// $CODE, $STATUS, $NOW, $NAME, $TAGS plus positional $TAG1..$TAGn.
func Vars(c *check.Check, now time.Time) map[string]string {
	vars := map[string]string{
		"$CODE":   c.Code,
		"$STATUS": string(c.Status),
		"$NOW":    now.UTC().Truncate(time.Second).Format(time.RFC3339),
		"$NAME":   c.Name,
		"$TAGS":   c.Tags,
	}
	for i, tag := range c.TagsList() {
		vars[fmt.Sprintf("$TAG%d", i+1)] = tag
	}
	return vars
}

// Substitute replaces every defined placeholder in tmpl. Longer names go
// first so $TAG12 is never clobbered by $TAG1. Placeholders without a value
// ($TAG5 on a three-tag check) stay in the output verbatim.
func Substitute(tmpl string, vars map[string]string) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		tmpl = strings.ReplaceAll(tmpl, k, vars[k])
	}
	return tmpl
}
