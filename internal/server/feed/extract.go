package feed

import (
	"regexp"
	"strings"
)

// Go's regexp has no lookbehind, so "not preceded by a word character" is
// expressed as an explicit leading boundary group.
var (
	hashtagRe = regexp.MustCompile(`(?:^|[^0-9A-Za-z_])#([0-9A-Za-z_][0-9A-Za-z_-]*)`)
	mentionRe = regexp.MustCompile(`(?:^|[^0-9A-Za-z_])@([0-9A-Za-z_]{3,20})`)
)

// ExtractTags returns the distinct channel hashtags in an eet body,
// lowercased, in first-appearance order.
func ExtractTags(body string) []string {
	return extract(hashtagRe, body, true)
}

// ExtractMentions returns the distinct @usernames in an eet body, in
// first-appearance order. Mention case is preserved; username lookups are
// case-insensitive anyway.
func ExtractMentions(body string) []string {
	return extract(mentionRe, body, false)
}

func extract(re *regexp.Regexp, body string, lower bool) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range re.FindAllStringSubmatch(body, -1) {
		v := m[1]
		if lower {
			v = strings.ToLower(v)
		}
		key := strings.ToLower(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
