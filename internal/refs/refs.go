// Package refs extracts and rewrites inline [[Context Name]] references
// embedded in note content.
//
// References are a soft invariant: the storage layer never validates them
// except during a context rename, where matching occurrences are rewritten.
package refs

import (
	"regexp"
	"strings"
	"unicode"
)

var wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)

// Extract returns the unique reference targets found in content, in order
// of first appearance. Alias syntax [[target|display]] resolves to target.
func Extract(content string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target := m[1]
		if i := strings.IndexByte(target, '|'); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// DisplayName converts a context slug into its display form: hyphens and
// underscores become spaces and each word is title-cased, so "side-projects"
// renders as "Side Projects".
func DisplayName(slug string) string {
	cleaned := strings.NewReplacer("-", " ", "_", " ").Replace(slug)
	words := strings.Fields(cleaned)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// Rewrite replaces inline [[references]] to oldSlug's display form with
// newSlug's display form. The match is case-insensitive against the
// title-cased display form, with special characters escaped. Returns the
// rewritten content and whether anything changed.
//
// Known fragility: multi-word names containing punctuation and contexts
// whose display forms collide are matched literally, not semantically.
func Rewrite(content, oldSlug, newSlug string) (string, bool) {
	oldDisplay := DisplayName(oldSlug)
	if oldDisplay == "" {
		return content, false
	}
	re := regexp.MustCompile(`(?i)\[\[` + regexp.QuoteMeta(oldDisplay) + `\]\]`)
	if !re.MatchString(content) {
		return content, false
	}
	return re.ReplaceAllLiteralString(content, "[["+DisplayName(newSlug)+"]]"), true
}
