package plan

import (
	"regexp"
	"sort"
	"strings"

	"git.sr.ht/~mariusor/tagextractor"
)

var hashtagExp = regexp.MustCompile(`#[\pL\pN][\pL\pN_-]*`)

var tagNoise = []string{" ", "'", "\""}

// NormalizeTag folds a tag into its canonical lowercase form, with the
// leading hash and the usual noise stripped.
func NormalizeTag(t string) string {
	t = strings.TrimPrefix(strings.TrimSpace(t), "#")
	t = tagextractor.TagNormalize(t)
	t = strings.ToLower(t)
	for _, n := range tagNoise {
		t = strings.ReplaceAll(t, n, "")
	}
	return t
}

// ExtractTags collects the hashtags spread across the given texts,
// normalized, deduplicated and sorted.
func ExtractTags(texts ...string) []string {
	tags := make([]string, 0)
	for _, text := range texts {
		for _, raw := range hashtagExp.FindAllString(text, -1) {
			if t := NormalizeTag(raw); t != "" && !stringsContain(tags, t) {
				tags = append(tags, t)
			}
		}
	}
	sort.Strings(tags)
	return tags
}

// MergeTags folds explicit tag values and the hashtags found in the
// texts into one normalized list.
func MergeTags(explicit []string, texts ...string) []string {
	tags := NormalizeTags(explicit)
	for _, t := range ExtractTags(texts...) {
		if !stringsContain(tags, t) {
			tags = append(tags, t)
		}
	}
	return tags
}

// NormalizeTags folds explicit tag values through NormalizeTag, keeping
// order of first appearance.
func NormalizeTags(raw []string) []string {
	tags := make([]string, 0, len(raw))
	for _, r := range raw {
		if t := NormalizeTag(r); t != "" && !stringsContain(tags, t) {
			tags = append(tags, t)
		}
	}
	return tags
}

func stringsContain(sl []string, v string) bool {
	for _, vs := range sl {
		if vs == v {
			return true
		}
	}
	return false
}
