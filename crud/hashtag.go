package crud

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxTopicLength matches the size of the posts.topic column.
const maxTopicLength = 100

// ExtractTopic returns the hashtag of a post's content: the text following the first '#'
// up to the next whitespace, with trailing punctuation trimmed, in lower case.
// Only the first hashtag counts, so "#go and #rust" has the topic "go".
func ExtractTopic(content string) string {
	i := strings.IndexByte(content, '#')
	if i < 0 {
		return ""
	}
	tag := strings.TrimLeft(content[i+1:], "#")
	if end := strings.IndexFunc(tag, unicode.IsSpace); end >= 0 {
		tag = tag[:end]
	}
	tag = strings.TrimRightFunc(tag, func(r rune) bool {
		return r != '_' && (unicode.IsPunct(r) || unicode.IsSymbol(r))
	})
	tag = strings.ToLower(tag)
	for utf8.RuneCountInString(tag) > maxTopicLength {
		_, size := utf8.DecodeLastRuneInString(tag)
		tag = tag[:len(tag)-size]
	}
	return tag
}

// topicTerm turns a search query into the term matched against topics; a leading '#' is ignored.
func topicTerm(q string) string {
	return strings.ToLower(strings.TrimLeft(strings.TrimSpace(q), "#"))
}
