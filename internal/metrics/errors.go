package metrics

import (
	"sort"
	"strings"
	"unicode"
)

var friendlyKinds = map[ErrorKind]string{
	ErrorKindTimeout:          "Request timed out",
	ErrorKindConnection:       "Connection error",
	ErrorKindNonSuccessStatus: "Non-success status",
	ErrorKindCancelled:        "Cancelled",
}

// FriendlyKindName returns a human-friendly label for an error kind.
func FriendlyKindName(kind ErrorKind) string {
	if kind == ErrorKindNone {
		return "None"
	}
	if label, ok := friendlyKinds[kind]; ok {
		return label
	}
	return humanize(string(kind))
}

// KindCount is one row of an error kind breakdown.
type KindCount struct {
	Kind  ErrorKind
	Count int
}

// FlattenErrorKinds converts a kind->count map into rows sorted by descending
// count, then by kind.
func FlattenErrorKinds(kinds map[ErrorKind]int) []KindCount {
	if len(kinds) == 0 {
		return nil
	}
	rows := make([]KindCount, 0, len(kinds))
	for kind, count := range kinds {
		rows = append(rows, KindCount{Kind: kind, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Kind < rows[j].Kind
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}

func humanize(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' || unicode.IsSpace(r) })
	if len(words) == 0 {
		return "Unknown error"
	}
	words[0] = capitalize(words[0])
	for i := 1; i < len(words); i++ {
		words[i] = strings.ToLower(words[i])
	}
	return strings.Join(words, " ")
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
