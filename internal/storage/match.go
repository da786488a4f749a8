package storage

import "strings"

// MatchName is the one definition of a search hit shared by every
// backend: query is a case-insensitive substring of name. The empty
// query matches everything.
func MatchName(name, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(query))
}
