package importer

import (
	"fmt"
	"strconv"
	"strings"
)

// Entry is one record of a lookup catalog. Role carries the business-type tag
// of address-book entries and is empty for countries and ports.
type Entry struct {
	ID      int
	Name    string
	Code    string
	Role    string
	PortIDs []int
}

// Preference narrows a name lookup that matches several entries.
type Preference struct {
	Role   string
	PortID int
}

type Resolved struct {
	ID    int
	Found bool
	Query string
	Role  string
}

// Describe renders the not-found message for a reference of the given kind.
func (r Resolved) Describe(kind string) string {
	if r.Role != "" {
		return fmt.Sprintf("%s %q not found (searched by id and name with role %q)", kind, r.Query, r.Role)
	}
	return fmt.Sprintf("%s %q not found (searched by id and name)", kind, r.Query)
}

// Resolve looks text up by id first, then by case-insensitive name or code.
// An id match wins regardless of role. Among several name matches the one
// carrying the preferred role wins; a match without the role is still
// accepted when nothing better exists.
func Resolve(entries []Entry, text string, pref Preference) Resolved {
	query := strings.TrimSpace(text)
	result := Resolved{Query: query, Role: pref.Role}
	if query == "" {
		return result
	}

	if id, err := strconv.Atoi(query); err == nil {
		for _, entry := range entries {
			if entry.ID == id {
				result.ID, result.Found = entry.ID, true
				return result
			}
		}
	}

	best, bestScore := -1, -1
	for i, entry := range entries {
		if !matchesName(entry, query) {
			continue
		}
		score := 0
		if pref.Role != "" && strings.Contains(strings.ToLower(entry.Role), strings.ToLower(pref.Role)) {
			score += 2
		}
		if pref.PortID != 0 && containsInt(entry.PortIDs, pref.PortID) {
			score++
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best >= 0 {
		result.ID, result.Found = entries[best].ID, true
	}
	return result
}

func matchesName(entry Entry, query string) bool {
	if strings.EqualFold(strings.TrimSpace(entry.Name), query) {
		return true
	}
	return entry.Code != "" && strings.EqualFold(strings.TrimSpace(entry.Code), query)
}

func containsInt(values []int, target int) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
