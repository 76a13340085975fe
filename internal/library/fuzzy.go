package library

import "github.com/sahilm/fuzzy"

// FilterItems narrows a result list with fuzzy title matching. An empty
// query returns the input unchanged.
func FilterItems(items []Item, query string) []Item {
	if query == "" {
		return items
	}

	titles := make([]string, len(items))
	for i, item := range items {
		titles[i] = item.Title
	}

	matches := fuzzy.Find(query, titles)
	filtered := make([]Item, 0, len(matches))
	for _, match := range matches {
		filtered = append(filtered, items[match.Index])
	}
	return filtered
}
