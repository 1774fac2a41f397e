package app

import "github.com/google/uuid"

func newUUID() string {
	return uuid.NewString()
}

// dedupeIDs keeps the first occurrence of every id and drops empty ones.
func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
