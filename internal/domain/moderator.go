package domain

// Moderator is a registered staff identity.
type Moderator struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// DefaultDisplayName is assigned when registration supplies no name.
func DefaultDisplayName(id string) string {
	suffix := id
	if len(id) > 4 {
		suffix = id[len(id)-4:]
	}
	return "Moderator-" + suffix
}
