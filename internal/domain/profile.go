package domain

// User holds the immutable identity fields exposed on public profiles.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ProfileStats are the aggregate counters attached to a profile. The
// FriendsPrivate flag gates exposure of the friends list; it is mutated only
// by the account-settings flow, never by this service.
type ProfileStats struct {
	FriendsPrivate bool `json:"friends_private"`
	ReviewCount    int  `json:"review_count"`
	FriendCount    int  `json:"friend_count"`
}

// Profile is a user's public profile: identity plus stats. The friends list
// is deliberately not part of the profile; when the list is private it is
// never fetched, so absence here is policy rather than an omission.
type Profile struct {
	User  User         `json:"user"`
	Stats ProfileStats `json:"stats"`
}
