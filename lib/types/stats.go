package types

// GenreCount is one row of the genre distribution.
type GenreCount struct {
	Genre string `json:"genre"`
	Count int64  `json:"count"`
}

// StatsData represents the admin dashboard counters.
type StatsData struct {
	TotalAnime        int64        `json:"total_anime"`
	TotalEpisodes     int64        `json:"total_episodes"`
	TotalGenres       int64        `json:"total_genres"`
	TotalUsers        int64        `json:"total_users"`
	PendingMembers    int64        `json:"pending_members"`
	ApprovedMembers   int64        `json:"approved_members"`
	TotalRatings      int64        `json:"total_ratings"`
	AverageRating     float64      `json:"average_rating"`
	GenreDistribution []GenreCount `json:"genre_distribution"`
}
