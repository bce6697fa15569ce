package model

import "time"

// Profile is the persisted account and statistics for a player
type Profile struct {
	Username     string // login username (immutable)
	PasswordHash string // bcrypt hash
	Email        string
	Score        int
	Wins         int
	Losses       int
	CreatedAt    time.Time
	LastLoginAt  time.Time
}

// GamesPlayed returns the number of completed rounds recorded
func (p *Profile) GamesPlayed() int {
	return p.Wins + p.Losses
}

// WinRate returns the percentage of recorded rounds won, or 0 with no rounds
func (p *Profile) WinRate() float64 {
	games := p.GamesPlayed()
	if games == 0 {
		return 0
	}
	return float64(p.Wins) / float64(games) * 100
}

// ApplyWin records a round win
func (p *Profile) ApplyWin() {
	p.Wins++
	p.Score++
}

// ApplyLoss records a round loss. Score never drops below zero.
func (p *Profile) ApplyLoss() {
	p.Losses++
	p.Score = max(0, p.Score-1)
}

// ProfileSummary is the public projection of a profile
type ProfileSummary struct {
	Username    string
	Email       string
	Score       int
	Wins        int
	Losses      int
	WinRate     float64
	CreatedAt   time.Time
	LastLoginAt time.Time
	LastSeen    string
}

// Summarize projects a profile for display, describing LastLoginAt relative to now
func (p *Profile) Summarize(now time.Time) ProfileSummary {
	return ProfileSummary{
		Username:    p.Username,
		Email:       p.Email,
		Score:       p.Score,
		Wins:        p.Wins,
		Losses:      p.Losses,
		WinRate:     p.WinRate(),
		CreatedAt:   p.CreatedAt,
		LastLoginAt: p.LastLoginAt,
		LastSeen:    FormatTimeAgo(p.LastLoginAt, now),
	}
}
