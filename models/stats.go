package models

// UserStat represents a user's aggregated results over resolved bets
type UserStat struct {
	UserID     int64
	Username   string
	NetProfit  int64
	GrossWon   int64
	GrossLost  int64
	BetsPlaced int
	BetsWon    int
}

// WinRate returns the percentage of placed wagers that won, 0-100
func (s *UserStat) WinRate() float64 {
	if s.BetsPlaced == 0 {
		return 0
	}
	return float64(s.BetsWon) / float64(s.BetsPlaced) * 100
}

// Leaderboard holds the same stats ordered two ways
type Leaderboard struct {
	Winners []*UserStat // net profit descending
	Losers  []*UserStat // net profit ascending
}

// TopWinners returns up to n entries from the top of the winners board
func (l *Leaderboard) TopWinners(n int) []*UserStat {
	if n <= 0 {
		return nil
	}
	if n > len(l.Winners) {
		n = len(l.Winners)
	}
	return l.Winners[:n]
}

// TopLosers returns up to n users who are in the red, most negative first
func (l *Leaderboard) TopLosers(n int) []*UserStat {
	if n <= 0 {
		return nil
	}
	var losers []*UserStat
	for _, s := range l.Losers {
		if s.NetProfit >= 0 {
			break
		}
		losers = append(losers, s)
		if len(losers) == n {
			break
		}
	}
	return losers
}
