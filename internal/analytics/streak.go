package analytics

import "github.com/atmx/settlement-analytics/internal/model"

// Streaks describes runs of consecutive same-outcome settlements.
type Streaks struct {
	CurrentStreak     int            `json:"current_streak"`
	CurrentStreakType *model.Outcome `json:"current_streak_type"`
	LongestWinStreak  int            `json:"longest_win_streak"`
	LongestLossStreak int            `json:"longest_loss_streak"`
}

// DetectStreaks walks records once in the given order, which must be
// ascending by timestamp. The open run at the end is the current streak.
func DetectStreaks(records []model.SettlementRecord) Streaks {
	var (
		s       Streaks
		runType model.Outcome
		run     int
	)
	for _, r := range records {
		o := r.Outcome()
		if run > 0 && o == runType {
			run++
		} else {
			runType, run = o, 1
		}
		switch o {
		case model.OutcomeWin:
			s.LongestWinStreak = max(s.LongestWinStreak, run)
		case model.OutcomeLoss:
			s.LongestLossStreak = max(s.LongestLossStreak, run)
		}
	}

	if run > 0 {
		t := runType
		s.CurrentStreak = run
		s.CurrentStreakType = &t
	}
	return s
}
