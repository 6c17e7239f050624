package domain

import (
	"sort"
	"time"
)

// PodiumSize is the number of places shown on the podium.
const PodiumSize = 3

// Rank orders participants by total score, descending. Ties keep join order.
func Rank(s Session) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(s.Participants))
	for id, p := range s.Participants {
		entries = append(entries, LeaderboardEntry{
			ParticipantID: id,
			Username:      p.Username,
			TotalScore:    SumScores(p.Scores),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].TotalScore != entries[j].TotalScore {
			return entries[i].TotalScore > entries[j].TotalScore
		}
		pi := s.Participants[entries[i].ParticipantID]
		pj := s.Participants[entries[j].ParticipantID]
		if pi.JoinOrder != pj.JoinOrder {
			return pi.JoinOrder < pj.JoinOrder
		}
		return entries[i].ParticipantID < entries[j].ParticipantID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// BuildLeaderboard splits the ranking into the podium and the rest.
func BuildLeaderboard(s Session, now time.Time) Leaderboard {
	ranked := Rank(s)
	cut := PodiumSize
	if len(ranked) < cut {
		cut = len(ranked)
	}
	return Leaderboard{
		SessionCode: s.SessionCode,
		Podium:      ranked[:cut],
		Rest:        append([]LeaderboardEntry{}, ranked[cut:]...),
		UpdatedAt:   now,
	}
}

// Placement returns the participant's entry in the ranking.
func Placement(s Session, participantID string) (LeaderboardEntry, bool) {
	for _, e := range Rank(s) {
		if e.ParticipantID == participantID {
			return e, true
		}
	}
	return LeaderboardEntry{}, false
}
