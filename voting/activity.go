package voting

import (
	"cmp"
	"fmt"
	"slices"
)

// MergeActivity interleaves votes and system logs newest first and keeps limit items
func MergeActivity(votes []VoteEntry, logs []SystemLog, limit int) []Activity {
	out := make([]Activity, 0, len(votes)+len(logs))
	for i := range votes {
		out = append(out, Activity{Kind: ActivityVote, Timestamp: votes[i].Timestamp, Vote: &votes[i]})
	}
	for i := range logs {
		out = append(out, Activity{Kind: ActivitySystem, Timestamp: logs[i].Timestamp, Log: &logs[i]})
	}

	slices.SortStableFunc(out, func(a, b Activity) int {
		return b.Timestamp.Compare(a.Timestamp)
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ClampLimit applies the default and the ceiling to a requested feed size
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLogsLimit
	}
	return min(limit, MaxLogsLimit)
}

// ShortAddress abbreviates an address as abcd...wxyz
func ShortAddress(addr string) string {
	if len(addr) <= 8 {
		return addr
	}
	return addr[:4] + "..." + addr[len(addr)-4:]
}

// voteLogMessages are the feed lines written after a vote
func voteLogMessages(v VoteEntry) []SystemLog {
	related := int64(v.ID)
	token := fmt.Sprintf("%s (%s)", cmp.Or(v.TokenName, "Unknown"), cmp.Or(v.TokenSymbol, "???"))
	return []SystemLog{
		{
			Type:      LogTypeVote,
			Message:   fmt.Sprintf("%s has cast votes for %s", ShortAddress(v.Wallet), token),
			RelatedID: &related,
			Timestamp: v.Timestamp,
		},
		{
			Type:      LogTypeAnalysis,
			Message:   fmt.Sprintf("Analyzing token %s - %s", token, v.TokenAddress),
			RelatedID: &related,
			Data:      v.AnalysisData,
			Timestamp: v.Timestamp,
		},
	}
}
