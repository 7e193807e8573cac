package bridge

// ReceiptStats 聚合回执状态，供健康检查与运维查看。
type ReceiptStats struct {
	Total           int   `json:"total"`
	Pending         int   `json:"pending"`
	Submitted       int   `json:"submitted"`
	Confirmed       int   `json:"confirmed"`
	Failed          int   `json:"failed"`
	DryRun          int   `json:"dry_run"`
	OldestUpdatedAt int64 `json:"oldest_updated_at,omitempty"`
	NewestUpdatedAt int64 `json:"newest_updated_at,omitempty"`
}

func (s *ReceiptStats) add(r *Receipt) {
	s.Total++
	switch r.Status {
	case StatusPending:
		s.Pending++
	case StatusSubmitted:
		s.Submitted++
	case StatusConfirmed:
		s.Confirmed++
	case StatusFailed:
		s.Failed++
	case StatusDryRun:
		s.DryRun++
	}
	if r.UpdatedAt > s.NewestUpdatedAt {
		s.NewestUpdatedAt = r.UpdatedAt
	}
	if s.OldestUpdatedAt == 0 || (r.UpdatedAt != 0 && r.UpdatedAt < s.OldestUpdatedAt) {
		s.OldestUpdatedAt = r.UpdatedAt
	}
}
