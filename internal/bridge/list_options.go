package bridge

import (
	"strings"

	"ProjectAnchor/internal/anchor"
)

// SortOrder defines how receipts are ordered when listing.
type SortOrder int

const (
	// SortByUpdatedDesc orders receipts by UpdatedAt descending (most recent first).
	SortByUpdatedDesc SortOrder = iota
	// SortByUpdatedAsc orders receipts by UpdatedAt ascending.
	SortByUpdatedAsc
)

// ListOptions controls which receipts are returned by the store.
type ListOptions struct {
	Limit       int
	Offset      int
	Statuses    []Status
	AnchorType  anchor.Type
	PayloadHash string
	Order       SortOrder
}

func (opts *ListOptions) applyDefaults() {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	if opts.Statuses != nil {
		opts.Statuses = normalizeStatuses(opts.Statuses)
	}
	if !opts.AnchorType.Valid() {
		opts.AnchorType = 0
	}
	if opts.Order != SortByUpdatedAsc {
		opts.Order = SortByUpdatedDesc
	}
	opts.PayloadHash = strings.ToLower(strings.TrimSpace(opts.PayloadHash))
}

// ListOption mutates ListOptions.
type ListOption func(*ListOptions)

// WithLimit limits the number of receipts returned.
func WithLimit(limit int) ListOption {
	return func(opts *ListOptions) {
		opts.Limit = limit
	}
}

// WithOffset skips the first n matching receipts.
func WithOffset(offset int) ListOption {
	return func(opts *ListOptions) {
		opts.Offset = offset
	}
}

// WithStatuses filters receipts by status.
func WithStatuses(statuses ...Status) ListOption {
	return func(opts *ListOptions) {
		opts.Statuses = append(opts.Statuses[:0], statuses...)
	}
}

// WithAnchorType filters receipts by namespace.
func WithAnchorType(typ anchor.Type) ListOption {
	return func(opts *ListOptions) {
		opts.AnchorType = typ
	}
}

// WithPayloadHash filters receipts for one payload digest.
func WithPayloadHash(hash string) ListOption {
	return func(opts *ListOptions) {
		opts.PayloadHash = hash
	}
}

// WithSortOrder changes the returned order.
func WithSortOrder(order SortOrder) ListOption {
	return func(opts *ListOptions) {
		opts.Order = order
	}
}

func buildListOptions(opts []ListOption) ListOptions {
	options := ListOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	options.applyDefaults()
	return options
}

func normalizeStatuses(input []Status) []Status {
	if len(input) == 0 {
		return nil
	}
	seen := make(map[Status]struct{}, len(input))
	result := make([]Status, 0, len(input))
	for _, status := range input {
		if !IsValidStatus(status) {
			continue
		}
		if _, ok := seen[status]; ok {
			continue
		}
		seen[status] = struct{}{}
		result = append(result, status)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func matchesListFilters(r *Receipt, opts ListOptions) bool {
	if len(opts.Statuses) > 0 {
		matched := false
		for _, status := range opts.Statuses {
			if r.Status == status {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if opts.AnchorType != 0 && r.AnchorType != opts.AnchorType {
		return false
	}
	if opts.PayloadHash != "" && r.PayloadHash != opts.PayloadHash {
		return false
	}
	return true
}
