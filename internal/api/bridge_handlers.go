package api

import (
	"net/http"
	"strconv"
	"strings"

	"ProjectAnchor/internal/anchor"
	"ProjectAnchor/internal/bridge"
	xerrors "ProjectAnchor/internal/errors"
)

func (s *Server) handleBridgeAnchor(w http.ResponseWriter, r *http.Request) {
	sealed, err := s.buildPayload(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	receipt, err := s.bridge.AnchorSealed(r.Context(), sealed)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, receipt)
}

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptionsFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	receipts, err := s.bridge.List(r.Context(), opts...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"receipts": receipts})
}

func (s *Server) handleReceiptStats(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptionsFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := s.bridge.Stats(r.Context(), opts...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleReceiptDetail(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.bridge.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleVerifyReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, ok, err := s.bridge.VerifyID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"receipt": receipt, "verified": ok})
}

func listOptionsFromQuery(r *http.Request) ([]bridge.ListOption, error) {
	query := r.URL.Query()
	var opts []bridge.ListOption
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "limit 必须为正整数")
		}
		opts = append(opts, bridge.WithLimit(limit))
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "offset 必须为非负整数")
		}
		opts = append(opts, bridge.WithOffset(offset))
	}
	if raw := query.Get("status"); raw != "" {
		var statuses []bridge.Status
		for _, part := range strings.Split(raw, ",") {
			status := bridge.Status(strings.TrimSpace(part))
			if !bridge.IsValidStatus(status) {
				return nil, xerrors.New(xerrors.CodeInvalidArgument, "未知的回执状态", xerrors.WithMetadata("status", part))
			}
			statuses = append(statuses, status)
		}
		opts = append(opts, bridge.WithStatuses(statuses...))
	}
	if raw := query.Get("anchor_type"); raw != "" {
		typ, err := anchor.ParseType(raw)
		if err != nil {
			return nil, err
		}
		opts = append(opts, bridge.WithAnchorType(typ))
	}
	if raw := query.Get("payload_hash"); raw != "" {
		opts = append(opts, bridge.WithPayloadHash(raw))
	}
	if strings.EqualFold(query.Get("order"), "asc") {
		opts = append(opts, bridge.WithSortOrder(bridge.SortByUpdatedAsc))
	}
	return opts, nil
}
