package api

import (
	"encoding/hex"
	"encoding/json"
	"net/http"

	"ProjectAnchor/internal/anchor"
	"ProjectAnchor/internal/contract"
	xerrors "ProjectAnchor/internal/errors"
	"ProjectAnchor/internal/payload"
)

type payloadRequest struct {
	Kind        string          `json:"kind"`
	Fields      json.RawMessage `json:"fields"`
	PayloadHash string          `json:"payload_hash,omitempty"`
}

type payloadResponse struct {
	Kind        payload.Kind `json:"kind"`
	AnchorType  anchor.Type  `json:"anchor_type"`
	Canonical   string       `json:"canonical"`
	PayloadHash string       `json:"payload_hash"`
	Fields      payload.Body `json:"fields"`
}

func sealedResponse(p payload.Sealed) payloadResponse {
	return payloadResponse{
		Kind:        p.Kind(),
		AnchorType:  p.AnchorType(),
		Canonical:   p.Canonical(),
		PayloadHash: p.Hash(),
		Fields:      p.Fields(),
	}
}

func (s *Server) handleInstantiate(w http.ResponseWriter, r *http.Request) {
	var msg contract.InstantiateMsg
	if err := decodeJSON(w, r, &msg); err != nil && err != errEmptyBody {
		writeError(w, r, err)
		return
	}
	resp, err := s.host.Instantiate(r.Context(), s.sender(r), msg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var msg contract.ExecuteMsg
	if err := decodeJSON(w, r, &msg); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := s.host.Execute(r.Context(), s.sender(r), msg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var msg contract.QueryMsg
	if err := decodeJSON(w, r, &msg); err != nil {
		writeError(w, r, err)
		return
	}
	raw, err := s.host.Query(r.Context(), msg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeRaw(w, http.StatusOK, raw)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	raw, err := s.host.Query(r.Context(), contract.QueryMsg{GetConfig: &contract.Empty{}})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeRaw(w, http.StatusOK, raw)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	typ, err := anchor.ParseType(r.PathValue("type"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	// 长度由处理器校验，错误码为 INVALID_HASH_LENGTH。
	hash, err := hex.DecodeString(r.PathValue("hash"))
	if err != nil {
		writeError(w, r, xerrors.Wrap(xerrors.CodeDecodeFailure, err, "invalid hex digest"))
		return
	}
	raw, err := s.host.Query(r.Context(), contract.NewVerifyMsg(typ, hash))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeRaw(w, http.StatusOK, raw)
}

func (s *Server) handleBuildPayload(w http.ResponseWriter, r *http.Request) {
	sealed, err := s.buildPayload(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sealedResponse(sealed))
}

func (s *Server) handleVerifyPayload(w http.ResponseWriter, r *http.Request) {
	var req payloadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	kind, err := payload.ParseKind(req.Kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.PayloadHash == "" {
		writeError(w, r, xerrors.New(xerrors.CodeInvalidArgument, "payload_hash 不能为空"))
		return
	}
	valid, err := payload.VerifyJSON(kind, req.Fields, req.PayloadHash)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

func (s *Server) buildPayload(w http.ResponseWriter, r *http.Request) (payload.Sealed, error) {
	var req payloadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return nil, err
	}
	kind, err := payload.ParseKind(req.Kind)
	if err != nil {
		return nil, err
	}
	return payload.Build(kind, req.Fields)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	height, err := s.host.Height(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"chain_id": s.host.ChainID(),
		"height":   height,
	})
}
