package api

import (
	"encoding/json"
	stdErrors "errors"
	"io"
	"log/slog"
	"net/http"

	xerrors "ProjectAnchor/internal/errors"
	"ProjectAnchor/pkg/logger"
)

var errEmptyBody = xerrors.New(xerrors.CodeInvalidArgument, "请求体不能为空")

type errorPayload struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func errorBody(code, message string) map[string]errorPayload {
	return map[string]errorPayload{"error": {Code: code, Message: message}}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRaw 输出已编码的 JSON。
func writeRaw(w http.ResponseWriter, status int, raw []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

// writeError 将统一错误映射为 HTTP 状态码。
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	xe, ok := xerrors.From(err)
	if !ok {
		xe = xerrors.Wrap(xerrors.CodeUnknown, err, "")
	}
	if status >= http.StatusInternalServerError {
		logger.L().Error("请求处理失败",
			slog.String("path", r.URL.Path),
			slog.String("code", string(xe.Code())),
			slog.Any("error", err),
		)
	}
	message := xe.Message()
	if cause := stdErrors.Unwrap(xe); cause != nil && status < http.StatusInternalServerError {
		message += ": " + cause.Error()
	}
	writeJSON(w, status, map[string]errorPayload{"error": {
		Code:     string(xe.Code()),
		Message:  message,
		Metadata: xe.Metadata(),
	}})
}

func statusFor(err error) int {
	if xerrors.CodeOf(err) == xerrors.CodeInitializationFailure {
		return http.StatusServiceUnavailable
	}
	switch xerrors.KindOf(err) {
	case xerrors.KindValidation, xerrors.KindDecode:
		return http.StatusBadRequest
	case xerrors.KindAbsence:
		return http.StatusNotFound
	case xerrors.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// decodeJSON 读取请求体，拒绝未知字段与多余内容。
func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		if stdErrors.Is(err, io.EOF) {
			return errEmptyBody
		}
		var tooLarge *http.MaxBytesError
		if stdErrors.As(err, &tooLarge) {
			return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体过大")
		}
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体解析失败")
	}
	if dec.More() {
		return xerrors.New(xerrors.CodeInvalidArgument, "请求体包含多余内容")
	}
	return nil
}
