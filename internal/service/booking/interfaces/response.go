package interfaces

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"staybook/internal/pkg/logger"
	"staybook/internal/service/booking/domain"
)

// maxBodyBytes 写接口请求体的上限
const maxBodyBytes = 1 << 20

// MessageResponse 是所有非实体响应的统一格式
type MessageResponse struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Msg("failed to encode response")
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, MessageResponse{Message: message})
}

// failure 描述一个路由在各类错误下返回给客户端的文案
type failure struct {
	notFound  string
	invalid   string
	duplicate string
	internal  string
}

// writeFailure 把领域错误翻译成 HTTP 状态码。非预期错误只记录日志，客户端只看到通用文案。
func writeFailure(w http.ResponseWriter, r *http.Request, err error, f failure) {
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNotFound) && f.notFound != "":
		writeMessage(w, http.StatusNotFound, f.notFound)
	case errors.As(err, &verr) && f.invalid != "":
		writeJSON(w, http.StatusBadRequest, MessageResponse{Message: f.invalid, Errors: verr.Violations})
	case errors.Is(err, domain.ErrDuplicate) && f.invalid != "":
		resp := MessageResponse{Message: f.invalid}
		if f.duplicate != "" {
			resp.Errors = []string{f.duplicate}
		}
		writeJSON(w, http.StatusBadRequest, resp)
	default:
		logger.Ctx(r.Context()).Error().Err(err).Str("route", r.Pattern).Msg(f.internal)
		writeMessage(w, http.StatusInternalServerError, f.internal)
	}
}

// readBody 读取有大小上限的请求体
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, &domain.ValidationError{Schema: "body", Violations: []string{err.Error()}}
	}
	return body, nil
}
