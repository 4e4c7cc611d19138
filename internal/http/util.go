package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"qp-spc/internal/models"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// writeError 校验错误 → 400，不存在 → 404，其余 → 500
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusBadRequest, Fail(formatValidationErrors(verrs)))
	case models.IsValidationError(err):
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, Fail(err.Error()))
	default:
		logger.Error("Request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("internal error"))
	}
}

func formatValidationErrors(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Field()+": failed '"+fe.Tag()+"' validation")
	}
	return strings.Join(msgs, "; ")
}

// pathID 取前缀之后的第一段（按转义路径切分后再解码），返回剩余路径
func pathID(req *http.Request, prefix string) (id string, rest string) {
	tail := strings.TrimPrefix(req.URL.EscapedPath(), prefix)
	if i := strings.Index(tail, "/"); i >= 0 {
		tail, rest = tail[:i], tail[i+1:]
	}
	id, err := url.PathUnescape(tail)
	if err != nil {
		return "", rest
	}
	return id, rest
}
