package httpapi

import (
	"net/http"
	"reflect"
	"strings"
	"time"

	"qp-spc/internal/models"
	"qp-spc/internal/service"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// SPCHandler SPC 接口
type SPCHandler struct {
	samples   *service.SampleService
	dashboard *service.DashboardService
	validate  *validator.Validate
	now       func() time.Time
	logger    *zap.Logger
}

// NewSPCHandler 创建 SPC 接口处理器
func NewSPCHandler(samples *service.SampleService, dashboard *service.DashboardService, logger *zap.Logger) *SPCHandler {
	v := validator.New()
	// 错误信息使用 json 字段名
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &SPCHandler{
		samples:   samples,
		dashboard: dashboard,
		validate:  v,
		now:       time.Now,
		logger:    logger,
	}
}

type keyRequest struct {
	Workstation string `json:"workstation"`
	Order       string `json:"order"`
	Process     string `json:"process"`
	ItemNumber  string `json:"item_number"`
}

func (k keyRequest) key() models.CharacteristicKey {
	return models.CharacteristicKey{
		Workstation: k.Workstation,
		Order:       k.Order,
		Process:     k.Process,
		ItemNumber:  k.ItemNumber,
	}
}

type openRequest struct {
	keyRequest
	PlanNumber string `json:"plan_number" validate:"required"`
}

type saveSampleRequest struct {
	keyRequest
	PlanNumber string     `json:"plan_number" validate:"required"`
	RawInput   string     `json:"raw_input" validate:"max=4096"`
	Defects    *int       `json:"defects" validate:"omitempty,min=0"`
	Note       string     `json:"note" validate:"max=1000"`
	ImageURL   string     `json:"image_url" validate:"omitempty,url"`
	Timestamp  *time.Time `json:"timestamp"`
}

type annotateRequest struct {
	Note     *string `json:"note" validate:"omitempty,max=1000"`
	ImageURL *string `json:"image_url" validate:"omitempty,url"`
}

// ResolveKey GET /keys?workstation=&order=&process=&item=
func (h *SPCHandler) ResolveKey(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id, err := models.ResolveKey(q.Get("workstation"), q.Get("order"), q.Get("process"), q.Get("item"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]string{"id": id}))
}

// OpenCharacteristic POST /dna/open
func (h *SPCHandler) OpenCharacteristic(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	rec, err := h.samples.OpenCharacteristic(r.Context(), req.PlanNumber, req.key())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(rec))
}

// SaveSample POST /samples
func (h *SPCHandler) SaveSample(w http.ResponseWriter, r *http.Request) {
	var req saveSampleRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	in := service.SaveSampleRequest{
		PlanNumber: req.PlanNumber,
		Key:        req.key(),
		RawInput:   req.RawInput,
		Defects:    req.Defects,
		Note:       req.Note,
		ImageURL:   req.ImageURL,
	}
	if req.Timestamp != nil {
		in.Timestamp = *req.Timestamp
	}

	result, err := h.samples.SaveSample(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

// AnnotateSample PATCH /samples/{id}
func (h *SPCHandler) AnnotateSample(w http.ResponseWriter, r *http.Request, sampleID string) {
	var req annotateRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	s, err := h.dashboard.AnnotateSample(r.Context(), sampleID, req.Note, req.ImageURL)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(s))
}

// ListRecords GET /dna
func (h *SPCHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.dashboard.Records(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(records))
}

// GetRecord GET /dna/{id}
func (h *SPCHandler) GetRecord(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := h.dashboard.Record(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(rec))
}

// UpdateRecord PATCH /dna/{id}
func (h *SPCHandler) UpdateRecord(w http.ResponseWriter, r *http.Request, id string) {
	var patch models.DnaPatch
	if err := readBodyJSON(r, maxBodyBytes, &patch); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	rec, err := h.dashboard.UpdateRecord(r.Context(), id, patch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(rec))
}

// GetDueState GET /dna/{id}/due，未跟踪时 result 为 null
func (h *SPCHandler) GetDueState(w http.ResponseWriter, r *http.Request, id string) {
	state, err := h.dashboard.DueState(r.Context(), id, h.now())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(state))
}

// GetSeries GET /dna/{id}/series?limit=
func (h *SPCHandler) GetSeries(w http.ResponseWriter, r *http.Request, id string) {
	limit := parseInt(r.URL.Query().Get("limit"), 0)
	points, err := h.dashboard.Series(r.Context(), id, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(points))
}
