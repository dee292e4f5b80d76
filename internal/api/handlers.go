package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/dermascan-server/internal/domain"
	"github.com/dermascan-server/internal/history"
	"github.com/dermascan-server/internal/imaging"
	"github.com/dermascan-server/internal/middleware"
	"github.com/dermascan-server/internal/report"
	"github.com/dermascan-server/internal/service"
	"github.com/dermascan-server/pkg/external"
)

// errUploadTooLarge marks bodies cut off by MaxBodySize.
var errUploadTooLarge = errors.New("upload exceeds size limit")

type diagnoseResponse struct {
	*service.DiagnoseResult
	// OverlayImage is the attention overlay as a PNG data URL, or the
	// source image when the overlay fell back.
	OverlayImage string `json:"overlay_image,omitempty"`
}

type conditionInfo struct {
	Name        domain.Condition `json:"name"`
	DisplayName string           `json:"display_name"`
	Index       int              `json:"index"`
}

type historyPage struct {
	UserID    string                    `json:"user_id"`
	Diagnoses []*domain.DiagnosisRecord `json:"diagnoses"`
	Total     int64                     `json:"total"`
	Limit     int                       `json:"limit"`
	Offset    int                       `json:"offset"`
}

func (s *Server) handleDiagnose(c *gin.Context) {
	params, err := parseDiagnoseRequest(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	result, err := s.diagnosis.DiagnoseSkin(c.Request.Context(), params)
	if err != nil {
		s.respondError(c, err)
		return
	}

	resp := diagnoseResponse{DiagnoseResult: result}
	if img := result.DisplayImage(); img != nil {
		if url, err := imaging.PNGDataURL(img); err == nil {
			resp.OverlayImage = url
		} else {
			s.logger.WithError(err).Warn("Failed to encode overlay image")
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleReport(c *gin.Context) {
	params, err := parseDiagnoseRequest(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	result, patient, err := s.reportResult(c, params)
	if err != nil {
		s.respondError(c, err)
		return
	}

	data := &report.Data{
		PatientName:     patient,
		Date:            result.CreatedAt,
		Primary:         result.Primary,
		Others:          result.Others,
		Recommendations: result.Recommendations,
		Symptoms:        result.Symptoms,
		Original:        result.Source,
	}
	if result.Overlay != nil {
		data.Overlay = result.Overlay
	}

	var buf bytes.Buffer
	if err := report.Render(&buf, data); err != nil {
		s.respondError(c, fmt.Errorf("rendering report: %w", err))
		return
	}

	name := report.FileName(patient, result.CreatedAt)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Header("X-Diagnosis-ID", result.DiagnosisID)
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// reportResult resolves the diagnosis a report describes. With a
// diagnosis_id the stored diagnosis is rebuilt against the uploaded image;
// without one the upload is diagnosed once and not kept in history.
func (s *Server) reportResult(c *gin.Context, params *service.DiagnoseParams) (*service.DiagnoseResult, string, error) {
	id := strings.TrimSpace(c.PostForm("diagnosis_id"))
	if id == "" {
		params.UserID = ""
		result, err := s.diagnosis.DiagnoseSkin(c.Request.Context(), params)
		return result, params.PatientName, err
	}
	if s.history == nil {
		return nil, "", domain.NewValidationError("diagnosis_id", "diagnosis history is not enabled", id)
	}

	rec, err := s.history.Get(c.Request.Context(), id)
	if err != nil {
		return nil, "", err
	}
	result, err := s.diagnosis.Restore(rec, params.Image, params.TopN)
	if err != nil {
		return nil, "", err
	}

	patient := params.PatientName
	if patient == "" {
		patient = rec.PatientName
	}
	return result, patient, nil
}

func (s *Server) handleConditions(c *gin.Context) {
	conditions := domain.Conditions()
	out := make([]conditionInfo, len(conditions))
	for i, cond := range conditions {
		out[i] = conditionInfo{Name: cond, DisplayName: cond.DisplayName(), Index: cond.Index()}
	}
	c.JSON(http.StatusOK, gin.H{"conditions": out, "symptoms": domain.Symptoms()})
}

func (s *Server) handleRecommendations(c *gin.Context) {
	label, err := domain.ParseCondition(c.Param("label"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"condition":       label,
		"recommendations": service.Recommend(label),
	})
}

func (s *Server) handleListDiagnoses(c *gin.Context) {
	userID := c.Param("user_id")
	limit, err := queryInt(c, "limit", history.DefaultListLimit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		s.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	records, err := s.history.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}
	total, err := s.history.CountByUser(ctx, userID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if records == nil {
		records = []*domain.DiagnosisRecord{}
	}

	c.JSON(http.StatusOK, historyPage{
		UserID:    userID,
		Diagnoses: records,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	})
}

func (s *Server) handleGetDiagnosis(c *gin.Context) {
	rec, err := s.history.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleDeleteDiagnosis(c *gin.Context) {
	if err := s.history.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// parseDiagnoseRequest reads the multipart upload: an "image" file, one
// form field per symptom flag, and the optional user_id, patient_name,
// top_n and comma-separated symptoms fields.
func parseDiagnoseRequest(c *gin.Context) (*service.DiagnoseParams, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return nil, errUploadTooLarge
		}
		return nil, fmt.Errorf("%w: image file is required", domain.ErrInputMissing)
	}
	if !imaging.AllowedExtension(fh.Filename) {
		return nil, &domain.ValidationError{
			Field:   "image",
			Message: "unsupported image type",
			Value:   fh.Filename,
			Err:     domain.ErrInvalidImage,
		}
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("opening upload: %w", err)
	}
	defer f.Close()

	img, _, err := imaging.Decode(f)
	if err != nil {
		return nil, err
	}

	symptoms, err := parseSymptoms(c)
	if err != nil {
		return nil, err
	}

	topN := 0
	if v := c.PostForm("top_n"); v != "" {
		topN, err = strconv.Atoi(v)
		if err != nil {
			return nil, domain.NewValidationError("top_n", "top_n must be an integer", v)
		}
	}

	return &service.DiagnoseParams{
		Image:       img,
		Symptoms:    symptoms,
		UserID:      strings.TrimSpace(c.PostForm("user_id")),
		PatientName: strings.TrimSpace(c.PostForm("patient_name")),
		TopN:        topN,
	}, nil
}

func parseSymptoms(c *gin.Context) (domain.SymptomEvidence, error) {
	evidence := domain.SymptomEvidence{}

	for _, sym := range domain.Symptoms() {
		v, ok := c.GetPostForm(sym.String())
		if !ok {
			continue
		}
		flag, err := parseFlag(v)
		if err != nil {
			return nil, domain.NewValidationError(sym.String(), "symptom flags must be 1/0 or true/false", v)
		}
		evidence[sym] = flag
	}

	if list := c.PostForm("symptoms"); list != "" {
		for _, name := range strings.Split(list, ",") {
			if strings.TrimSpace(name) == "" {
				continue
			}
			sym, err := domain.ParseSymptom(name)
			if err != nil {
				return nil, err
			}
			evidence[sym] = true
		}
	}
	return evidence, nil
}

func parseFlag(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "false", "no", "off":
		return false, nil
	case "1", "true", "yes", "on":
		return true, nil
	}
	return false, fmt.Errorf("invalid flag %q", v)
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, domain.NewValidationError(key, key+" must be a non-negative integer", v)
	}
	return n, nil
}

// respondError writes err as a coded APIError with a matching status.
func (s *Server) respondError(c *gin.Context, err error) {
	code := domain.ErrorCode(err)
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, errUploadTooLarge):
		code, status = domain.ErrCodeInvalidInput, http.StatusRequestEntityTooLarge
	case errors.Is(err, external.ErrModelUnavailable):
		code, status = domain.ErrCodeExternalAPI, http.StatusServiceUnavailable
	case code == domain.ErrCodeInputMissing, code == domain.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	case code == domain.ErrCodeNotFound:
		status = http.StatusNotFound
	case code == domain.ErrCodeRateLimit:
		status = http.StatusTooManyRequests
	}

	requestID := c.GetString(middleware.CorrelationIDKey)
	message := http.StatusText(status)
	details := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"correlation_id": requestID,
			"code":           code,
			"path":           c.FullPath(),
		}).Error("Request failed")
		if code == domain.ErrCodeInternalServer {
			details = ""
		}
	}

	resp := gin.H{"error": domain.NewAPIError(code, message, details, requestID)}
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		resp["field"] = validationErr.Field
	}
	c.AbortWithStatusJSON(status, resp)
}
