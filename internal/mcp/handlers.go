package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/dermascan-server/internal/domain"
	"github.com/dermascan-server/internal/history"
	"github.com/dermascan-server/internal/imaging"
	"github.com/dermascan-server/internal/service"
)

// DiagnoseSkinInput defines parameters for the diagnose_skin tool
type DiagnoseSkinInput struct {
	Image          string   `json:"image" jsonschema:"the skin image as a base64 data URL or bare base64"`
	Symptoms       []string `json:"symptoms,omitempty" jsonschema:"present symptoms: itching, bleeding, scaly_skin, white_patches, sudden_onset"`
	UserID         string   `json:"user_id,omitempty" jsonschema:"opaque user identifier; the diagnosis is saved to history when set"`
	PatientName    string   `json:"patient_name,omitempty" jsonschema:"patient name stored with the history record"`
	TopN           int      `json:"top_n,omitempty" jsonschema:"number of ranked predictions to return"`
	IncludeOverlay bool     `json:"include_overlay,omitempty" jsonschema:"return the attention overlay as a PNG data URL"`
}

// DiagnoseSkinOutput is the structured result of diagnose_skin
type DiagnoseSkinOutput struct {
	DiagnosisID     string                   `json:"diagnosis_id"`
	Primary         domain.ScoredCondition   `json:"primary"`
	Others          []domain.ScoredCondition `json:"others"`
	Predictions     []domain.ScoredCondition `json:"predictions"`
	Recommendations []string                 `json:"recommendations"`
	Symptoms        []string                 `json:"symptoms"`
	OverlayFallback bool                     `json:"overlay_fallback"`
	HistorySaved    bool                     `json:"history_saved"`
	CreatedAt       string                   `json:"created_at"`
	OverlayImage    string                   `json:"overlay_image,omitempty"`
}

// RecommendationsInput defines parameters for get_recommendations
type RecommendationsInput struct {
	Condition string `json:"condition" jsonschema:"condition label, e.g. Eczema or Benign_tumors"`
}

// RecommendationsOutput is the result of get_recommendations
type RecommendationsOutput struct {
	Condition       string   `json:"condition"`
	Recommendations []string `json:"recommendations"`
}

// ListConditionsInput takes no parameters.
type ListConditionsInput struct{}

// ConditionEntry describes one catalog entry.
type ConditionEntry struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Index       int    `json:"index"`
}

// ListConditionsOutput is the result of list_conditions
type ListConditionsOutput struct {
	Conditions []ConditionEntry `json:"conditions"`
	Symptoms   []string         `json:"symptoms"`
}

// ListHistoryInput defines parameters for list_history
type ListHistoryInput struct {
	UserID string `json:"user_id" jsonschema:"user whose diagnoses to list"`
	Limit  int    `json:"limit,omitempty" jsonschema:"page size, default 50"`
	Offset int    `json:"offset,omitempty" jsonschema:"number of records to skip"`
}

// HistoryEntry is a saved diagnosis as returned to MCP clients.
type HistoryEntry struct {
	ID          string             `json:"id"`
	PatientName string             `json:"patient_name,omitempty"`
	Primary     string             `json:"primary"`
	Results     map[string]float64 `json:"results"`
	Symptoms    []string           `json:"symptoms"`
	ImageRef    string             `json:"image_ref"`
	CreatedAt   string             `json:"created_at"`
}

// ListHistoryOutput is the result of list_history
type ListHistoryOutput struct {
	UserID    string         `json:"user_id"`
	Total     int64          `json:"total"`
	Diagnoses []HistoryEntry `json:"diagnoses"`
}

// ExportHistoryInput defines parameters for export_history
type ExportHistoryInput struct {
	UserID string `json:"user_id,omitempty" jsonschema:"limit the export to one user; all users when empty"`
}

// ExportHistoryOutput is the result of export_history
type ExportHistoryOutput struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	FilePath string `json:"file_path,omitempty"`
	Data     string `json:"data,omitempty"`
}

// ImportHistoryInput defines parameters for import_history
type ImportHistoryInput struct {
	FilePath string `json:"file_path" jsonschema:"path to a JSON file written by export_history"`
}

// ImportHistoryOutput is the result of import_history
type ImportHistoryOutput struct {
	Success  bool   `json:"success"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
	Message  string `json:"message"`
}

func (s *Server) handleDiagnoseSkin(ctx context.Context, req *mcp.CallToolRequest, in DiagnoseSkinInput) (*mcp.CallToolResult, DiagnoseSkinOutput, error) {
	s.logger.WithField("tool", "diagnose_skin").Info("Tool invoked")

	if in.Image == "" {
		return toolError(domain.ErrCodeInputMissing, domain.ErrInputMissing), DiagnoseSkinOutput{}, nil
	}
	img, err := imaging.DecodeDataURL(in.Image)
	if err != nil {
		return toolError(domain.ErrorCode(err), err), DiagnoseSkinOutput{}, nil
	}

	evidence := domain.SymptomEvidence{}
	for _, name := range in.Symptoms {
		sym, err := domain.ParseSymptom(name)
		if err != nil {
			return toolError(domain.ErrorCode(err), err), DiagnoseSkinOutput{}, nil
		}
		evidence[sym] = true
	}

	result, err := s.diagnosis.DiagnoseSkin(ctx, &service.DiagnoseParams{
		Image:       img,
		Symptoms:    evidence,
		UserID:      in.UserID,
		PatientName: in.PatientName,
		TopN:        in.TopN,
	})
	if err != nil {
		if !service.IsUserError(err) {
			s.logger.WithError(err).Error("diagnose_skin failed")
		}
		return toolError(domain.ErrorCode(err), err), DiagnoseSkinOutput{}, nil
	}

	out := DiagnoseSkinOutput{
		DiagnosisID:     result.DiagnosisID,
		Primary:         result.Primary,
		Others:          result.Others,
		Predictions:     result.Predictions,
		Recommendations: result.Recommendations,
		Symptoms:        symptomNames(result.Symptoms),
		OverlayFallback: result.OverlayFallback,
		HistorySaved:    result.HistorySaved,
		CreatedAt:       result.CreatedAt.Format(time.RFC3339),
	}
	if in.IncludeOverlay {
		if url, err := imaging.PNGDataURL(result.DisplayImage()); err == nil {
			out.OverlayImage = url
		} else {
			s.logger.WithError(err).Warn("Failed to encode overlay image")
		}
	}

	summary := fmt.Sprintf("Primary diagnosis: %s (%s)", result.Primary.Condition.DisplayName(), result.Primary.Percent)
	for _, o := range result.Others {
		summary += fmt.Sprintf("\nAlso consider: %s (%s)", o.Condition.DisplayName(), o.Percent)
	}
	return textResult(summary), out, nil
}

func (s *Server) handleGetRecommendations(ctx context.Context, req *mcp.CallToolRequest, in RecommendationsInput) (*mcp.CallToolResult, RecommendationsOutput, error) {
	label, err := domain.ParseCondition(in.Condition)
	if err != nil {
		return toolError(domain.ErrorCode(err), err), RecommendationsOutput{}, nil
	}

	out := RecommendationsOutput{Condition: string(label), Recommendations: service.Recommend(label)}
	return jsonResult(out), out, nil
}

func (s *Server) handleListConditions(ctx context.Context, req *mcp.CallToolRequest, in ListConditionsInput) (*mcp.CallToolResult, ListConditionsOutput, error) {
	var out ListConditionsOutput
	for _, c := range domain.Conditions() {
		out.Conditions = append(out.Conditions, ConditionEntry{Name: string(c), DisplayName: c.DisplayName(), Index: c.Index()})
	}
	out.Symptoms = symptomNames(domain.Symptoms())
	return jsonResult(out), out, nil
}

func (s *Server) handleListHistory(ctx context.Context, req *mcp.CallToolRequest, in ListHistoryInput) (*mcp.CallToolResult, ListHistoryOutput, error) {
	if in.UserID == "" {
		err := domain.NewValidationError("user_id", "user_id is required", in.UserID)
		return toolError(domain.ErrCodeInvalidInput, err), ListHistoryOutput{}, nil
	}
	limit := in.Limit
	if limit <= 0 {
		limit = history.DefaultListLimit
	}

	records, err := s.history.ListByUser(ctx, in.UserID, limit, in.Offset)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list history")
		return toolError(domain.ErrorCode(err), err), ListHistoryOutput{}, nil
	}
	total, err := s.history.CountByUser(ctx, in.UserID)
	if err != nil {
		return toolError(domain.ErrorCode(err), err), ListHistoryOutput{}, nil
	}

	out := ListHistoryOutput{UserID: in.UserID, Total: total, Diagnoses: []HistoryEntry{}}
	for _, rec := range records {
		out.Diagnoses = append(out.Diagnoses, HistoryEntry{
			ID:          rec.ID,
			PatientName: rec.PatientName,
			Primary:     string(rec.Primary),
			Results:     rec.Results,
			Symptoms:    symptomNames(rec.Symptoms),
			ImageRef:    rec.ImageRef,
			CreatedAt:   rec.CreatedAt.Format(time.RFC3339),
		})
	}
	return textResult(fmt.Sprintf("Found %d of %d diagnoses for %s", len(out.Diagnoses), total, in.UserID)), out, nil
}

func (s *Server) handleExportHistory(ctx context.Context, req *mcp.CallToolRequest, in ExportHistoryInput) (*mcp.CallToolResult, ExportHistoryOutput, error) {
	if s.exportDir == "" {
		var buf bytes.Buffer
		if err := s.history.ExportJSON(ctx, in.UserID, &buf); err != nil {
			s.logger.WithError(err).Error("Failed to export history")
			return toolError(domain.ErrCodeDatabase, err), ExportHistoryOutput{}, nil
		}
		out := ExportHistoryOutput{Success: true, Message: "Exported history inline", Data: buf.String()}
		return textResult(out.Message), out, nil
	}

	if err := os.MkdirAll(s.exportDir, 0755); err != nil {
		return toolError(domain.ErrCodeInternalServer, fmt.Errorf("failed to create export directory: %w", err)), ExportHistoryOutput{}, nil
	}

	filename := fmt.Sprintf("history_export_%s.json", time.Now().Format("20060102_150405"))
	filePath := filepath.Join(s.exportDir, filename)

	file, err := os.Create(filePath)
	if err != nil {
		return toolError(domain.ErrCodeInternalServer, fmt.Errorf("failed to create export file: %w", err)), ExportHistoryOutput{}, nil
	}
	defer file.Close()

	if err := s.history.ExportJSON(ctx, in.UserID, file); err != nil {
		s.logger.WithError(err).Error("Failed to export history")
		return toolError(domain.ErrCodeDatabase, err), ExportHistoryOutput{}, nil
	}

	s.logger.WithFields(logrus.Fields{"file": filePath, "user_id": in.UserID}).Info("History exported")
	out := ExportHistoryOutput{
		Success:  true,
		Message:  fmt.Sprintf("Exported history to %s", filePath),
		FilePath: filePath,
	}
	return textResult(out.Message), out, nil
}

func (s *Server) handleImportHistory(ctx context.Context, req *mcp.CallToolRequest, in ImportHistoryInput) (*mcp.CallToolResult, ImportHistoryOutput, error) {
	if in.FilePath == "" {
		err := domain.NewValidationError("file_path", "file_path is required", in.FilePath)
		return toolError(domain.ErrCodeInvalidInput, err), ImportHistoryOutput{}, nil
	}

	file, err := os.Open(in.FilePath)
	if err != nil {
		code := domain.ErrCodeInternalServer
		if errors.Is(err, os.ErrNotExist) {
			code = domain.ErrCodeNotFound
		}
		return toolError(code, err), ImportHistoryOutput{}, nil
	}
	defer file.Close()

	imported, skipped, err := s.history.ImportJSON(ctx, file)
	if err != nil {
		s.logger.WithError(err).Error("Failed to import history")
		return toolError(domain.ErrorCode(err), err), ImportHistoryOutput{}, nil
	}

	out := ImportHistoryOutput{
		Success:  true,
		Imported: imported,
		Skipped:  skipped,
		Message:  fmt.Sprintf("Imported %d entries, skipped %d duplicates", imported, skipped),
	}
	return textResult(out.Message), out, nil
}

func jsonResult(v interface{}) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError(domain.ErrCodeInternalServer, err)
	}
	return textResult(string(data))
}

func symptomNames(symptoms []domain.Symptom) []string {
	out := make([]string, len(symptoms))
	for i, s := range symptoms {
		out[i] = string(s)
	}
	return out
}
