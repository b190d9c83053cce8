package api

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/docuflow/docuflow/internal/logger"
	"github.com/docuflow/docuflow/internal/pipeline"
	"github.com/docuflow/docuflow/internal/status"
)

// StatusResponse is the wire format of GET /status/{jobID}.
type StatusResponse struct {
	JobID                     string    `json:"job_id"`
	Status                    string    `json:"status"`
	Progress                  float64   `json:"progress"`
	ProgressPercent           int       `json:"progress_percent"`
	Message                   string    `json:"message"`
	Completed                 bool      `json:"completed"`
	Failed                    bool      `json:"failed"`
	Error                     *string   `json:"error"`
	ElapsedTime               float64   `json:"elapsed_time"`
	UpdatedAt                 time.Time `json:"updated_at"`
	EstimatedRemainingSeconds *float64  `json:"estimated_remaining_seconds"`
}

// HistoryEntry is one element of the GET /history/{jobID} response.
type HistoryEntry struct {
	Stage              string            `json:"stage"`
	Progress           float64           `json:"progress"`
	Message            string            `json:"message"`
	Timestamp          time.Time         `json:"timestamp"`
	TimestampFormatted string            `json:"timestamp_formatted"`
	Error              string            `json:"error,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// HistoryResponse is the wire format of GET /history/{jobID}.
type HistoryResponse struct {
	JobID   string         `json:"job_id"`
	History []HistoryEntry `json:"history"`
	Count   int            `json:"count"`
}

// UploadResponse is the wire format of POST /documents.
type UploadResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	log := logger.WithCorrelationID(getCorrelationID(r.Context()))

	snap, err := s.tracker.GetStatus(jobID)
	if err != nil {
		if errors.Is(err, status.ErrJobNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Job not found"})
			return
		}
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to read job status")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal error"})
		return
	}

	resp := StatusResponse{
		JobID:                     snap.JobID,
		Status:                    string(snap.Status),
		Progress:                  snap.Progress,
		ProgressPercent:           int(math.Round(snap.Progress * 100)),
		Message:                   snap.Message,
		Completed:                 snap.Completed,
		Failed:                    snap.Failed,
		ElapsedTime:               snap.ElapsedSeconds,
		UpdatedAt:                 snap.UpdatedAt,
		EstimatedRemainingSeconds: snap.EstimatedRemainingSeconds,
	}
	if snap.Error != "" {
		resp.Error = &snap.Error
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	history, err := s.tracker.GetHistory(jobID, limit)
	if err != nil {
		if errors.Is(err, status.ErrJobNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Job not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal error"})
		return
	}

	entries := make([]HistoryEntry, 0, len(history))
	for _, u := range history {
		entries = append(entries, HistoryEntry{
			Stage:              u.Stage,
			Progress:           u.Progress,
			Message:            u.Message,
			Timestamp:          u.Timestamp,
			TimestampFormatted: u.Timestamp.Format(time.RFC3339),
			Error:              u.Error,
			Metadata:           u.Metadata,
		})
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		JobID:   jobID,
		History: entries,
		Count:   len(entries),
	})
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	doc, ok := s.results.Get(jobID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Document not found"})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := logger.WithCorrelationID(getCorrelationID(r.Context()))

	if err := r.ParseMultipartForm(pipeline.MaxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid multipart request"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing file field"})
		return
	}
	defer file.Close()

	jobID := uuid.New().String()
	if _, err := s.tracker.CreateJob(jobID, 0); err != nil {
		log.Error().Err(err).Msg("Failed to create job")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create job"})
		return
	}

	dstPath := filepath.Join(s.uploadDir, jobID+filepath.Ext(header.Filename))
	if err := s.saveUpload(jobID, file, dstPath, header.Filename); err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("Upload rejected")
		if _, failErr := s.tracker.Fail(jobID, err.Error(), "validation failed"); failErr != nil {
			log.Error().Err(failErr).Str("job_id", jobID).Msg("Failed to record upload failure")
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	job := &pipeline.Job{ID: jobID, SourcePath: dstPath, SourceName: header.Filename}
	if err := s.pool.Enqueue(job); err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to enqueue job")
		if _, failErr := s.tracker.Fail(jobID, err.Error(), "could not queue conversion"); failErr != nil {
			log.Error().Err(failErr).Str("job_id", jobID).Msg("Failed to record enqueue failure")
		}
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Service busy, try again later"})
		return
	}

	log.Info().Str("job_id", jobID).Str("file", header.Filename).Msg("Document accepted")
	writeJSON(w, http.StatusAccepted, UploadResponse{JobID: jobID, Status: string(status.StatusPending)})
}

// saveUpload streams the upload to disk, reporting through the uploading
// stage, and validates the stored file.
func (s *Server) saveUpload(jobID string, src io.Reader, dstPath, name string) error {
	if _, err := s.tracker.Update(jobID, "uploading", 0, "Receiving "+name, nil); err != nil {
		return err
	}

	dst, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}

	if err := pipeline.ValidateSource(dstPath); err != nil {
		return err
	}

	_, err = s.tracker.Update(jobID, "uploading", 1, "Upload complete", nil)
	return err
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to encode response")
	}
}
