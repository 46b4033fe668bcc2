package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dasmlab/polyglot/pkg/batch"
	apperrors "github.com/dasmlab/polyglot/pkg/errors"
	"github.com/dasmlab/polyglot/pkg/service"
)

// readBatchUpload parses a multipart upload with a CSV "file" and the
// column, source_lang and target_lang form fields.
func readBatchUpload(r *http.Request) (service.BatchRequest, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return service.BatchRequest{}, fmt.Errorf("invalid upload: %w", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return service.BatchRequest{}, errors.New("field required: file")
	}
	defer file.Close()

	column := r.FormValue("column")
	if column == "" {
		return service.BatchRequest{}, errors.New("field required: column")
	}

	table, err := batch.ReadCSV(file)
	if err != nil {
		return service.BatchRequest{}, err
	}

	return service.BatchRequest{
		FileName:   header.Filename,
		Column:     column,
		SourceLang: r.FormValue("source_lang"),
		TargetLang: r.FormValue("target_lang"),
		Table:      table,
	}, nil
}

func (s *HTTPServer) handleBatchUpload(w http.ResponseWriter, r *http.Request) {
	req, err := readBatchUpload(r)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	jobID, err := s.deps.Jobs.CreateJob(req)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *HTTPServer) handleJobList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": s.deps.Jobs.Jobs()})
}

func (s *HTTPServer) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.deps.Jobs.GetJob(r.PathValue("id"))
	if err != nil {
		writeDetail(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *HTTPServer) handleJobResult(w http.ResponseWriter, r *http.Request) {
	table, err := s.deps.Jobs.Result(r.PathValue("id"))
	switch {
	case apperrors.Is(err, apperrors.ErrJobNotFound):
		writeDetail(w, http.StatusNotFound, err.Error())
		return
	case apperrors.Is(err, apperrors.ErrJobNotReady):
		writeDetail(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="translations.csv"`)
	if err := batch.WriteCSV(w, table); err != nil {
		s.logger.WithError(err).Error("Failed to write result CSV")
	}
}

// handleJobEvents streams job progress as Server-Sent Events until the job
// finishes or the client disconnects.
func (s *HTTPServer) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	job, err := s.deps.Jobs.GetJob(r.PathValue("id"))
	if err != nil {
		writeDetail(w, http.StatusNotFound, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	last := job.Snapshot()
	s.sendSSEEvent(w, "status", last)
	if last.Status.Finished() {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			snap := job.Snapshot()
			if snap.Status == last.Status && snap.RowsDone == last.RowsDone {
				continue
			}
			s.sendSSEEvent(w, "status", snap)
			last = snap
			if snap.Status.Finished() {
				return
			}
		}
	}
}

// sendSSEEvent writes one event: <type>\ndata: <json>\n\n frame.
func (s *HTTPServer) sendSSEEvent(w http.ResponseWriter, eventType string, snap service.JobSnapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		s.logger.WithError(err).Error("Failed to marshal SSE event")
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", data)

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	s.logger.WithFields(logrus.Fields{
		"job_id":   snap.ID,
		"status":   snap.Status,
		"progress": snap.ProgressPercent,
	}).Debug("Sent job event")
}
