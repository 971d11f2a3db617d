package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/distribute"
	"server/internal/domain"
	"server/internal/progress"
	"server/internal/tryon"
)

type submitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type progressResponse struct {
	State      string `json:"state"`
	StageIndex int    `json:"stage_index"`
	StageLabel string `json:"stage_label"`
	ElapsedMS  int64  `json:"elapsed_ms"`
}

type resultResponse struct {
	JobID           string `json:"job_id"`
	PrimaryImage    string `json:"primary_image"`
	ComparisonImage string `json:"comparison_image,omitempty"`
	LowQuality      bool   `json:"low_quality"`
}

func (a *App) TryOnGenerate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.fail(w, domain.ErrUnauthenticated)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.Config.MaxUploadBytes)
	if err := r.ParseMultipartForm(a.Config.MaxUploadBytes); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart payload")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	garment, err := formUpload(r, "garment")
	if err != nil {
		a.fail(w, domain.ErrMissingInput)
		return
	}
	person, err := formUpload(r, "person")
	if err != nil {
		a.fail(w, domain.ErrMissingInput)
		return
	}

	jobID, err := a.TryOn.Submit(r.Context(), userID, garment, person)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusAccepted, submitResponse{JobID: jobID, Status: string(domain.JobStatusPending)})
}

func formUpload(r *http.Request, field string) (tryon.Upload, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return tryon.Upload{}, err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return tryon.Upload{}, err
	}
	return tryon.Upload{
		Filename: header.Filename,
		MIME:     contentTypeOf(header),
		Data:     data,
	}, nil
}

func contentTypeOf(header *multipart.FileHeader) string {
	if header == nil {
		return ""
	}
	return header.Header.Get("Content-Type")
}

func (a *App) TryOnStatus(w http.ResponseWriter, r *http.Request) {
	job, err := a.TryOn.Job(chi.URLParam(r, "job_id"), a.currentUserID(r))
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"job_id":     job.ID,
		"status":     string(job.Status),
		"started_at": job.StartedAt,
	})
}

func (a *App) TryOnProgress(w http.ResponseWriter, r *http.Request) {
	snap, err := a.TryOn.Progress(chi.URLParam(r, "job_id"), a.currentUserID(r))
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, progressJSON(snap))
}

func progressJSON(snap progress.Snapshot) progressResponse {
	state := "idle"
	if snap.State == progress.Running {
		state = "running"
	}
	return progressResponse{
		State:      state,
		StageIndex: snap.StageIndex,
		StageLabel: snap.StageLabel,
		ElapsedMS:  snap.Elapsed.Milliseconds(),
	}
}

// TryOnProgressStream pushes simulator snapshots over SSE until the job
// reaches a terminal state or the client goes away. The simulator is
// poll-based, so the stream samples it on a short ticker rather than holding
// a subscription.
func (a *App) TryOnProgressStream(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	jobID := chi.URLParam(r, "job_id")
	if _, err := a.TryOn.Job(jobID, userID); err != nil {
		a.fail(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		a.error(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		snap, err := a.TryOn.Progress(jobID, userID)
		if err != nil {
			return
		}
		writeSSE(w, progressJSON(snap))
		flusher.Flush()

		job, err := a.TryOn.Job(jobID, userID)
		if err != nil {
			return
		}
		if job.Status.Terminal() {
			writeSSE(w, map[string]string{"status": string(job.Status)})
			flusher.Flush()
			return
		}
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func writeSSE(w io.Writer, v any) {
	payload, _ := json.Marshal(v)
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

func (a *App) TryOnResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	result, err := a.TryOn.Result(jobID, a.currentUserID(r))
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, resultResponse{
		JobID:           jobID,
		PrimaryImage:    result.PrimaryImage,
		ComparisonImage: result.ComparisonImage,
		LowQuality:      result.LowQuality,
	})
}

func (a *App) TryOnDownload(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	result, err := a.TryOn.Result(jobID, a.currentUserID(r))
	if err != nil {
		a.fail(w, err)
		return
	}
	att, err := distribute.Download(*result, "tryon-"+jobID)
	if err != nil {
		a.fail(w, err)
		return
	}
	serveAttachment(w, att)
}

func (a *App) TryOnDownloadZip(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	result, err := a.TryOn.Result(jobID, a.currentUserID(r))
	if err != nil {
		a.fail(w, err)
		return
	}
	att, err := distribute.ArchiveResult(*result, "tryon-"+jobID)
	if err != nil {
		a.fail(w, err)
		return
	}
	serveAttachment(w, att)
}

func serveAttachment(w http.ResponseWriter, att distribute.Attachment) {
	w.Header().Set("Content-Type", att.MIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(att.Data)
}

// TryOnShare hands the result to the share chain. A user cancel is a normal
// outcome, not an error; when every target is unavailable the client is told
// to fall back to manual download.
func (a *App) TryOnShare(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	result, err := a.TryOn.Result(jobID, a.currentUserID(r))
	if err != nil {
		a.fail(w, err)
		return
	}
	att, err := distribute.Download(*result, "tryon-"+jobID)
	if err != nil {
		a.fail(w, err)
		return
	}

	target, err := a.Share.Share(r.Context(), att)
	outcome := "shared"
	switch {
	case errors.Is(err, distribute.ErrShareCanceled):
		outcome = "canceled"
	case errors.Is(err, distribute.ErrShareUnavailable):
		outcome = "unavailable"
	case err != nil:
		a.observeShare(target, "failed")
		a.Logger.Warn().Err(err).Str("job_id", jobID).Msg("handlers: share failed")
		a.error(w, http.StatusBadGateway, "share_failed", "share target rejected the image")
		return
	}
	a.observeShare(target, outcome)

	resp := map[string]string{"outcome": outcome, "target": target}
	if outcome == "shared" && a.Links != nil && target == a.Links.Name() {
		resp["url"] = a.Links.Link(att)
	}
	a.json(w, http.StatusOK, resp)
}

func (a *App) observeShare(target, outcome string) {
	if a.Metrics == nil {
		return
	}
	if target == "" {
		target = "none"
	}
	a.Metrics.ShareOutcomes.WithLabelValues(target, outcome).Inc()
}

func (a *App) TryOnAbandon(w http.ResponseWriter, r *http.Request) {
	if err := a.TryOn.Abandon(chi.URLParam(r, "job_id"), a.currentUserID(r)); err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "abandoned"})
}
