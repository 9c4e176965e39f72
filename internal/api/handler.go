package api

import (
	"encoding/json"
	"net/http"

	"github.com/oriys/lambda-log-ingestor/internal/correlator"
)

// JobSource 提供关联任务状态，由 correlator.Registry 实现。
type JobSource interface {
	Snapshot() []correlator.Status
	Job(group, stream string) (*correlator.Job, bool)
}

// Handler 是状态请求的处理器。
type Handler struct {
	jobs JobSource
}

// NewHandler 创建处理器。
func NewHandler(jobs JobSource) *Handler {
	return &Handler{jobs: jobs}
}

// Health 返回服务存活状态。
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jobsResponse 是 /jobs 的响应体。
type jobsResponse struct {
	Jobs    []correlator.Status `json:"jobs"`
	Pending int                 `json:"pending"`
}

// ListJobs 返回所有关联任务的状态。
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobs.Snapshot()
	resp := jobsResponse{Jobs: jobs}
	for _, j := range jobs {
		resp.Pending += len(j.Pending)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetJob 返回 query 参数 group、stream 指定的关联任务。
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	group := r.URL.Query().Get("group")
	stream := r.URL.Query().Get("stream")
	if group == "" || stream == "" {
		writeError(w, http.StatusBadRequest, "group and stream are required")
		return
	}
	job, ok := h.jobs.Job(group, stream)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
