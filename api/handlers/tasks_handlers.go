package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"aegis-grc/core/store"
	"aegis-grc/core/utils"
	"aegis-grc/core/workflow"
)

type TasksHandler struct {
	workflow *workflow.Service
	logger   *utils.Logger
}

func NewTasksHandler(svc *workflow.Service, logger *utils.Logger) *TasksHandler {
	return &TasksHandler{workflow: svc, logger: logger}
}

func (h *TasksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var task store.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	created, err := h.workflow.CreateTask(r.Context(), &task, ActorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *TasksHandler) Get(w http.ResponseWriter, r *http.Request) {
	taskID := urlParam(r, "taskId")
	riskID := strings.TrimSpace(r.URL.Query().Get("riskId"))
	task, err := h.workflow.GetTask(r.Context(), riskID, taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TasksHandler) List(w http.ResponseWriter, r *http.Request) {
	riskID := strings.TrimSpace(r.URL.Query().Get("riskId"))
	items, err := h.workflow.ListTasks(r.Context(), riskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Complete advances the task state machine for the acting role. The
// optional riskId query parameter disambiguates task ids that repeat
// across risks.
func (h *TasksHandler) Complete(w http.ResponseWriter, r *http.Request) {
	taskID := urlParam(r, "taskId")
	riskID := strings.TrimSpace(r.URL.Query().Get("riskId"))
	task, err := h.workflow.CompleteTask(r.Context(), riskID, taskID, ActorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TasksHandler) Update(w http.ResponseWriter, r *http.Request) {
	taskID := urlParam(r, "taskId")
	riskID := strings.TrimSpace(r.URL.Query().Get("riskId"))
	var patch store.TaskPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	task, err := h.workflow.UpdateTask(r.Context(), riskID, taskID, patch, ActorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TasksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	taskID := urlParam(r, "taskId")
	riskID := strings.TrimSpace(r.URL.Query().Get("riskId"))
	if err := h.workflow.DeleteTask(r.Context(), riskID, taskID, ActorFrom(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
