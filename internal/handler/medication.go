package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/calladine/migralog/internal/model"
	"github.com/calladine/migralog/internal/reminder"
	"github.com/calladine/migralog/internal/store"
	"github.com/calladine/migralog/internal/websocket"
)

type MedicationHandler struct {
	medications *store.MedicationStore
	doses       *store.DoseStore
	schedules   *store.ScheduleStore
	notifier    reminder.Notifier
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewMedicationHandler(ms *store.MedicationStore, ds *store.DoseStore, ss *store.ScheduleStore, notifier reminder.Notifier, hub *websocket.Hub, logger *slog.Logger) *MedicationHandler {
	return &MedicationHandler{medications: ms, doses: ds, schedules: ss, notifier: notifier, hub: hub, logger: logger}
}

type medicationRequest struct {
	Name       string  `json:"name"`
	Dosage     float64 `json:"dosage"`
	Unit       string  `json:"unit"`
	Preventive bool    `json:"preventive"`
}

func (req *medicationRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return "name is required"
	}
	if req.Dosage < 0 {
		return "dosage must not be negative"
	}
	return ""
}

func (h *MedicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req medicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	med, err := h.medications.Create(req.Name, req.Dosage, req.Unit, req.Preventive)
	if err != nil {
		h.logger.Error("create medication", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create medication")
		return
	}

	h.hub.Notify("medication", "created", med.ID)
	writeJSON(w, http.StatusCreated, med)
}

func (h *MedicationHandler) List(w http.ResponseWriter, r *http.Request) {
	includeArchived, _ := strconv.ParseBool(r.URL.Query().Get("include_archived"))

	meds, err := h.medications.List(includeArchived)
	if err != nil {
		h.logger.Error("list medications", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list medications")
		return
	}
	if meds == nil {
		meds = []model.Medication{}
	}
	writeJSON(w, http.StatusOK, meds)
}

func (h *MedicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	med, err := h.medications.GetByID(id)
	if err != nil {
		h.logger.Error("get medication", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get medication")
		return
	}
	if med == nil {
		writeError(w, http.StatusNotFound, "medication not found")
		return
	}
	writeJSON(w, http.StatusOK, med)
}

func (h *MedicationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req medicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	existing, err := h.medications.GetByID(id)
	if err != nil {
		h.logger.Error("get medication", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get medication")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "medication not found")
		return
	}

	med, err := h.medications.Update(id, req.Name, req.Dosage, req.Unit, req.Preventive)
	if err != nil {
		h.logger.Error("update medication", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update medication")
		return
	}

	h.hub.Notify("medication", "updated", id)
	writeJSON(w, http.StatusOK, med)
}

// Archive hides a medication from the active list without losing its dose
// history. A body of {"archived": false} restores it.
func (h *MedicationHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	req := struct {
		Archived bool `json:"archived"`
	}{Archived: true}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	existing, err := h.medications.GetByID(id)
	if err != nil {
		h.logger.Error("get medication", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get medication")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "medication not found")
		return
	}

	med, err := h.medications.Archive(id, req.Archived)
	if err != nil {
		h.logger.Error("archive medication", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to archive medication")
		return
	}

	h.hub.Notify("medication", "updated", id)
	writeJSON(w, http.StatusOK, med)
}

func (h *MedicationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.medications.Delete(id); err != nil {
		h.logger.Error("delete medication", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete medication")
		return
	}

	h.hub.Notify("medication", "deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

type doseRequest struct {
	EpisodeID *int64     `json:"episode_id"`
	Amount    float64    `json:"amount"`
	TakenAt   *time.Time `json:"taken_at"`
}

// LogDose records an intake. The reminder scheduler is told so relative
// delay reminders restart from this dose.
func (h *MedicationHandler) LogDose(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req doseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	med, err := h.medications.GetByID(id)
	if err != nil {
		h.logger.Error("get medication", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get medication")
		return
	}
	if med == nil {
		writeError(w, http.StatusNotFound, "medication not found")
		return
	}

	amount := req.Amount
	if amount == 0 {
		amount = med.Dosage
	}
	takenAt := time.Now().UTC()
	if req.TakenAt != nil {
		takenAt = *req.TakenAt
	}

	dose, err := h.doses.Create(id, req.EpisodeID, amount, takenAt)
	if err != nil {
		h.logger.Error("log dose", "medication", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to log dose")
		return
	}

	if h.notifier != nil {
		h.notifier.DoseLogged(id)
	}
	h.hub.Notify("dose", "created", dose.ID)
	writeJSON(w, http.StatusCreated, dose)
}

func (h *MedicationHandler) ListDoses(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	doses, err := h.doses.ListByMedication(id)
	if err != nil {
		h.logger.Error("list doses", "medication", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list doses")
		return
	}
	if doses == nil {
		doses = []model.MedicationDose{}
	}
	writeJSON(w, http.StatusOK, doses)
}

// RecentDoses returns the latest doses across every medication.
func (h *MedicationHandler) RecentDoses(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	doses, err := h.doses.ListRecent(limit)
	if err != nil {
		h.logger.Error("list recent doses", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list doses")
		return
	}
	if doses == nil {
		doses = []model.MedicationDose{}
	}
	writeJSON(w, http.StatusOK, doses)
}

func (h *MedicationHandler) DeleteDose(w http.ResponseWriter, r *http.Request) {
	doseID, ok := pathID(r, "dose_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid dose_id")
		return
	}

	if err := h.doses.Delete(doseID); err != nil {
		h.logger.Error("delete dose", "id", doseID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete dose")
		return
	}

	h.hub.Notify("dose", "deleted", doseID)
	w.WriteHeader(http.StatusNoContent)
}

type scheduleRequest struct {
	Trigger model.Trigger `json:"trigger"`
	Enabled *bool         `json:"enabled"`
}

func (h *MedicationHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := req.Trigger.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	med, err := h.medications.GetByID(id)
	if err != nil {
		h.logger.Error("get medication", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get medication")
		return
	}
	if med == nil {
		writeError(w, http.StatusNotFound, "medication not found")
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	schedule, err := h.schedules.Create(id, req.Trigger, enabled)
	if err != nil {
		h.logger.Error("create schedule", "medication", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create schedule")
		return
	}

	h.hub.Notify("schedule", "created", schedule.ID)
	writeJSON(w, http.StatusCreated, schedule)
}

func (h *MedicationHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	schedules, err := h.schedules.ListByMedication(id)
	if err != nil {
		h.logger.Error("list schedules", "medication", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list schedules")
		return
	}
	if schedules == nil {
		schedules = []model.MedicationSchedule{}
	}
	writeJSON(w, http.StatusOK, schedules)
}

func (h *MedicationHandler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	scheduleID, ok := pathID(r, "schedule_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid schedule_id")
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := req.Trigger.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := h.schedules.GetByID(scheduleID)
	if err != nil {
		h.logger.Error("get schedule", "id", scheduleID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get schedule")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}

	enabled := existing.Enabled
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	schedule, err := h.schedules.Update(scheduleID, req.Trigger, enabled)
	if err != nil {
		h.logger.Error("update schedule", "id", scheduleID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update schedule")
		return
	}

	h.hub.Notify("schedule", "updated", scheduleID)
	writeJSON(w, http.StatusOK, schedule)
}

func (h *MedicationHandler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	scheduleID, ok := pathID(r, "schedule_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid schedule_id")
		return
	}

	if err := h.schedules.Delete(scheduleID); err != nil {
		h.logger.Error("delete schedule", "id", scheduleID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete schedule")
		return
	}

	h.hub.Notify("schedule", "deleted", scheduleID)
	w.WriteHeader(http.StatusNoContent)
}
