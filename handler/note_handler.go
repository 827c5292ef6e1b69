package handler

import (
	"errors"
	"go-websecurity-api/common"
	"go-websecurity-api/logger"
	"go-websecurity-api/model"
	"go-websecurity-api/service"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"
)

type NoteHandler struct {
	service *service.NoteService
}

func NewNoteHandler(service *service.NoteService) *NoteHandler {
	return &NoteHandler{service: service}
}

func currentUserID(r *http.Request) (int, *common.AppError) {
	id, ok := model.IdentityFromContext(r.Context())
	if !ok {
		return 0, common.NewAppError(http.StatusUnauthorized, "Authentication required", nil)
	}
	return id.UserID, nil
}

func noteIDFromPath(r *http.Request) (int, *common.AppError) {
	noteID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || noteID <= 0 {
		return 0, common.NewAppError(http.StatusBadRequest, "Invalid note ID", nil)
	}
	return noteID, nil
}

func noteError(err error) *common.AppError {
	if errors.Is(err, service.ErrNoteNotFound) {
		return common.NewAppError(http.StatusNotFound, "Note not found", nil)
	}
	return common.InternalError(err)
}

// ListNotes godoc
// @Summary      List the caller's notes
// @Tags         notes
// @Produce      json
// @Success      200  {array}   model.Note
// @Failure      401  {object}  common.AppError
// @Security     BearerAuth
// @Router       /api/notes [get]
func (h *NoteHandler) ListNotes(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, appErr := currentUserID(r)
	if appErr != nil {
		return appErr
	}

	notes, err := h.service.ListNotes(r.Context(), userID)
	if err != nil {
		return common.InternalError(err)
	}
	writeJSON(w, http.StatusOK, notes)
	return nil
}

// GetNote godoc
// @Summary      Get one note
// @Tags         notes
// @Produce      json
// @Param        id   path      int  true  "Note ID"
// @Success      200  {object}  model.Note
// @Failure      404  {object}  common.AppError
// @Security     BearerAuth
// @Router       /api/notes/{id} [get]
func (h *NoteHandler) GetNote(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, appErr := currentUserID(r)
	if appErr != nil {
		return appErr
	}
	noteID, appErr := noteIDFromPath(r)
	if appErr != nil {
		return appErr
	}

	note, err := h.service.GetNote(r.Context(), userID, noteID)
	if err != nil {
		return noteError(err)
	}
	writeJSON(w, http.StatusOK, note)
	return nil
}

// CreateNote godoc
// @Summary      Create a note
// @Tags         notes
// @Accept       json
// @Produce      json
// @Param        request  body      model.NoteRequest  true  "Note"
// @Success      201      {object}  model.Note
// @Failure      400      {object}  common.AppError
// @Security     BearerAuth
// @Router       /api/notes [post]
func (h *NoteHandler) CreateNote(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, appErr := currentUserID(r)
	if appErr != nil {
		return appErr
	}
	var req model.NoteRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	note, err := h.service.CreateNote(r.Context(), userID, req)
	if err != nil {
		return common.InternalError(err)
	}
	logger.Log.WithFields(logrus.Fields{"user_id": userID, "note_id": note.ID}).Info("Note created")
	writeJSON(w, http.StatusCreated, note)
	return nil
}

// UpdateNote godoc
// @Summary      Update a note
// @Tags         notes
// @Accept       json
// @Produce      json
// @Param        id       path      int                true  "Note ID"
// @Param        request  body      model.NoteRequest  true  "Note"
// @Success      200      {object}  model.Note
// @Failure      404      {object}  common.AppError
// @Security     BearerAuth
// @Router       /api/notes/{id} [put]
func (h *NoteHandler) UpdateNote(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, appErr := currentUserID(r)
	if appErr != nil {
		return appErr
	}
	noteID, appErr := noteIDFromPath(r)
	if appErr != nil {
		return appErr
	}
	var req model.NoteRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	note, err := h.service.UpdateNote(r.Context(), userID, noteID, req)
	if err != nil {
		return noteError(err)
	}
	writeJSON(w, http.StatusOK, note)
	return nil
}

// DeleteNote godoc
// @Summary      Delete a note
// @Tags         notes
// @Param        id   path  int  true  "Note ID"
// @Success      204
// @Failure      404  {object}  common.AppError
// @Security     BearerAuth
// @Router       /api/notes/{id} [delete]
func (h *NoteHandler) DeleteNote(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, appErr := currentUserID(r)
	if appErr != nil {
		return appErr
	}
	noteID, appErr := noteIDFromPath(r)
	if appErr != nil {
		return appErr
	}

	if err := h.service.DeleteNote(r.Context(), userID, noteID); err != nil {
		return noteError(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// CountNotes godoc
// @Summary      Count the caller's notes with an exact title
// @Tags         notes
// @Produce      json
// @Param        title  query     string  true  "Title"
// @Success      200    {object}  map[string]int64
// @Security     BearerAuth
// @Router       /api/notes/_count [get]
func (h *NoteHandler) CountNotes(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, appErr := currentUserID(r)
	if appErr != nil {
		return appErr
	}
	title := r.URL.Query().Get("title")
	if title == "" {
		return common.NewAppError(http.StatusBadRequest, "Query parameter 'title' is required", nil)
	}

	count, err := h.service.CountByTitle(r.Context(), userID, title)
	if err != nil {
		return common.InternalError(err)
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": count})
	return nil
}
