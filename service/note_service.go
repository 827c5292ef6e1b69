// file: service/note_service.go

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"go-websecurity-api/logger"
	"go-websecurity-api/model"
	"go-websecurity-api/repository"
	"time"

	"github.com/sirupsen/logrus"
)

var ErrNoteNotFound = errors.New("note not found")

// NoteService provides owner-scoped note CRUD with a cache-aside list.
type NoteService struct {
	repo     repository.INoteRepository
	cache    ICacheClient
	cacheTTL time.Duration
}

func NewNoteService(repo repository.INoteRepository, cache ICacheClient, cacheTTL time.Duration) *NoteService {
	return &NoteService{repo: repo, cache: cache, cacheTTL: cacheTTL}
}

func notesCacheKey(userID int) string {
	return fmt.Sprintf("notes:%d", userID)
}

func (s *NoteService) invalidate(ctx context.Context, userID int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, notesCacheKey(userID)).Err(); err != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Warn("Failed to invalidate notes cache")
	}
}

// ListNotes returns the user's notes, reading through the cache.
func (s *NoteService) ListNotes(ctx context.Context, userID int) ([]*model.Note, error) {
	cacheKey := notesCacheKey(userID)
	log := logger.Log.WithField("user_id", userID)

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey).Result()
		if err == nil {
			var notes []*model.Note
			if err := json.Unmarshal([]byte(cached), &notes); err == nil {
				log.Debug("Notes served from cache")
				return notes, nil
			}
		}
	}

	notes, err := s.repo.GetNotesByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(notes); err == nil {
			if err := s.cache.Set(ctx, cacheKey, data, s.cacheTTL).Err(); err != nil {
				log.WithError(err).Warn("Failed to populate notes cache")
			}
		}
	}
	return notes, nil
}

func (s *NoteService) GetNote(ctx context.Context, userID, noteID int) (*model.Note, error) {
	note, err := s.repo.GetNoteForUser(ctx, noteID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoteNotFound
	}
	return note, err
}

func (s *NoteService) CreateNote(ctx context.Context, userID int, req model.NoteRequest) (*model.Note, error) {
	note := &model.Note{UserID: userID, Title: req.Title, Content: req.Content}
	if err := s.repo.CreateNote(ctx, note); err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)
	return note, nil
}

func (s *NoteService) UpdateNote(ctx context.Context, userID, noteID int, req model.NoteRequest) (*model.Note, error) {
	note := &model.Note{ID: noteID, UserID: userID, Title: req.Title, Content: req.Content}
	err := s.repo.UpdateNote(ctx, note)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoteNotFound
	}
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)
	return note, nil
}

func (s *NoteService) DeleteNote(ctx context.Context, userID, noteID int) error {
	deleted, err := s.repo.DeleteNoteForUser(ctx, noteID, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNoteNotFound
	}
	logger.Log.WithFields(logrus.Fields{"user_id": userID, "note_id": noteID}).Info("Note deleted")
	s.invalidate(ctx, userID)
	return nil
}

func (s *NoteService) CountByTitle(ctx context.Context, userID int, title string) (int64, error) {
	return s.repo.CountByTitleForUser(ctx, userID, title)
}
