package repository

import (
	"context"
	"database/sql"
	"go-websecurity-api/logger"
	"go-websecurity-api/model"

	"github.com/sirupsen/logrus"
)

// INoteRepository defines the contract for note database operations. Every
// lookup is scoped by owner so one user can never address another's notes.
type INoteRepository interface {
	CreateNote(ctx context.Context, note *model.Note) error
	GetNotesByUserID(ctx context.Context, userID int) ([]*model.Note, error)
	GetNoteForUser(ctx context.Context, noteID, userID int) (*model.Note, error)
	UpdateNote(ctx context.Context, note *model.Note) error
	DeleteNoteForUser(ctx context.Context, noteID, userID int) (bool, error)
	CountByTitleForUser(ctx context.Context, userID int, title string) (int64, error)
}

type NoteRepository struct {
	DB *sql.DB
}

func NewNoteRepository(db *sql.DB) *NoteRepository {
	return &NoteRepository{DB: db}
}

// CreateNote adds a new note to the database.
func (r *NoteRepository) CreateNote(ctx context.Context, note *model.Note) error {
	log := logger.Log.WithFields(logrus.Fields{
		"user_id": note.UserID,
	})
	log.Info("Executing query to create a new note")

	query := `INSERT INTO notes (user_id, title, content) VALUES ($1, $2, $3) RETURNING id, created_at, updated_at`
	err := r.DB.QueryRowContext(ctx, query, note.UserID, note.Title, note.Content).Scan(&note.ID, &note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		log.WithError(err).Error("Failed to execute create note query")
		return err
	}
	return nil
}

// GetNotesByUserID retrieves all notes for a specific user.
func (r *NoteRepository) GetNotesByUserID(ctx context.Context, userID int) ([]*model.Note, error) {
	log := logger.Log.WithField("user_id", userID)
	log.Info("Executing query to get notes by user ID")

	query := `SELECT id, user_id, title, content, created_at, updated_at FROM notes WHERE user_id = $1 ORDER BY id`
	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		log.WithError(err).Error("Failed to execute query for notes by user ID")
		return nil, err
	}
	defer rows.Close()

	notes := []*model.Note{}
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.CreatedAt, &n.UpdatedAt); err != nil {
			log.WithError(err).Error("Failed to scan note row")
			return nil, err
		}
		notes = append(notes, &n)
	}
	return notes, rows.Err()
}

// GetNoteForUser returns sql.ErrNoRows both for missing notes and for notes
// owned by someone else.
func (r *NoteRepository) GetNoteForUser(ctx context.Context, noteID, userID int) (*model.Note, error) {
	log := logger.Log.WithFields(logrus.Fields{
		"note_id": noteID,
		"user_id": userID,
	})

	n := &model.Note{}
	query := `SELECT id, user_id, title, content, created_at, updated_at FROM notes WHERE id = $1 AND user_id = $2`
	err := r.DB.QueryRowContext(ctx, query, noteID, userID).Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			log.WithError(err).Error("Failed to execute get note query")
		}
		return nil, err
	}
	return n, nil
}

func (r *NoteRepository) UpdateNote(ctx context.Context, note *model.Note) error {
	log := logger.Log.WithFields(logrus.Fields{
		"note_id": note.ID,
		"user_id": note.UserID,
	})
	log.Info("Executing query to update note")

	query := `UPDATE notes SET title = $1, content = $2, updated_at = NOW() WHERE id = $3 AND user_id = $4 RETURNING created_at, updated_at`
	err := r.DB.QueryRowContext(ctx, query, note.Title, note.Content, note.ID, note.UserID).Scan(&note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			log.WithError(err).Error("Failed to execute update note query")
		}
		return err
	}
	return nil
}

func (r *NoteRepository) DeleteNoteForUser(ctx context.Context, noteID, userID int) (bool, error) {
	log := logger.Log.WithFields(logrus.Fields{
		"note_id": noteID,
		"user_id": userID,
	})
	log.Info("Executing query to delete note")

	res, err := r.DB.ExecContext(ctx, `DELETE FROM notes WHERE id = $1 AND user_id = $2`, noteID, userID)
	if err != nil {
		log.WithError(err).Error("Failed to execute delete note query")
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CountByTitleForUser counts a user's notes with an exact title. The title
// is always bound as a parameter, never spliced into the SQL text.
func (r *NoteRepository) CountByTitleForUser(ctx context.Context, userID int, title string) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM notes WHERE user_id = $1 AND title = $2`
	err := r.DB.QueryRowContext(ctx, query, userID, title).Scan(&count)
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Error("Failed to execute count notes query")
		return 0, err
	}
	return count, nil
}
