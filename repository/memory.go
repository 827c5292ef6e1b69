// file: repository/memory.go

package repository

import (
	"context"
	"database/sql"
	"errors"
	"go-websecurity-api/model"
	"sort"
	"sync"
	"time"
)

// In-memory implementations of the repository contracts, used by the
// "memory" storage driver and by tests. Not found is reported as
// sql.ErrNoRows so callers treat both drivers identically.

func cloneToken(t *model.RefreshToken) *model.RefreshToken {
	c := *t
	if t.RevokedAt != nil {
		at := *t.RevokedAt
		c.RevokedAt = &at
	}
	if t.ReplacedBy != nil {
		id := *t.ReplacedBy
		c.ReplacedBy = &id
	}
	return &c
}

// MemoryTokenRepository keeps refresh token records in process memory.
// A transaction holds the repository lock for its whole duration and its
// writes become visible only on commit.
type MemoryTokenRepository struct {
	mu     sync.Mutex
	tokens map[int]*model.RefreshToken
	byHash map[string]int
	nextID int
}

func NewMemoryTokenRepository() *MemoryTokenRepository {
	return &MemoryTokenRepository{
		tokens: make(map[int]*model.RefreshToken),
		byHash: make(map[string]int),
		nextID: 1,
	}
}

func (r *MemoryTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byHash[tokenHash]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return cloneToken(r.tokens[id]), nil
}

func (r *MemoryTokenRepository) ListByUserID(ctx context.Context, userID int) ([]*model.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.RefreshToken
	for _, t := range r.tokens {
		if t.UserID == userID {
			out = append(out, cloneToken(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *MemoryTokenRepository) WithinTx(ctx context.Context, fn func(tx TokenTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTokenTx{repo: r, staged: make(map[int]*model.RefreshToken), nextID: r.nextID}
	if err := fn(tx); err != nil {
		return err
	}

	for id, t := range tx.staged {
		r.tokens[id] = t
		r.byHash[t.TokenHash] = id
	}
	r.nextID = tx.nextID
	return nil
}

type memTokenTx struct {
	repo   *MemoryTokenRepository
	staged map[int]*model.RefreshToken
	nextID int
}

func (tx *memTokenTx) get(id int) (*model.RefreshToken, bool) {
	if t, ok := tx.staged[id]; ok {
		return t, true
	}
	t, ok := tx.repo.tokens[id]
	return t, ok
}

func (tx *memTokenTx) idByHash(hash string) (int, bool) {
	for id, t := range tx.staged {
		if t.TokenHash == hash {
			return id, true
		}
	}
	id, ok := tx.repo.byHash[hash]
	return id, ok
}

func (tx *memTokenTx) Create(token *model.RefreshToken) error {
	if _, exists := tx.idByHash(token.TokenHash); exists {
		return ErrDuplicateTokenHash
	}
	token.ID = tx.nextID
	tx.nextID++
	tx.staged[token.ID] = cloneToken(token)
	return nil
}

func (tx *memTokenTx) GetByTokenHashForUpdate(tokenHash string) (*model.RefreshToken, error) {
	id, ok := tx.idByHash(tokenHash)
	if !ok {
		return nil, sql.ErrNoRows
	}
	t, _ := tx.get(id)
	return cloneToken(t), nil
}

func (tx *memTokenTx) Update(token *model.RefreshToken) error {
	current, ok := tx.get(token.ID)
	if !ok {
		return sql.ErrNoRows
	}
	incoming := cloneToken(token)
	updated := cloneToken(current)
	updated.RevokedAt, updated.ReplacedBy = incoming.RevokedAt, incoming.ReplacedBy
	tx.staged[token.ID] = updated
	return nil
}

func (tx *memTokenTx) RevokeAllActiveForUser(userID int, at time.Time) (int64, error) {
	ids := make(map[int]struct{})
	for id := range tx.repo.tokens {
		ids[id] = struct{}{}
	}
	for id := range tx.staged {
		ids[id] = struct{}{}
	}

	var n int64
	for id := range ids {
		t, _ := tx.get(id)
		if t.UserID != userID || t.RevokedAt != nil {
			continue
		}
		updated := cloneToken(t)
		revokedAt := at
		updated.RevokedAt = &revokedAt
		tx.staged[id] = updated
		n++
	}
	return n, nil
}

// MemoryUserRepository keeps users in process memory.
type MemoryUserRepository struct {
	mu     sync.RWMutex
	users  map[int]*model.User
	nextID int
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[int]*model.User), nextID: 1}
}

func (r *MemoryUserRepository) CreateUser(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == user.Username || (user.Email != "" && u.Email == user.Email) {
			return ErrDuplicateUser
		}
	}
	user.ID = r.nextID
	r.nextID++
	user.CreatedAt = time.Now().UTC()
	c := *user
	r.users[user.ID] = &c
	return nil
}

func (r *MemoryUserRepository) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Username == username {
			c := *u
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *MemoryUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := r.FindUserByUsername(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (r *MemoryUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// MemoryNoteRepository keeps notes in process memory.
type MemoryNoteRepository struct {
	mu     sync.RWMutex
	notes  map[int]*model.Note
	nextID int
}

func NewMemoryNoteRepository() *MemoryNoteRepository {
	return &MemoryNoteRepository{notes: make(map[int]*model.Note), nextID: 1}
}

func (r *MemoryNoteRepository) CreateNote(ctx context.Context, note *model.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	note.ID = r.nextID
	r.nextID++
	note.CreatedAt, note.UpdatedAt = now, now
	c := *note
	r.notes[note.ID] = &c
	return nil
}

func (r *MemoryNoteRepository) GetNotesByUserID(ctx context.Context, userID int) ([]*model.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	notes := []*model.Note{}
	for _, n := range r.notes {
		if n.UserID == userID {
			c := *n
			notes = append(notes, &c)
		}
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].ID < notes[j].ID })
	return notes, nil
}

func (r *MemoryNoteRepository) GetNoteForUser(ctx context.Context, noteID, userID int) (*model.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.notes[noteID]
	if !ok || n.UserID != userID {
		return nil, sql.ErrNoRows
	}
	c := *n
	return &c, nil
}

func (r *MemoryNoteRepository) UpdateNote(ctx context.Context, note *model.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notes[note.ID]
	if !ok || n.UserID != note.UserID {
		return sql.ErrNoRows
	}
	n.Title, n.Content, n.UpdatedAt = note.Title, note.Content, time.Now().UTC()
	note.CreatedAt, note.UpdatedAt = n.CreatedAt, n.UpdatedAt
	return nil
}

func (r *MemoryNoteRepository) DeleteNoteForUser(ctx context.Context, noteID, userID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notes[noteID]
	if !ok || n.UserID != userID {
		return false, nil
	}
	delete(r.notes, noteID)
	return true, nil
}

func (r *MemoryNoteRepository) CountByTitleForUser(ctx context.Context, userID int, title string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, n := range r.notes {
		if n.UserID == userID && n.Title == title {
			count++
		}
	}
	return count, nil
}
