package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound reports a missing row. Callers translate it to a 404.
var ErrNotFound = errors.New("not found")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) (User, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash)
		VALUES ($1, $2, LOWER($3), $4)
		RETURNING id, display_name, email, password_hash, created_at, updated_at
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash).Scan(
		&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, created_at, updated_at
		FROM users
		WHERE email = LOWER($1)
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user by email: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, created_at, updated_at
		FROM users
		WHERE id = $1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

// UpsertAuthoringSession creates the session record on first save and updates
// its progress fields on every save after that.
func (s *PostgresStore) UpsertAuthoringSession(ctx context.Context, session AuthoringSession) (AuthoringSession, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO authoring_sessions (id, owner_id, content_type, strategy, phase, angle_title)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
			SET phase = EXCLUDED.phase,
			    angle_title = EXCLUDED.angle_title,
			    updated_at = NOW()
		RETURNING id, owner_id, content_type, strategy, phase, angle_title, created_at, updated_at
	`, session.ID, session.OwnerID, session.ContentType, session.Strategy, session.Phase, session.AngleTitle).Scan(
		&session.ID, &session.OwnerID, &session.ContentType, &session.Strategy,
		&session.Phase, &session.AngleTitle, &session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		return AuthoringSession{}, fmt.Errorf("upsert authoring session: %w", err)
	}
	return session, nil
}

func (s *PostgresStore) GetAuthoringSession(ctx context.Context, sessionID string) (AuthoringSession, error) {
	var session AuthoringSession
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, content_type, strategy, phase, angle_title, created_at, updated_at
		FROM authoring_sessions
		WHERE id = $1
	`, sessionID).Scan(
		&session.ID, &session.OwnerID, &session.ContentType, &session.Strategy,
		&session.Phase, &session.AngleTitle, &session.CreatedAt, &session.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return AuthoringSession{}, ErrNotFound
	}
	if err != nil {
		return AuthoringSession{}, fmt.Errorf("get authoring session: %w", err)
	}
	return session, nil
}

// InsertContentRecord appends a new version for its session. The version is
// the next per-session number and the display order slots the record at the
// end of the owner's saved list; both are assigned inside one transaction so
// concurrent saves cannot collide.
func (s *PostgresStore) InsertContentRecord(ctx context.Context, record ContentRecord) (ContentRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ContentRecord{}, fmt.Errorf("begin insert content tx: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0) + 1 FROM content_records WHERE session_id = $1
	`, record.SessionID).Scan(&record.Version); err != nil {
		return ContentRecord{}, fmt.Errorf("next content version: %w", err)
	}
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(display_order), 0) + 1 FROM content_records WHERE owner_id = $1
	`, record.OwnerID).Scan(&record.DisplayOrder); err != nil {
		return ContentRecord{}, fmt.Errorf("next display order: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO content_records
			(id, session_id, owner_id, content_type, title, body, outline_json,
			 outline_edited, draft_edited, version, display_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`,
		record.ID, record.SessionID, record.OwnerID, record.ContentType,
		record.Title, record.Body, record.OutlineJSON,
		record.OutlineEdited, record.DraftEdited, record.Version, record.DisplayOrder,
	).Scan(&record.CreatedAt)
	if err != nil {
		return ContentRecord{}, fmt.Errorf("insert content record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ContentRecord{}, fmt.Errorf("commit insert content tx: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) GetContentRecord(ctx context.Context, recordID string) (ContentRecord, error) {
	var record ContentRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, owner_id, content_type, title, body, outline_json,
		       outline_edited, draft_edited, version, display_order, created_at
		FROM content_records
		WHERE id = $1
	`, recordID).Scan(
		&record.ID, &record.SessionID, &record.OwnerID, &record.ContentType,
		&record.Title, &record.Body, &record.OutlineJSON,
		&record.OutlineEdited, &record.DraftEdited, &record.Version, &record.DisplayOrder, &record.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ContentRecord{}, ErrNotFound
	}
	if err != nil {
		return ContentRecord{}, fmt.Errorf("get content record: %w", err)
	}
	return record, nil
}

// ListContentByOwner returns the owner's saved list in display order.
func (s *PostgresStore) ListContentByOwner(ctx context.Context, ownerID string) ([]ContentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, owner_id, content_type, title, body, outline_json,
		       outline_edited, draft_edited, version, display_order, created_at
		FROM content_records
		WHERE owner_id = $1
		ORDER BY display_order ASC, created_at ASC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	defer rows.Close()

	items := make([]ContentRecord, 0)
	for rows.Next() {
		var record ContentRecord
		if err := rows.Scan(
			&record.ID, &record.SessionID, &record.OwnerID, &record.ContentType,
			&record.Title, &record.Body, &record.OutlineJSON,
			&record.OutlineEdited, &record.DraftEdited, &record.Version, &record.DisplayOrder, &record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan content record: %w", err)
		}
		items = append(items, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate content records: %w", err)
	}
	return items, nil
}

// ListSessionVersions returns every saved version for one session, newest
// first.
func (s *PostgresStore) ListSessionVersions(ctx context.Context, sessionID string) ([]ContentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, owner_id, content_type, title, body, outline_json,
		       outline_edited, draft_edited, version, display_order, created_at
		FROM content_records
		WHERE session_id = $1
		ORDER BY version DESC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session versions: %w", err)
	}
	defer rows.Close()

	items := make([]ContentRecord, 0)
	for rows.Next() {
		var record ContentRecord
		if err := rows.Scan(
			&record.ID, &record.SessionID, &record.OwnerID, &record.ContentType,
			&record.Title, &record.Body, &record.OutlineJSON,
			&record.OutlineEdited, &record.DraftEdited, &record.Version, &record.DisplayOrder, &record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan content record: %w", err)
		}
		items = append(items, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session versions: %w", err)
	}
	return items, nil
}

// DeleteContentRecord removes one saved version. The owner scope keeps a
// guessed id from touching another author's content.
func (s *PostgresStore) DeleteContentRecord(ctx context.Context, ownerID, recordID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM content_records WHERE id = $1 AND owner_id = $2
	`, recordID, ownerID)
	if err != nil {
		return fmt.Errorf("delete content record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete content record: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateSavedOrder is the confirmation write of the saved-list reorder: it
// rewrites display_order for the owner's records from the full ordered id
// list, in one transaction. The list must cover exactly the owner's records;
// a mismatch rejects the write so a stale client cannot clobber the list.
func (s *PostgresStore) UpdateSavedOrder(ctx context.Context, ownerID string, orderedIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reorder tx: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM content_records WHERE owner_id = $1
	`, ownerID).Scan(&count); err != nil {
		return fmt.Errorf("count content records: %w", err)
	}
	if count != len(orderedIDs) {
		return fmt.Errorf("reorder list has %d ids, owner has %d records", len(orderedIDs), count)
	}

	for i, id := range orderedIDs {
		result, err := tx.ExecContext(ctx, `
			UPDATE content_records SET display_order = $3
			WHERE id = $1 AND owner_id = $2
		`, id, ownerID, i+1)
		if err != nil {
			return fmt.Errorf("update display order: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("update display order: %w", err)
		}
		if affected != 1 {
			return fmt.Errorf("record %s is not owned by %s", id, ownerID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reorder tx: %w", err)
	}
	return nil
}
