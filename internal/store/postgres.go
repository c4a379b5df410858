package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

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

const userColumns = `id, name, email, password_hash, COALESCE(google_id, ''), COALESCE(profile_picture, ''), role, auth_provider, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.GoogleID,
		&user.ProfilePicture,
		&user.Role,
		&user.AuthProvider,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return user, err
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) (User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, google_id, profile_picture, role, auth_provider)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8)
		RETURNING `+userColumns,
		user.ID, user.Name, user.Email, user.PasswordHash, user.GoogleID, user.ProfilePicture, user.Role, user.AuthProvider,
	)
	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrDuplicate
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return user, err
}

func (s *PostgresStore) GetUserByGoogleID(ctx context.Context, googleID string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE google_id=$1`, googleID))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return User{}, fmt.Errorf("get user by google id: %w", err)
	}
	return user, err
}

// LinkGoogleAccount attaches a Google identity to an existing account and
// switches it to Google sign-in.
func (s *PostgresStore) LinkGoogleAccount(ctx context.Context, email, googleID, profilePicture string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `
		UPDATE users
		SET google_id=$2, profile_picture=COALESCE(NULLIF($3, ''), profile_picture), auth_provider='google', updated_at=NOW()
		WHERE email=$1
		RETURNING `+userColumns, email, googleID, profilePicture))
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrDuplicate
		}
		if !errors.Is(err, ErrNotFound) {
			return User{}, fmt.Errorf("link google account: %w", err)
		}
	}
	return user, err
}

func (s *PostgresStore) UpdateUserProfile(ctx context.Context, email, name, profilePicture string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `
		UPDATE users SET name=$2, profile_picture=NULLIF($3, ''), updated_at=NOW()
		WHERE email=$1
		RETURNING `+userColumns, email, name, profilePicture))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return User{}, fmt.Errorf("update user profile: %w", err)
	}
	return user, err
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, email, passwordHash string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash=$2, auth_provider='local', updated_at=NOW()
		WHERE email=$1
	`, email, passwordHash)
	if err != nil {
		return fmt.Errorf("update user password: %w", err)
	}
	return requireRow(result)
}

const resumeColumns = `id, title, description, owner, selected_template, global_styles, resume_data, COALESCE(github_repo, ''), COALESCE(vercel_url, ''), created_at, updated_at`

func scanResume(row interface{ Scan(...any) error }) (Resume, error) {
	var (
		item         Resume
		globalStyles []byte
		resumeData   []byte
		githubRepo   string
		vercelURL    string
	)
	err := row.Scan(
		&item.ID,
		&item.Title,
		&item.Description,
		&item.Owner,
		&item.SelectedTemplate,
		&globalStyles,
		&resumeData,
		&githubRepo,
		&vercelURL,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Resume{}, ErrNotFound
	}
	if err != nil {
		return Resume{}, err
	}
	item.GlobalStyles = globalStyles
	item.ResumeData = resumeData
	if githubRepo != "" || vercelURL != "" {
		item.Deployment = &Deployment{GitHubRepo: githubRepo, VercelURL: vercelURL}
	}
	item.Shared = []Collaborator{}
	return item, nil
}

func (s *PostgresStore) CreateResume(ctx context.Context, item Resume) (Resume, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.SelectedTemplate == "" {
		item.SelectedTemplate = "iitkg"
	}
	created, err := scanResume(s.db.QueryRowContext(ctx, `
		INSERT INTO resumes (id, title, description, owner, selected_template, global_styles, resume_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+resumeColumns,
		item.ID, item.Title, item.Description, item.Owner, item.SelectedTemplate,
		jsonOrEmptyObject(item.GlobalStyles), jsonOrEmptyObject(item.ResumeData),
	))
	if err != nil {
		return Resume{}, fmt.Errorf("insert resume: %w", err)
	}
	return created, nil
}

// GetResume loads a resume with its collaborators. Unknown ids return
// ErrNotFound.
func (s *PostgresStore) GetResume(ctx context.Context, id string) (Resume, error) {
	item, err := scanResume(s.db.QueryRowContext(ctx, `SELECT `+resumeColumns+` FROM resumes WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Resume{}, err
		}
		return Resume{}, fmt.Errorf("get resume: %w", err)
	}
	shared, err := s.listCollaborators(ctx, id)
	if err != nil {
		return Resume{}, err
	}
	item.Shared = shared
	return item, nil
}

func (s *PostgresStore) listCollaborators(ctx context.Context, resumeID string) ([]Collaborator, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT email, name, profile_picture
		FROM resume_collaborators
		WHERE resume_id=$1
		ORDER BY added_at, email
	`, resumeID)
	if err != nil {
		return nil, fmt.Errorf("list collaborators: %w", err)
	}
	defer rows.Close()

	items := make([]Collaborator, 0)
	for rows.Next() {
		var (
			item    Collaborator
			picture sql.NullString
		)
		if err := rows.Scan(&item.Email, &item.Name, &picture); err != nil {
			return nil, fmt.Errorf("scan collaborator: %w", err)
		}
		if picture.Valid {
			item.ProfilePicture = &picture.String
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collaborators: %w", err)
	}
	return items, nil
}

// ListResumesForUser returns summaries of the resumes an identity owns and
// the ones shared with it.
func (s *PostgresStore) ListResumesForUser(ctx context.Context, email string) ([]ResumeSummary, []ResumeSummary, error) {
	owned, err := s.listSummaries(ctx, `
		SELECT id, title, description FROM resumes WHERE owner=$1 ORDER BY created_at
	`, email, "owned")
	if err != nil {
		return nil, nil, err
	}
	shared, err := s.listSummaries(ctx, `
		SELECT r.id, r.title, r.description
		FROM resumes r
		JOIN resume_collaborators rc ON rc.resume_id = r.id
		WHERE rc.email=$1
		ORDER BY r.created_at
	`, email, "shared")
	if err != nil {
		return nil, nil, err
	}
	return owned, shared, nil
}

func (s *PostgresStore) listSummaries(ctx context.Context, query, email, kind string) ([]ResumeSummary, error) {
	rows, err := s.db.QueryContext(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("list %s resumes: %w", kind, err)
	}
	defer rows.Close()

	items := make([]ResumeSummary, 0)
	for rows.Next() {
		item := ResumeSummary{Type: kind}
		if err := rows.Scan(&item.ID, &item.Title, &item.Description); err != nil {
			return nil, fmt.Errorf("scan resume summary: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resume summaries: %w", err)
	}
	return items, nil
}

// ApplyResumePatch replaces the patched fields and returns the stored
// resume. Concurrent patches are last-write-wins per field.
func (s *PostgresStore) ApplyResumePatch(ctx context.Context, id string, patch Patch) (Resume, error) {
	sets, args, err := patch.assignments(2)
	if err != nil {
		return Resume{}, err
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at=NOW()")
		query := `UPDATE resumes SET ` + strings.Join(sets, ", ") + ` WHERE id=$1`
		result, err := s.db.ExecContext(ctx, query, append([]any{id}, args...)...)
		if err != nil {
			return Resume{}, fmt.Errorf("apply resume patch: %w", err)
		}
		if err := requireRow(result); err != nil {
			return Resume{}, err
		}
	}
	return s.GetResume(ctx, id)
}

func (s *PostgresStore) DeleteResume(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM resumes WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete resume: %w", err)
	}
	return requireRow(result)
}

// AddCollaborator shares a resume. It reports false when the identity was
// already a collaborator.
func (s *PostgresStore) AddCollaborator(ctx context.Context, resumeID string, c Collaborator) (bool, error) {
	var picture any
	if c.ProfilePicture != nil {
		picture = *c.ProfilePicture
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO resume_collaborators (resume_id, email, name, profile_picture)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (resume_id, email) DO NOTHING
	`, resumeID, c.Email, c.Name, picture)
	if err != nil {
		return false, fmt.Errorf("add collaborator: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add collaborator: %w", err)
	}
	if affected > 0 {
		_, _ = s.db.ExecContext(ctx, `UPDATE resumes SET updated_at=NOW() WHERE id=$1`, resumeID)
	}
	return affected > 0, nil
}

func (s *PostgresStore) RemoveCollaborator(ctx context.Context, resumeID, email string) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM resume_collaborators WHERE resume_id=$1 AND email=$2
	`, resumeID, email); err != nil {
		return fmt.Errorf("remove collaborator: %w", err)
	}
	return nil
}

// RefreshCollaborators copies current names and pictures from the user
// table onto the resume's collaborator entries.
func (s *PostgresStore) RefreshCollaborators(ctx context.Context, resumeID string) ([]Collaborator, error) {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE resume_collaborators rc
		SET name=u.name, profile_picture=u.profile_picture
		FROM users u
		WHERE rc.resume_id=$1
			AND u.email = rc.email
			AND (rc.name IS DISTINCT FROM u.name OR rc.profile_picture IS DISTINCT FROM u.profile_picture)
	`, resumeID); err != nil {
		return nil, fmt.Errorf("refresh collaborators: %w", err)
	}
	return s.listCollaborators(ctx, resumeID)
}

func (s *PostgresStore) SetDeployment(ctx context.Context, resumeID string, deployment Deployment) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE resumes SET github_repo=NULLIF($2, ''), vercel_url=NULLIF($3, ''), updated_at=NOW()
		WHERE id=$1
	`, resumeID, deployment.GitHubRepo, deployment.VercelURL)
	if err != nil {
		return fmt.Errorf("set deployment: %w", err)
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func jsonOrEmptyObject(raw []byte) string {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return "{}"
	}
	return string(raw)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
