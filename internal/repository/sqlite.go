package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/JEECE-SI/the-glitch-kitchen/internal/errors"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/models"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Repository provides data access methods
type Repository struct {
	db *sql.DB
}

// New opens the SQLite database at dbPath and applies pending migrations.
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// SQLite works best with a single connection; it also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// quietGoose drops goose's progress output.
type quietGoose struct{}

func (quietGoose) Printf(string, ...interface{}) {}
func (quietGoose) Fatalf(format string, v ...interface{}) {
	panic(fmt.Sprintf(format, v...))
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(quietGoose{})

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// DB returns the underlying database connection (for transactions)
func (r *Repository) DB() *sql.DB {
	return r.db
}

// Close closes the database connection
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if stderrors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// ==================== Game Methods ====================

const gameColumns = `id, name, status, settings, timer_snapshot, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*models.GameInstance, error) {
	var g models.GameInstance
	var settings, snapshot string
	if err := row.Scan(&g.ID, &g.Name, &g.Status, &settings, &snapshot, &g.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(settings), &g.Settings); err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "decode game settings")
	}
	if err := json.Unmarshal([]byte(snapshot), &g.Timer); err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "decode timer snapshot")
	}
	return &g, nil
}

// CreateGame inserts a new game instance
func (r *Repository) CreateGame(ctx context.Context, g *models.GameInstance) error {
	settings, err := json.Marshal(g.Settings)
	if err != nil {
		return err
	}
	snapshot, err := json.Marshal(g.Timer)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO game_instances (id, name, status, settings, timer_snapshot, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, g.ID, g.Name, g.Status, string(settings), string(snapshot), g.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetGame retrieves a game instance by ID
func (r *Repository) GetGame(ctx context.Context, id string) (*models.GameInstance, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM game_instances WHERE id = ?`, id)
	g, err := scanGame(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return g, err
}

// ListGames returns every game, newest first
func (r *Repository) ListGames(ctx context.Context) ([]models.GameInstance, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+gameColumns+` FROM game_instances ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	games := []models.GameInstance{}
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, *g)
	}
	return games, rows.Err()
}

// UpdateGameSettings replaces the phase durations of a game
func (r *Repository) UpdateGameSettings(ctx context.Context, id string, settings models.GameSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE game_instances SET settings = ? WHERE id = ?`, string(data), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SaveTimerState writes the status and timer snapshot of a game in one statement
func (r *Repository) SaveTimerState(ctx context.Context, id, status string, snap models.TimerSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE game_instances SET status = ?, timer_snapshot = ? WHERE id = ?
	`, status, string(data), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ==================== Team Methods ====================

const teamColumns = `id, game_id, name, join_code, created_at`

// CreateTeam inserts a team
func (r *Repository) CreateTeam(ctx context.Context, t *models.Team) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO teams (id, game_id, name, join_code, created_at) VALUES (?, ?, ?, ?, ?)
	`, t.ID, t.GameID, t.Name, t.JoinCode, t.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetTeam retrieves a team by ID
func (r *Repository) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	var t models.Team
	err := r.db.QueryRowContext(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = ?`, id).
		Scan(&t.ID, &t.GameID, &t.Name, &t.JoinCode, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTeamByJoinCode retrieves a team by its join code
func (r *Repository) GetTeamByJoinCode(ctx context.Context, code string) (*models.Team, error) {
	var t models.Team
	err := r.db.QueryRowContext(ctx, `SELECT `+teamColumns+` FROM teams WHERE join_code = ?`, code).
		Scan(&t.ID, &t.GameID, &t.Name, &t.JoinCode, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTeams returns the teams of a game in creation order
func (r *Repository) ListTeams(ctx context.Context, gameID string) ([]models.Team, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+teamColumns+` FROM teams WHERE game_id = ? ORDER BY created_at, name`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := []models.Team{}
	for rows.Next() {
		var t models.Team
		if err := rows.Scan(&t.ID, &t.GameID, &t.Name, &t.JoinCode, &t.CreatedAt); err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// ==================== Recipe Methods ====================

// GetReference returns the reference recipe ordered by step
func (r *Repository) GetReference(ctx context.Context) ([]models.RecipeStep, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT step_index, ingredient, technique, tool FROM recipe_reference ORDER BY step_index
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	steps := []models.RecipeStep{}
	for rows.Next() {
		var s models.RecipeStep
		if err := rows.Scan(&s.StepIndex, &s.Ingredient, &s.Technique, &s.Tool); err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

// ReplaceReference swaps the whole reference recipe in one transaction
func (r *Repository) ReplaceReference(ctx context.Context, steps []models.RecipeStep) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM recipe_reference`); err != nil {
		return err
	}
	for _, s := range steps {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO recipe_reference (step_index, ingredient, technique, tool) VALUES (?, ?, ?, ?)
		`, s.StepIndex, s.Ingredient, s.Technique, s.Tool); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return err
		}
	}
	return tx.Commit()
}

// ==================== Attempt Methods ====================

// CountAttempts returns how many attempts a team has recorded
func (r *Repository) CountAttempts(ctx context.Context, teamID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recipe_test_attempts WHERE team_id = ?`, teamID).Scan(&n)
	return n, err
}

// CreateAttempt stores an attempt. A second attempt with the same number
// for the same team returns ErrDuplicate.
func (r *Repository) CreateAttempt(ctx context.Context, a *models.RecipeTestAttempt) (int64, error) {
	details, err := json.Marshal(a.Details)
	if err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO recipe_test_attempts (team_id, attempt_number, global_score, details, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, a.TeamID, a.AttemptNumber, a.GlobalScore, string(details), a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	return res.LastInsertId()
}

// ListAttempts returns a team's attempts in order
func (r *Repository) ListAttempts(ctx context.Context, teamID string) ([]models.RecipeTestAttempt, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, team_id, attempt_number, global_score, details, created_at
		FROM recipe_test_attempts WHERE team_id = ? ORDER BY attempt_number
	`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := []models.RecipeTestAttempt{}
	for rows.Next() {
		var a models.RecipeTestAttempt
		var details string
		if err := rows.Scan(&a.ID, &a.TeamID, &a.AttemptNumber, &a.GlobalScore, &details, &a.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(details), &a.Details); err != nil {
			return nil, errors.Wrap(err, errors.ErrInternal, "decode attempt details")
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// DeleteAttempts clears every attempt of a team and returns how many were removed
func (r *Repository) DeleteAttempts(ctx context.Context, teamID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recipe_test_attempts WHERE team_id = ?`, teamID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ==================== Log Methods ====================

// AppendLog adds an audit entry
func (r *Repository) AppendLog(ctx context.Context, l *models.GameLog) error {
	var teamID any
	if l.TeamID != "" {
		teamID = l.TeamID
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO game_logs (game_id, team_id, event_type, message, created_at) VALUES (?, ?, ?, ?, ?)
	`, l.GameID, teamID, l.EventType, l.Message, l.CreatedAt)
	if err != nil {
		return err
	}
	l.ID, _ = res.LastInsertId()
	return nil
}

// ListLogs returns the most recent entries of a game, newest first
func (r *Repository) ListLogs(ctx context.Context, gameID string, limit int) ([]models.GameLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, game_id, team_id, event_type, message, created_at
		FROM game_logs WHERE game_id = ? ORDER BY created_at DESC, id DESC LIMIT ?
	`, gameID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []models.GameLog{}
	for rows.Next() {
		var l models.GameLog
		var teamID sql.NullString
		if err := rows.Scan(&l.ID, &l.GameID, &teamID, &l.EventType, &l.Message, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.TeamID = teamID.String
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
