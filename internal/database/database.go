package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/cleanbites/backend/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// Timestamps are stored as fixed-width UTC text so that they sort correctly.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB interface defines the methods our database should implement
type DB interface {
	SaveUserDetails(ctx context.Context, details *models.UserDetails) error
	GetUserDetails(ctx context.Context, userID string) (*models.UserDetails, error)
	SaveFoodSubmission(ctx context.Context, sub *models.FoodSubmission) error
	GetFoodSubmission(ctx context.Context, userID string) (*models.FoodSubmission, error)
	SaveAnalysis(ctx context.Context, rec *models.AnalysisRecord) error
	GetAnalysis(ctx context.Context, id string) (*models.AnalysisRecord, error)
	GetRecentAnalyses(ctx context.Context, userID string, limit int) ([]*models.AnalysisRecord, error)
	Ping(ctx context.Context) error
	Close() error
}

// SQLiteDB implements the DB interface
type SQLiteDB struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteDB opens the database at dbPath and applies the schema.
func NewSQLiteDB(dbPath string, logger *slog.Logger) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}

	logger.Debug("Database schema initialized", "path", dbPath)
	return &SQLiteDB{db: db, logger: logger}, nil
}

// connectionPragmas are applied by the driver to every pooled connection.
var connectionPragmas = []string{
	"busy_timeout(5000)",
	"foreign_keys(1)",
	"journal_mode(WAL)",
}

func dsn(dbPath string) string {
	q := url.Values{"_pragma": connectionPragmas}
	return "file:" + dbPath + "?" + q.Encode()
}

func initializeSchema(db *sql.DB) error {
	schemaBytes, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("error reading schema file: %w", err)
	}
	if _, err := db.Exec(string(schemaBytes)); err != nil {
		return fmt.Errorf("error executing schema: %w", err)
	}
	return nil
}

// SaveUserDetails inserts or replaces the profile of details.UserID. The
// original creation time is kept on update.
func (s *SQLiteDB) SaveUserDetails(ctx context.Context, details *models.UserDetails) error {
	query := `
		INSERT INTO user_details (
			user_id, name, age, height, weight, gender, health_issue, allergy, goal,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			name = excluded.name,
			age = excluded.age,
			height = excluded.height,
			weight = excluded.weight,
			gender = excluded.gender,
			health_issue = excluded.health_issue,
			allergy = excluded.allergy,
			goal = excluded.goal,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC()
	if details.CreatedAt.IsZero() {
		details.CreatedAt = now
	}
	details.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, query,
		details.UserID, details.Name, details.Age, details.Height, details.Weight,
		details.Gender, details.HealthIssue, details.Allergy, details.Goal,
		formatTime(details.CreatedAt), formatTime(details.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save user details: %w", err)
	}
	return nil
}

// GetUserDetails returns ErrNotFound when the user has no profile yet.
func (s *SQLiteDB) GetUserDetails(ctx context.Context, userID string) (*models.UserDetails, error) {
	query := `
		SELECT user_id, name, age, height, weight, gender, health_issue, allergy, goal,
			created_at, updated_at
		FROM user_details WHERE user_id = ?
	`

	d := &models.UserDetails{}
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&d.UserID, &d.Name, &d.Age, &d.Height, &d.Weight,
		&d.Gender, &d.HealthIssue, &d.Allergy, &d.Goal,
		&createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user details: %w", err)
	}
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)
	return d, nil
}

// SaveFoodSubmission replaces the user's current submission.
func (s *SQLiteDB) SaveFoodSubmission(ctx context.Context, sub *models.FoodSubmission) error {
	query := `
		INSERT OR REPLACE INTO food_submissions (
			user_id, product_name, ingredients, nutrition_info, info_image, image_type, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	sub.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, query,
		sub.UserID, sub.ProductName, sub.Ingredients, sub.NutritionInfo,
		sub.InfoImage, sub.ImageType, formatTime(sub.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save food submission: %w", err)
	}
	return nil
}

func (s *SQLiteDB) GetFoodSubmission(ctx context.Context, userID string) (*models.FoodSubmission, error) {
	query := `
		SELECT user_id, product_name, ingredients, nutrition_info, info_image, image_type, updated_at
		FROM food_submissions WHERE user_id = ?
	`

	sub := &models.FoodSubmission{}
	var updatedAt string
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&sub.UserID, &sub.ProductName, &sub.Ingredients, &sub.NutritionInfo,
		&sub.InfoImage, &sub.ImageType, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get food submission: %w", err)
	}
	sub.UpdatedAt = parseTime(updatedAt)
	return sub, nil
}

// SaveAnalysis stores a model response. A missing ID or creation time is
// filled in.
func (s *SQLiteDB) SaveAnalysis(ctx context.Context, rec *models.AnalysisRecord) error {
	query := `
		INSERT INTO analyses (id, user_id, product_name, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.ProductName, string(rec.Payload), formatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	return nil
}

func (s *SQLiteDB) GetAnalysis(ctx context.Context, id string) (*models.AnalysisRecord, error) {
	query := `
		SELECT id, user_id, product_name, payload, created_at
		FROM analyses WHERE id = ?
	`

	rec, err := scanAnalysis(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	return rec, nil
}

// GetRecentAnalyses returns up to limit analyses of userID, newest first.
func (s *SQLiteDB) GetRecentAnalyses(ctx context.Context, userID string, limit int) ([]*models.AnalysisRecord, error) {
	query := `
		SELECT id, user_id, product_name, payload, created_at
		FROM analyses
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	results := []*models.AnalysisRecord{}
	for rows.Next() {
		rec, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	return results, nil
}

func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*models.AnalysisRecord, error) {
	rec := &models.AnalysisRecord{}
	var payload, createdAt string
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.ProductName, &payload, &createdAt); err != nil {
		return nil, err
	}
	rec.Payload = []byte(payload)
	rec.CreatedAt = parseTime(createdAt)
	return rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
