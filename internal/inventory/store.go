// Package inventory is the publishing collaborator: it accepts verified
// records, assigns listing identifiers and visibility, and keeps them in
// SQLite for recipients to browse.
package inventory

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/franckalain/foodrescue/internal/models"
	"github.com/franckalain/foodrescue/internal/verification"
)

//go:embed schema.sql
var schemaFS embed.FS

var (
	ErrNotFound         = errors.New("listing not found")
	ErrAlreadyPublished = errors.New("record already published")
	ErrTampered         = errors.New("record fingerprint does not match its content")
	ErrInvalidStatus    = errors.New("invalid listing status")
)

// Store defines the methods our inventory should implement
type Store interface {
	Publish(ctx context.Context, rec models.VerificationRecord) (models.Listing, error)
	Get(ctx context.Context, id string) (models.Listing, error)
	Recent(ctx context.Context, limit int) ([]models.Listing, error)
	UpdateStatus(ctx context.Context, id, status string) error
	ImpactTotals(ctx context.Context) (models.ImpactTotals, error)
	Close() error
}

// SQLiteStore implements the Store interface
type SQLiteStore struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

// NewSQLiteStore opens the database at dbPath and initializes the schema
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Enable foreign keys and WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error enabling foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error enabling WAL mode: %w", err)
	}

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}

	return newStore(db), nil
}

func newStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{
		db:    db,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

func initializeSchema(db *sql.DB) error {
	schemaBytes, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("error reading schema file: %w", err)
	}

	if _, err := db.Exec(string(schemaBytes)); err != nil {
		return fmt.Errorf("error executing schema: %w", err)
	}

	slog.Debug("inventory schema initialized")
	return nil
}

// Publish stores a verified record as a new available listing
func (s *SQLiteStore) Publish(ctx context.Context, rec models.VerificationRecord) (models.Listing, error) {
	if !verification.Verify(rec) {
		return models.Listing{}, ErrTampered
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return models.Listing{}, fmt.Errorf("error encoding record: %w", err)
	}

	listing := models.Listing{
		ID:          s.newID(),
		Status:      models.ListingAvailable,
		PublishedAt: s.now().UTC(),
		Record:      rec,
	}

	query := `
		INSERT INTO listings (
			id, status, food_name, detected_category, quality_percentage,
			is_safe, is_halal, halal_score, total_points, co2_saved,
			water_saved, land_saved, waste_reduction, level, fingerprint,
			record_json, published_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		listing.ID, listing.Status, rec.Submission.FoodName, string(rec.DetectedCategory), rec.QualityPercentage,
		rec.IsSafe, rec.IsHalal, rec.HalalScore, rec.Impact.TotalPoints, rec.Impact.CO2Saved,
		rec.Impact.WaterSaved, rec.Impact.LandSaved, rec.Impact.WasteReduction, string(rec.Impact.Level), rec.Fingerprint,
		string(body), listing.PublishedAt.Format(timeLayout),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: listings.fingerprint") {
			return models.Listing{}, ErrAlreadyPublished
		}
		return models.Listing{}, fmt.Errorf("error saving listing: %w", err)
	}
	return listing, nil
}

const listingColumns = `id, status, record_json, published_at`

// fixed width so that text ordering matches time ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Get retrieves one listing
func (s *SQLiteStore) Get(ctx context.Context, id string) (models.Listing, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = ?`, id)
	listing, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Listing{}, ErrNotFound
	}
	return listing, err
}

// Recent retrieves the most recently published listings
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]models.Listing, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT ` + listingColumns + `
		FROM listings
		ORDER BY published_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying listings: %w", err)
	}
	defer rows.Close()

	results := []models.Listing{}
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading listings: %w", err)
	}
	return results, nil
}

// UpdateStatus changes the visibility of a listing
func (s *SQLiteStore) UpdateStatus(ctx context.Context, id, status string) error {
	switch status {
	case models.ListingAvailable, models.ListingClaimed, models.ListingWithdrawn:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	res, err := s.db.ExecContext(ctx, `UPDATE listings SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("error updating listing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error updating listing: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ImpactTotals sums the impact of every listing that was not withdrawn
func (s *SQLiteStore) ImpactTotals(ctx context.Context) (models.ImpactTotals, error) {
	query := `
		SELECT COUNT(*),
			COALESCE(SUM(total_points), 0),
			COALESCE(SUM(co2_saved), 0),
			COALESCE(SUM(water_saved), 0),
			COALESCE(SUM(land_saved), 0),
			COALESCE(SUM(waste_reduction), 0)
		FROM listings
		WHERE status != ?
	`
	var t models.ImpactTotals
	err := s.db.QueryRowContext(ctx, query, models.ListingWithdrawn).Scan(
		&t.Listings, &t.TotalPoints, &t.CO2Saved, &t.WaterSaved, &t.LandSaved, &t.WasteReduction,
	)
	if err != nil {
		return models.ImpactTotals{}, fmt.Errorf("error summing impact: %w", err)
	}
	t.CO2Saved = round1(t.CO2Saved)
	t.LandSaved = round1(t.LandSaved)
	return t, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanListing(row scanner) (models.Listing, error) {
	var (
		l           models.Listing
		body        string
		publishedAt string
	)
	if err := row.Scan(&l.ID, &l.Status, &body, &publishedAt); err != nil {
		return models.Listing{}, err
	}
	if err := json.Unmarshal([]byte(body), &l.Record); err != nil {
		return models.Listing{}, fmt.Errorf("error decoding listing %s: %w", l.ID, err)
	}
	t, err := time.Parse(timeLayout, publishedAt)
	if err != nil {
		return models.Listing{}, fmt.Errorf("error parsing publish time of %s: %w", l.ID, err)
	}
	l.PublishedAt = t
	return l, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
