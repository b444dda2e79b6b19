// Package postgres stores records in a PostgreSQL database reached directly
// through lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/mamadbah2/milkmatrix/internal/domain/models"
	"github.com/mamadbah2/milkmatrix/internal/repository"
)

const uniqueViolation = "23505"

// Store implements repository.Store on a *sql.DB.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

var _ repository.Store = (*Store)(nil)

// Open connects to dsn and checks the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// NewStore wraps db.
func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger, now: time.Now}
}

// Close releases the connection pool.
func (s *Store) Close(context.Context) error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// ---- cows ----

const cowColumns = `id, tag_number, name, COALESCE(breed, ''), is_calf,
	COALESCE(date_of_birth::text, ''), COALESCE(notes, '')`

func scanCow(row rowScanner) (models.Cow, error) {
	var c models.Cow
	err := row.Scan(&c.ID, &c.TagNumber, &c.Name, &c.Breed, &c.IsCalf, &c.DateOfBirth, &c.Notes)
	return c, err
}

func (s *Store) GetCow(ctx context.Context, id string) (*models.Cow, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+cowColumns+` FROM cows WHERE id = $1`, id)
	c, err := scanCow(row)
	if err != nil {
		return nil, s.mapErr("get cow", err)
	}
	return &c, nil
}

func (s *Store) GetCowByTag(ctx context.Context, tag string) (*models.Cow, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+cowColumns+` FROM cows WHERE tag_number = $1`, tag)
	c, err := scanCow(row)
	if err != nil {
		return nil, s.mapErr("get cow by tag", err)
	}
	return &c, nil
}

func (s *Store) ListCows(ctx context.Context) ([]models.Cow, error) {
	return s.queryCows(ctx, "list cows", `SELECT `+cowColumns+` FROM cows ORDER BY tag_number`)
}

func (s *Store) SearchCows(ctx context.Context, term string) ([]models.Cow, error) {
	pattern := "%" + escapeLike(term) + "%"
	return s.queryCows(ctx, "search cows",
		`SELECT `+cowColumns+` FROM cows WHERE name ILIKE $1 OR tag_number ILIKE $1 ORDER BY tag_number`, pattern)
}

func (s *Store) queryCows(ctx context.Context, op, query string, args ...any) ([]models.Cow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.mapErr(op, err)
	}
	defer rows.Close()

	out := []models.Cow{}
	for rows.Next() {
		c, err := scanCow(rows)
		if err != nil {
			return nil, s.mapErr(op, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, s.mapErr(op, err)
	}
	return out, nil
}

func (s *Store) InsertCows(ctx context.Context, cows []models.Cow) ([]models.Cow, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, s.mapErr("insert cows", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
		INSERT INTO cows (id, tag_number, name, breed, is_calf, date_of_birth, notes)
		VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3, NULLIF($4, ''), $5, NULLIF($6, '')::date, NULLIF($7, ''))
		RETURNING ` + cowColumns

	out := make([]models.Cow, 0, len(cows))
	for _, c := range cows {
		row := tx.QueryRowContext(ctx, query, c.ID, c.TagNumber, c.Name, c.Breed, c.IsCalf, c.DateOfBirth, c.Notes)
		stored, err := scanCow(row)
		if err != nil {
			return nil, s.mapErr("insert cows", err)
		}
		out = append(out, stored)
	}

	if err := tx.Commit(); err != nil {
		return nil, s.mapErr("insert cows", err)
	}
	return out, nil
}

// ---- milk ----

const milkColumns = `m.id, m.cow_id, m.date::text, m.shift, m.amount, m.quality, m.quality_grade,
	m.fat, m.protein, m.lactose, m.somatic_cell_count, m.bacteria_count, m.notes,
	m.created_at, m.updated_at, c.tag_number, c.name, c.breed`

func scanMilk(row rowScanner) (models.MilkRecord, error) {
	var (
		r                     models.MilkRecord
		fat, protein, lactose sql.NullFloat64
		scc, bacteria         sql.NullInt64
		updated               sql.NullTime
		tag, name, breed      sql.NullString
	)

	err := row.Scan(&r.ID, &r.CowID, &r.Date, &r.Shift, &r.Amount, &r.Quality, &r.QualityGrade,
		&fat, &protein, &lactose, &scc, &bacteria, &r.Notes,
		&r.CreatedAt, &updated, &tag, &name, &breed)
	if err != nil {
		return r, err
	}

	r.Fat = nullFloat(fat)
	r.Protein = nullFloat(protein)
	r.Lactose = nullFloat(lactose)
	r.SomaticCellCount = nullInt(scc)
	r.BacteriaCount = nullInt(bacteria)
	r.UpdatedAt = nullTime(updated)
	if tag.Valid {
		r.Cow = &models.CowSummary{TagNumber: tag.String, Name: name.String, Breed: breed.String}
	}
	return r, nil
}

// withCow wraps a data modifying statement so the written row comes back
// joined with its cow.
func withCow(columns, statement string) string {
	return `WITH m AS (` + statement + ` RETURNING *) SELECT ` + columns + ` FROM m LEFT JOIN cows c ON c.id = m.cow_id`
}

func (s *Store) FindMilkRecord(ctx context.Context, cowID, date string, shift models.Shift) (*models.MilkRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+milkColumns+` FROM milk_production m LEFT JOIN cows c ON c.id = m.cow_id
		WHERE m.cow_id = $1 AND m.date = $2::date AND m.shift = $3 LIMIT 1`,
		cowID, date, string(shift))

	r, err := scanMilk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.mapErr("find milk record", err)
	}
	return &r, nil
}

func (s *Store) GetMilkRecord(ctx context.Context, id string) (*models.MilkRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+milkColumns+` FROM milk_production m LEFT JOIN cows c ON c.id = m.cow_id WHERE m.id = $1`, id)

	r, err := scanMilk(row)
	if err != nil {
		return nil, s.mapErr("get milk record", err)
	}
	return &r, nil
}

func (s *Store) InsertMilkRecord(ctx context.Context, record models.MilkRecord) (*models.MilkRecord, error) {
	query := withCow(milkColumns, `
		INSERT INTO milk_production (cow_id, date, shift, amount, quality, quality_grade,
			fat, protein, lactose, somatic_cell_count, bacteria_count, notes)
		VALUES ($1, $2::date, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`)

	row := s.db.QueryRowContext(ctx, query, milkArgs(record)...)
	r, err := scanMilk(row)
	if err != nil {
		return nil, s.mapErr("insert milk record", err)
	}
	return &r, nil
}

func (s *Store) UpdateMilkRecord(ctx context.Context, id string, record models.MilkRecord) (*models.MilkRecord, error) {
	query := withCow(milkColumns, `
		UPDATE milk_production SET cow_id = $1, date = $2::date, shift = $3, amount = $4, quality = $5,
			quality_grade = $6, fat = $7, protein = $8, lactose = $9, somatic_cell_count = $10,
			bacteria_count = $11, notes = $12, updated_at = $13
		WHERE id = $14`)

	args := append(milkArgs(record), s.now().UTC(), id)
	r, err := scanMilk(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, s.mapErr("update milk record", err)
	}
	return &r, nil
}

func (s *Store) DeleteMilkRecord(ctx context.Context, id string) (*models.MilkRecord, error) {
	query := withCow(milkColumns, `DELETE FROM milk_production WHERE id = $1`)

	r, err := scanMilk(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, s.mapErr("delete milk record", err)
	}
	return &r, nil
}

func (s *Store) ListMilkRecords(ctx context.Context, q repository.MilkQuery) ([]models.MilkRecord, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if q.CowID != "" {
		add("m.cow_id = $%d", q.CowID)
	}
	if !q.CreatedFrom.IsZero() {
		add("m.created_at >= $%d", q.CreatedFrom.UTC())
	}
	if !q.CreatedTo.IsZero() {
		add("m.created_at < $%d", q.CreatedTo.UTC())
	}

	query := `SELECT ` + milkColumns + ` FROM milk_production m LEFT JOIN cows c ON c.id = m.cow_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY m.created_at DESC"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.mapErr("list milk records", err)
	}
	defer rows.Close()

	out := []models.MilkRecord{}
	for rows.Next() {
		r, err := scanMilk(rows)
		if err != nil {
			return nil, s.mapErr("list milk records", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.mapErr("list milk records", err)
	}
	return out, nil
}

func milkArgs(r models.MilkRecord) []any {
	return []any{
		r.CowID, r.Date, string(r.Shift), r.Amount, string(r.Quality), string(r.QualityGrade),
		r.Fat, r.Protein, r.Lactose, r.SomaticCellCount, r.BacteriaCount, r.Notes,
	}
}

// ---- health ----

const healthColumns = `m.id, m.cow_id, m.event_type, m.event_date::text, m.status, m.description,
	m.medications, m.performed_by, m.notes, m.created_at, m.updated_at, c.tag_number, c.name`

func scanHealth(row rowScanner) (models.HealthRecord, error) {
	var (
		r         models.HealthRecord
		meds      []byte
		updated   sql.NullTime
		tag, name sql.NullString
	)

	err := row.Scan(&r.ID, &r.CowID, &r.EventType, &r.EventDate, &r.Status, &r.Description,
		&meds, &r.PerformedBy, &r.Notes, &r.CreatedAt, &updated, &tag, &name)
	if err != nil {
		return r, err
	}

	r.Medications = []models.Medication{}
	if len(meds) > 0 {
		if err := json.Unmarshal(meds, &r.Medications); err != nil {
			return r, fmt.Errorf("decode medications: %w", err)
		}
	}
	r.UpdatedAt = nullTime(updated)
	if tag.Valid {
		r.Cow = &models.CowSummary{TagNumber: tag.String, Name: name.String}
	}
	return r, nil
}

func healthArgs(r models.HealthRecord) ([]any, error) {
	meds := r.Medications
	if meds == nil {
		meds = []models.Medication{}
	}
	raw, err := json.Marshal(meds)
	if err != nil {
		return nil, fmt.Errorf("encode medications: %w", err)
	}
	return []any{
		r.CowID, string(r.EventType), r.EventDate, string(r.Status), r.Description,
		string(raw), r.PerformedBy, r.Notes,
	}, nil
}

func (s *Store) InsertHealthRecord(ctx context.Context, record models.HealthRecord) (*models.HealthRecord, error) {
	args, err := healthArgs(record)
	if err != nil {
		return nil, err
	}

	query := withCow(healthColumns, `
		INSERT INTO health_events (cow_id, event_type, event_date, status, description,
			medications, performed_by, notes)
		VALUES ($1, $2, $3::date, $4, $5, $6::jsonb, $7, $8)`)

	r, err := scanHealth(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, s.mapErr("insert health record", err)
	}
	return &r, nil
}

func (s *Store) UpdateHealthRecord(ctx context.Context, id string, record models.HealthRecord) (*models.HealthRecord, error) {
	args, err := healthArgs(record)
	if err != nil {
		return nil, err
	}

	query := withCow(healthColumns, `
		UPDATE health_events SET cow_id = $1, event_type = $2, event_date = $3::date, status = $4,
			description = $5, medications = $6::jsonb, performed_by = $7, notes = $8, updated_at = $9
		WHERE id = $10`)

	args = append(args, s.now().UTC(), id)
	r, err := scanHealth(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, s.mapErr("update health record", err)
	}
	return &r, nil
}

func (s *Store) DeleteHealthRecord(ctx context.Context, id string) (*models.HealthRecord, error) {
	query := withCow(healthColumns, `DELETE FROM health_events WHERE id = $1`)

	r, err := scanHealth(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, s.mapErr("delete health record", err)
	}
	return &r, nil
}

func (s *Store) ListHealthRecords(ctx context.Context, q repository.HealthQuery) ([]models.HealthRecord, error) {
	var where []string
	var args []any

	if q.CowID != "" {
		args = append(args, q.CowID)
		where = append(where, fmt.Sprintf("m.cow_id = $%d", len(args)))
	}
	if len(q.Statuses) > 0 {
		statuses := make([]string, 0, len(q.Statuses))
		for _, st := range q.Statuses {
			statuses = append(statuses, string(st))
		}
		args = append(args, pq.Array(statuses))
		where = append(where, fmt.Sprintf("m.status = ANY($%d)", len(args)))
	}

	query := `SELECT ` + healthColumns + ` FROM health_events m LEFT JOIN cows c ON c.id = m.cow_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY m.created_at DESC"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.mapErr("list health records", err)
	}
	defer rows.Close()

	out := []models.HealthRecord{}
	for rows.Next() {
		r, err := scanHealth(rows)
		if err != nil {
			return nil, s.mapErr("list health records", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.mapErr("list health records", err)
	}
	return out, nil
}

// ---- profiles ----

const profileColumns = `id, first_name, last_name, display_name, email, role, updated_at`

func scanProfile(row rowScanner) (models.Profile, error) {
	var p models.Profile
	var updated sql.NullTime
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.DisplayName, &p.Email, &p.Role, &updated)
	p.UpdatedAt = nullTime(updated)
	return p, err
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	p, err := scanProfile(s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, userID))
	if err != nil {
		return nil, s.mapErr("get profile", err)
	}
	return &p, nil
}

func (s *Store) UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.Profile, error) {
	const query = `
		UPDATE profiles SET
			first_name = COALESCE($2, first_name),
			last_name = COALESCE($3, last_name),
			display_name = COALESCE($4, display_name),
			updated_at = $5
		WHERE id = $1
		RETURNING ` + profileColumns

	row := s.db.QueryRowContext(ctx, query, userID, update.FirstName, update.LastName, update.DisplayName, s.now().UTC())
	p, err := scanProfile(row)
	if err != nil {
		return nil, s.mapErr("update profile", err)
	}
	return &p, nil
}

// mapErr translates driver failures into repository sentinels.
func (s *Store) mapErr(op string, err error) error {
	var pqErr *pq.Error
	var netErr net.Error

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	case errors.As(err, &pqErr) && pqErr.Code == uniqueViolation:
		s.logger.Debug("unique violation", zap.String("op", op), zap.String("constraint", pqErr.Constraint))
		return fmt.Errorf("%s: %w: %v", op, repository.ErrConflict, pqErr.Message)
	case errors.As(err, &pqErr):
		return fmt.Errorf("%s: %s", op, pqErr.Message)
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone), errors.As(err, &netErr):
		return fmt.Errorf("%s: %w: %w", op, repository.ErrUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func escapeLike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}
