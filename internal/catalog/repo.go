package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"moviehub/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

type ListQuery struct {
	Q       string // substring match on title
	Genre   string // exact genre name
	GenreID int64
	Year    int
	Limit   int
	Offset  int
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

const movieColumns = `m.id, m.title, m.description, m.duration, m.release_year, m.rating_imdb,
		m.video_src, m.trailer_src, m.photo_src, m.created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMovie(row rowScanner) (models.Movie, error) {
	var (
		m      models.Movie
		year   sql.NullInt64
		rating sql.NullFloat64
	)
	if err := row.Scan(
		&m.ID, &m.Title, &m.Description, &m.Duration, &year, &rating,
		&m.VideoSrc, &m.TrailerSrc, &m.PhotoSrc, &m.CreatedAt,
	); err != nil {
		return m, err
	}
	if year.Valid {
		y := int(year.Int64)
		m.ReleaseYear = &y
	}
	if rating.Valid {
		r := rating.Float64
		m.RatingImdb = &r
	}
	m.Genres = []models.Genre{}
	return m, nil
}

// FindMovieByTitle does an exact, case-sensitive title lookup. It returns nil, nil
// when nothing matches.
func (r *Repo) FindMovieByTitle(ctx context.Context, title string) (*models.Movie, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+movieColumns+`
		FROM movies m
		WHERE m.title = ?
		ORDER BY m.id
		LIMIT 1
	`, title)

	m, err := scanMovie(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find movie by title: %w", err)
	}
	return &m, nil
}

func (r *Repo) GetByID(ctx context.Context, id int64) (*models.Movie, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+movieColumns+`
		FROM movies m
		WHERE m.id = ?
	`, id)

	m, err := scanMovie(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan getByID: %w", err)
	}

	movies := []models.Movie{m}
	if err := r.attachGenres(ctx, movies); err != nil {
		return nil, err
	}
	return &movies[0], nil
}

func (r *Repo) Count(ctx context.Context, q ListQuery) (int, error) {
	sqlStr, args := buildListSQL(q, true)
	var total int
	if err := r.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count scan: %w", err)
	}
	return total, nil
}

func (r *Repo) List(ctx context.Context, q ListQuery) ([]models.Movie, error) {
	sqlStr, args := buildListSQL(q, false)

	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	out := make([]models.Movie, 0, clampLimit(q.Limit))
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, fmt.Errorf("list scan: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}

	if err := r.attachGenres(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attachGenres fills Genres for each movie with one query.
func (r *Repo) attachGenres(ctx context.Context, movies []models.Movie) error {
	if len(movies) == 0 {
		return nil
	}
	idx := make(map[int64]int, len(movies))
	placeholders := make([]string, 0, len(movies))
	args := make([]any, 0, len(movies))
	for i, m := range movies {
		idx[m.ID] = i
		placeholders = append(placeholders, "?")
		args = append(args, m.ID)
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT mg.movie_id, g.id, g.name
		FROM movie_genres mg
		JOIN genres g ON g.id = mg.genre_id
		WHERE mg.movie_id IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY mg.rowid
	`, args...)
	if err != nil {
		return fmt.Errorf("movie genres query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			movieID int64
			g       models.Genre
		)
		if err := rows.Scan(&movieID, &g.ID, &g.Name); err != nil {
			return fmt.Errorf("movie genres scan: %w", err)
		}
		if i, ok := idx[movieID]; ok {
			movies[i].Genres = append(movies[i].Genres, g)
		}
	}
	return rows.Err()
}

func (r *Repo) ListGenres(ctx context.Context) ([]models.Genre, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, name FROM genres ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	defer rows.Close()

	var out []models.Genre
	for rows.Next() {
		var g models.Genre
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("list genres scan: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *Repo) GetGenre(ctx context.Context, id int64) (*models.Genre, error) {
	var g models.Genre
	err := r.DB.QueryRowContext(ctx, `SELECT id, name FROM genres WHERE id = ?`, id).Scan(&g.ID, &g.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get genre: %w", err)
	}
	return &g, nil
}

// CountByGenre returns every genre with the number of movies linked to it.
func (r *Repo) CountByGenre(ctx context.Context) ([]models.GenreCount, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT g.id, g.name, COUNT(mg.movie_id)
		FROM genres g
		LEFT JOIN movie_genres mg ON mg.genre_id = g.id
		GROUP BY g.id, g.name
		ORDER BY g.name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("count by genre: %w", err)
	}
	defer rows.Close()

	out := []models.GenreCount{}
	for rows.Next() {
		var gc models.GenreCount
		if err := rows.Scan(&gc.ID, &gc.Name, &gc.MovieCount); err != nil {
			return nil, fmt.Errorf("count by genre scan: %w", err)
		}
		out = append(out, gc)
	}
	return out, rows.Err()
}

// CreateGenre inserts a genre by name and returns the stored row. An existing
// genre with the same name is returned unchanged.
func (r *Repo) CreateGenre(ctx context.Context, name string) (models.Genre, error) {
	if _, err := r.DB.ExecContext(ctx,
		`INSERT INTO genres (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name,
	); err != nil {
		return models.Genre{}, fmt.Errorf("create genre %q: %w", name, err)
	}
	g := models.Genre{Name: name}
	if err := r.DB.QueryRowContext(ctx, `SELECT id FROM genres WHERE name = ?`, name).Scan(&g.ID); err != nil {
		return models.Genre{}, fmt.Errorf("select genre %q: %w", name, err)
	}
	return g, nil
}

// CreateMovie inserts the movie and one movie_genres row per genre id in a single
// transaction and returns the new movie id.
func (r *Repo) CreateMovie(ctx context.Context, m models.Movie, genreIDs []int64) (int64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO movies (title, description, duration, release_year, rating_imdb, video_src, trailer_src, photo_src)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.Title, m.Description, m.Duration, nullInt(m.ReleaseYear), nullFloat(m.RatingImdb),
		m.VideoSrc, m.TrailerSrc, m.PhotoSrc)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("insert movie %q: %w", m.Title, err)
	}
	movieID, err := res.LastInsertId()
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("movie id %q: %w", m.Title, err)
	}

	if err := insertMovieGenres(ctx, tx, movieID, genreIDs); err != nil {
		// ErrTxDone: database/sql already rolled back because ctx ended
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return movieID, &PartialWriteError{MovieID: movieID, Err: errors.Join(err, rbErr)}
		}
		return 0, err
	}

	if err := ctx.Err(); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	if err := tx.Commit(); err != nil {
		if rolledBack(err) {
			return 0, fmt.Errorf("commit tx: %w", err)
		}
		// the driver may or may not have applied the commit
		return movieID, &PartialWriteError{MovieID: movieID, Err: fmt.Errorf("commit tx: %w", err)}
	}
	return movieID, nil
}

// rolledBack reports commit errors raised by database/sql before the driver was
// asked to commit; the context watcher rolls those transactions back.
func rolledBack(err error) bool {
	return errors.Is(err, sql.ErrTxDone) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func insertMovieGenres(ctx context.Context, tx *sql.Tx, movieID int64, genreIDs []int64) error {
	if len(genreIDs) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO movie_genres (movie_id, genre_id) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare movie_genres: %w", err)
	}
	defer stmt.Close()

	for _, gid := range genreIDs {
		if _, err := stmt.ExecContext(ctx, movieID, gid); err != nil {
			return fmt.Errorf("insert movie_genre (%d,%d): %w", movieID, gid, err)
		}
	}
	return nil
}

// buildListSQL builds either COUNT(*) or SELECT list.
func buildListSQL(q ListQuery, countOnly bool) (string, []any) {
	baseSelect := `SELECT ` + movieColumns + ` FROM movies m`
	if countOnly {
		baseSelect = `SELECT COUNT(*) FROM movies m`
	}

	var where []string
	var args []any

	if kw := strings.TrimSpace(q.Q); kw != "" {
		where = append(where, "LOWER(m.title) LIKE ?")
		args = append(args, "%"+strings.ToLower(kw)+"%")
	}

	if q.Year > 0 {
		where = append(where, "m.release_year = ?")
		args = append(args, q.Year)
	}

	if q.GenreID > 0 {
		where = append(where, "EXISTS (SELECT 1 FROM movie_genres mg WHERE mg.movie_id = m.id AND mg.genre_id = ?)")
		args = append(args, q.GenreID)
	}

	if g := strings.TrimSpace(q.Genre); g != "" {
		where = append(where, `EXISTS (SELECT 1 FROM movie_genres mg JOIN genres g ON g.id = mg.genre_id
			WHERE mg.movie_id = m.id AND g.name = ?)`)
		args = append(args, g)
	}

	sqlStr := baseSelect
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}

	if !countOnly {
		sqlStr += " ORDER BY m.id DESC"
		sqlStr += " LIMIT ? OFFSET ?"
		offset := q.Offset
		if offset < 0 {
			offset = 0
		}
		args = append(args, clampLimit(q.Limit), offset)
	}

	return sqlStr, args
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
