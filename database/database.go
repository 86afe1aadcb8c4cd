package database

import (
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/camden-git/clipcraft/models"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

var ErrVideoNotIndexed = errors.New("video not indexed")

var videoColumns = []string{
	"id", "path", "original_name", "extension", "size",
	"width", "height", "fps", "frame_count", "uploaded_at",
}

// InitDB opens the video index and creates its table.
func InitDB(dataSourceName string, log *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// enable write-ahead logging for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		log.Warn("failed to set WAL mode", zap.Error(err))
	}

	sqlStmt := `
	CREATE TABLE IF NOT EXISTS videos (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		original_name TEXT NOT NULL DEFAULT '',
		extension TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL DEFAULT 0,
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		fps REAL NOT NULL DEFAULT 0,
		frame_count INTEGER NOT NULL DEFAULT 0,
		uploaded_at INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(sqlStmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create videos table: %w", err)
	}

	log.Info("video index initialized", zap.String("path", dataSourceName))
	return db, nil
}

// RegisterVideo inserts or replaces the index row for v.
func RegisterVideo(db *sql.DB, v models.Video) error {
	queryBuilder := psql.Insert("videos").
		Columns(videoColumns...).
		Values(v.ID, v.Path, v.OriginalName, v.Extension, v.Size, v.Width, v.Height, v.FPS, v.FrameCount, v.UploadedAt).
		Suffix("ON CONFLICT(id) DO UPDATE SET").
		Suffix("path = excluded.path, original_name = excluded.original_name, extension = excluded.extension,").
		Suffix("size = excluded.size, width = excluded.width, height = excluded.height,").
		Suffix("fps = excluded.fps, frame_count = excluded.frame_count, uploaded_at = excluded.uploaded_at")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for RegisterVideo: %w", err)
	}
	if _, err := db.Exec(sqlStr, args...); err != nil {
		return fmt.Errorf("failed to register video %s: %w", v.ID, err)
	}
	return nil
}

// GetVideo returns the index row for id, or ErrVideoNotIndexed.
func GetVideo(db *sql.DB, id string) (models.Video, error) {
	sqlStr, args, err := psql.Select(videoColumns...).
		From("videos").
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return models.Video{}, fmt.Errorf("failed to build SQL query for GetVideo: %w", err)
	}

	v, err := scanVideo(db.QueryRow(sqlStr, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Video{}, ErrVideoNotIndexed
		}
		return models.Video{}, fmt.Errorf("failed to query video %s: %w", id, err)
	}
	return v, nil
}

// ListVideos returns indexed videos, newest first.
func ListVideos(db *sql.DB) ([]models.Video, error) {
	sqlStr, args, err := psql.Select(videoColumns...).
		From("videos").
		OrderBy("uploaded_at DESC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for ListVideos: %w", err)
	}

	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	videos := []models.Video{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video row: %w", err)
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

// DeleteVideo removes the index row. Reports whether a row existed.
func DeleteVideo(db *sql.DB, id string) (bool, error) {
	sqlStr, args, err := psql.Delete("videos").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build SQL query for DeleteVideo: %w", err)
	}
	res, err := db.Exec(sqlStr, args...)
	if err != nil {
		return false, fmt.Errorf("failed to delete video %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (models.Video, error) {
	var v models.Video
	err := row.Scan(&v.ID, &v.Path, &v.OriginalName, &v.Extension, &v.Size,
		&v.Width, &v.Height, &v.FPS, &v.FrameCount, &v.UploadedAt)
	return v, err
}
