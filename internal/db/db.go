// Package db mirrors annotations into a project SQLite database so
// external tooling can query the dataset without parsing per-image
// files.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"kolo-studio/internal/annotation"
	"kolo-studio/internal/kolofile"
)

type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the project database and ensures the
// schema exists.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", path, err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS kolo_item (
			item_id INTEGER PRIMARY KEY AUTOINCREMENT,
			image_name TEXT NOT NULL,
			class_name TEXT NOT NULL,
			x_center DOUBLE NOT NULL,
			y_center DOUBLE NOT NULL,
			width DOUBLE NOT NULL,
			height DOUBLE NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_kolo_item_image ON kolo_item(image_name);
		CREATE TABLE IF NOT EXISTS annotation_category (
			class_id INTEGER PRIMARY KEY,
			class_name TEXT NOT NULL UNIQUE
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("db: init schema: %w", err)
	}

	return &DB{db}, nil
}

// ReplaceImage swaps the stored annotations for one image in a single
// transaction, so a crash mid-save never leaves the image half-written.
func (db *DB) ReplaceImage(imageName string, records []kolofile.Record) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM kolo_item WHERE image_name = ?", imageName); err != nil {
		return fmt.Errorf("db: clear %s: %w", imageName, err)
	}
	for _, rec := range records {
		_, err := tx.Exec(
			"INSERT INTO kolo_item (image_name, class_name, x_center, y_center, width, height) VALUES (?, ?, ?, ?, ?, ?)",
			imageName, rec.Name, rec.Box.CX, rec.Box.CY, rec.Box.W, rec.Box.H,
		)
		if err != nil {
			return fmt.Errorf("db: insert for %s: %w", imageName, err)
		}
	}
	return tx.Commit()
}

// LoadImage returns the stored annotations for one image in insertion
// order. An image never saved yields an empty slice.
func (db *DB) LoadImage(imageName string) ([]kolofile.Record, error) {
	rows, err := db.Query(
		"SELECT class_name, x_center, y_center, width, height FROM kolo_item WHERE image_name = ? ORDER BY item_id",
		imageName,
	)
	if err != nil {
		return nil, fmt.Errorf("db: load %s: %w", imageName, err)
	}
	defer rows.Close()

	var records []kolofile.Record
	for rows.Next() {
		var rec kolofile.Record
		var b annotation.Box
		if err := rows.Scan(&rec.Name, &b.CX, &b.CY, &b.W, &b.H); err != nil {
			return nil, fmt.Errorf("db: scan %s: %w", imageName, err)
		}
		rec.Box = b
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: load %s: %w", imageName, err)
	}
	return records, nil
}

// ImageNames returns every image name with at least one stored
// annotation.
func (db *DB) ImageNames() ([]string, error) {
	rows, err := db.Query("SELECT DISTINCT image_name FROM kolo_item ORDER BY image_name")
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("db: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// SaveCategories replaces the stored category list with the given names
// in id order.
func (db *DB) SaveCategories(names []string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM annotation_category"); err != nil {
		return fmt.Errorf("db: clear categories: %w", err)
	}
	for id, name := range names {
		_, err := tx.Exec("INSERT INTO annotation_category (class_id, class_name) VALUES (?, ?)", id, name)
		if err != nil {
			return fmt.Errorf("db: insert category %q: %w", name, err)
		}
	}
	return tx.Commit()
}

// LoadCategories returns the stored category names in id order.
func (db *DB) LoadCategories() ([]string, error) {
	rows, err := db.Query("SELECT class_name FROM annotation_category ORDER BY class_id")
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("db: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
