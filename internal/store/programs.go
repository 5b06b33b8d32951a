package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/turingloom/internal/document"
)

// ErrProgramNotFound is returned when no program has the requested name.
var ErrProgramNotFound = errors.New("program not found")

// Program is a saved rule document.
type Program struct {
	Name     string
	Hash     string
	Document document.Document
	SavedAt  time.Time
}

// SaveProgram stores doc under name, replacing any program with the same
// name. The hash is computed from the document's rules.
func (s *Store) SaveProgram(ctx context.Context, name string, doc document.Document, savedAt time.Time) (Program, error) {
	if name == "" {
		return Program{}, fmt.Errorf("save program: name is required")
	}

	hash, err := document.Hash(doc.Rules)
	if err != nil {
		return Program{}, fmt.Errorf("save program: %w", err)
	}
	data, err := document.Encode(doc, document.FormatJSON)
	if err != nil {
		return Program{}, fmt.Errorf("save program: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO programs (name, hash, document, saved_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			hash = excluded.hash,
			document = excluded.document,
			saved_at = excluded.saved_at
	`, name, hash, string(data), savedAt.UnixMilli())
	if err != nil {
		return Program{}, fmt.Errorf("save program: %w", err)
	}

	return Program{
		Name:     name,
		Hash:     hash,
		Document: doc,
		SavedAt:  time.UnixMilli(savedAt.UnixMilli()),
	}, nil
}

// LoadProgram returns the program saved under name.
func (s *Store) LoadProgram(ctx context.Context, name string) (Program, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, hash, document, saved_at FROM programs WHERE name = ?
	`, name)
	p, err := scanProgram(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Program{}, fmt.Errorf("load program %q: %w", name, ErrProgramNotFound)
	}
	if err != nil {
		return Program{}, fmt.Errorf("load program %q: %w", name, err)
	}
	return p, nil
}

// ListPrograms returns all saved programs ordered by name.
//
// Returns an empty slice (not nil) if nothing is saved.
func (s *Store) ListPrograms(ctx context.Context) ([]Program, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, hash, document, saved_at FROM programs
		ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query programs: %w", err)
	}
	defer rows.Close()

	programs := []Program{}
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		programs = append(programs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate programs: %w", err)
	}
	return programs, nil
}

// DeleteProgram removes the program saved under name.
func (s *Store) DeleteProgram(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM programs WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete program %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete program %q: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("delete program %q: %w", name, ErrProgramNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProgram(row scanner) (Program, error) {
	var (
		p       Program
		data    string
		savedAt int64
	)
	if err := row.Scan(&p.Name, &p.Hash, &data, &savedAt); err != nil {
		return Program{}, err
	}

	parsed, err := document.Parse([]byte(data), document.FormatJSON, p.Name)
	if err != nil {
		return Program{}, fmt.Errorf("decode program %q: %w", p.Name, err)
	}
	p.Document = parsed.Document
	p.SavedAt = time.UnixMilli(savedAt)
	return p, nil
}
