package demo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a row does not exist
var ErrNotFound = errors.New("not found")

// Widget is a catalog item
type Widget struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Part belongs to a widget
type Part struct {
	ID       int64  `json:"id"`
	WidgetID int64  `json:"widget_id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// User is an account able to obtain bearer tokens
type User struct {
	ID           int64    `json:"id"`
	Email        string   `json:"email"`
	PasswordHash string   `json:"-"`
	Roles        []string `json:"roles"`
}

// Store is the persistence layer of the demo application
type Store struct {
	db     *sql.DB
	driver string
}

// NewStore wraps db; driver selects the DDL dialect
func NewStore(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

var schema = map[string][]string{
	"sqlite3": {
		`CREATE TABLE IF NOT EXISTS widgets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			price REAL NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS parts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			widget_id INTEGER NOT NULL REFERENCES widgets(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			quantity INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			roles TEXT NOT NULL DEFAULT ''
		)`,
	},
	"pgx": {
		`CREATE TABLE IF NOT EXISTS widgets (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			price DOUBLE PRECISION NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS parts (
			id BIGSERIAL PRIMARY KEY,
			widget_id BIGINT NOT NULL REFERENCES widgets(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			quantity INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			roles TEXT NOT NULL DEFAULT ''
		)`,
	},
}

// Migrate creates the demo tables if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	stmts, ok := schema[s.driver]
	if !ok {
		return fmt.Errorf("no schema for driver %q", s.driver)
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ListWidgets returns a page of widgets ordered by id
func (s *Store) ListWidgets(ctx context.Context, limit, offset int) ([]Widget, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, price FROM widgets ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list widgets: %w", err)
	}
	defer rows.Close()

	widgets := []Widget{}
	for rows.Next() {
		var w Widget
		if err := rows.Scan(&w.ID, &w.Name, &w.Price); err != nil {
			return nil, fmt.Errorf("scan widget: %w", err)
		}
		widgets = append(widgets, w)
	}
	return widgets, rows.Err()
}

// GetWidget returns the widget with the given id
func (s *Store) GetWidget(ctx context.Context, id int64) (*Widget, error) {
	var w Widget
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, price FROM widgets WHERE id = $1`, id).Scan(&w.ID, &w.Name, &w.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get widget: %w", err)
	}
	return &w, nil
}

// CreateWidget inserts a widget and returns it with its id
func (s *Store) CreateWidget(ctx context.Context, name string, price float64) (*Widget, error) {
	w := &Widget{Name: name, Price: price}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO widgets (name, price) VALUES ($1, $2) RETURNING id`, name, price).Scan(&w.ID)
	if err != nil {
		return nil, fmt.Errorf("create widget: %w", err)
	}
	return w, nil
}

// UpdateWidget replaces the name and price of a widget
func (s *Store) UpdateWidget(ctx context.Context, id int64, name string, price float64) (*Widget, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE widgets SET name = $1, price = $2 WHERE id = $3`, name, price, id)
	if err != nil {
		return nil, fmt.Errorf("update widget: %w", err)
	}
	if err := affected(res); err != nil {
		return nil, err
	}
	return &Widget{ID: id, Name: name, Price: price}, nil
}

// DeleteWidget removes a widget
func (s *Store) DeleteWidget(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM widgets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete widget: %w", err)
	}
	return affected(res)
}

// ListParts returns the parts of a widget
func (s *Store) ListParts(ctx context.Context, widgetID int64) ([]Part, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, widget_id, name, quantity FROM parts WHERE widget_id = $1 ORDER BY id`, widgetID)
	if err != nil {
		return nil, fmt.Errorf("list parts: %w", err)
	}
	defer rows.Close()

	parts := []Part{}
	for rows.Next() {
		var p Part
		if err := rows.Scan(&p.ID, &p.WidgetID, &p.Name, &p.Quantity); err != nil {
			return nil, fmt.Errorf("scan part: %w", err)
		}
		parts = append(parts, p)
	}
	return parts, rows.Err()
}

// CreatePart adds a part to an existing widget
func (s *Store) CreatePart(ctx context.Context, widgetID int64, name string, quantity int) (*Part, error) {
	if _, err := s.GetWidget(ctx, widgetID); err != nil {
		return nil, err
	}
	p := &Part{WidgetID: widgetID, Name: name, Quantity: quantity}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO parts (widget_id, name, quantity) VALUES ($1, $2, $3) RETURNING id`,
		widgetID, name, quantity).Scan(&p.ID)
	if err != nil {
		return nil, fmt.Errorf("create part: %w", err)
	}
	return p, nil
}

// CreateUser inserts a user with an already hashed password
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string, roles []string) (*User, error) {
	u := &User{Email: email, PasswordHash: passwordHash, Roles: roles}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (email, password_hash, roles) VALUES ($1, $2, $3) RETURNING id`,
		email, passwordHash, strings.Join(roles, ",")).Scan(&u.ID)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// FindUserByEmail returns the user with the given email
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	var (
		u     User
		roles string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, roles FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &roles)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if roles != "" {
		u.Roles = strings.Split(roles, ",")
	}
	return &u, nil
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
