package demo

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db, "pgx"), mock
}

func TestStore_Migrate(t *testing.T) {
	store, mock := newMockStore(t)
	for range schema["pgx"] {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, store.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MigrateUnknownDriver(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	err = NewStore(db, "oracle").Migrate(context.Background())
	assert.ErrorContains(t, err, `no schema for driver "oracle"`)
}

func TestStore_ListWidgets(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name, price FROM widgets ORDER BY id LIMIT $1 OFFSET $2`)).
		WithArgs(10, 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price"}).
			AddRow(6, "gear", 1.5).
			AddRow(7, "cog", 2.0))

	widgets, err := store.ListWidgets(context.Background(), 10, 5)
	require.NoError(t, err)
	assert.Equal(t, []Widget{{ID: 6, Name: "gear", Price: 1.5}, {ID: 7, Name: "cog", Price: 2}}, widgets)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetWidget(t *testing.T) {
	query := regexp.QuoteMeta(`SELECT id, name, price FROM widgets WHERE id = $1`)

	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		want    *Widget
		wantErr error
	}{
		{
			name: "found",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(query).WithArgs(int64(42)).
					WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price"}).AddRow(42, "gear", 9.5))
			},
			want: &Widget{ID: 42, Name: "gear", Price: 9.5},
		},
		{
			name: "missing row",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(query).WithArgs(int64(42)).
					WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price"}))
			},
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			tt.setup(mock)

			got, err := store.GetWidget(context.Background(), 42)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_GetWidgetQueryError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, name, price FROM widgets").WillReturnError(errors.New("connection reset"))

	_, err := store.GetWidget(context.Background(), 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "get widget: connection reset")
}

func TestStore_CreateWidget(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO widgets (name, price) VALUES ($1, $2) RETURNING id`)).
		WithArgs("gear", 3.25).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

	w, err := store.CreateWidget(context.Background(), "gear", 3.25)
	require.NoError(t, err)
	assert.Equal(t, &Widget{ID: 11, Name: "gear", Price: 3.25}, w)
}

func TestStore_UpdateAndDelete(t *testing.T) {
	tests := []struct {
		name    string
		rows    int64
		wantErr error
	}{
		{name: "row affected", rows: 1},
		{name: "no row", rows: 0, wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			mock.ExpectExec(regexp.QuoteMeta(`UPDATE widgets SET name = $1, price = $2 WHERE id = $3`)).
				WithArgs("cog", 1.0, int64(3)).
				WillReturnResult(sqlmock.NewResult(0, tt.rows))
			mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM widgets WHERE id = $1`)).
				WithArgs(int64(3)).
				WillReturnResult(sqlmock.NewResult(0, tt.rows))

			_, err := store.UpdateWidget(context.Background(), 3, "cog", 1.0)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			err = store.DeleteWidget(context.Background(), 3)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_CreatePartChecksWidget(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, name, price FROM widgets").WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price"}))

	_, err := store.CreatePart(context.Background(), 5, "bolt", 2)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Users(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users (email, password_hash, roles) VALUES ($1, $2, $3) RETURNING id`)).
		WithArgs("ada@example.com", "hash", "admin,editor").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, email, password_hash, roles FROM users WHERE email = $1`)).
		WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "roles"}).
			AddRow(1, "ada@example.com", "hash", "admin,editor"))
	mock.ExpectQuery("SELECT id, email, password_hash, roles FROM users").
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "roles"}))

	u, err := store.CreateUser(context.Background(), "ada@example.com", "hash", []string{"admin", "editor"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)

	found, err := store.FindUserByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "editor"}, found.Roles)
	assert.Equal(t, "hash", found.PasswordHash)

	_, err = store.FindUserByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
