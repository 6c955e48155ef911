package users

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/conanshim/registry/internal/common"
	"github.com/conanshim/registry/internal/registry/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var userCols = []string{"username", "password_hash", "password", "token", "role", "last_login"}

func TestGetByToken_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+.*FROM\s+users\s+WHERE\s+token\s*=\s*\$1\s+AND\s+token\s*<>\s*''\s*$`
	rows := sqlmock.NewRows(userCols).AddRow("alice", "$2a$10$hash", "", "tok123", "developer", int64(0))
	mock.ExpectQuery(q).WithArgs("tok123").WillReturnRows(rows)

	got, err := repo.GetByToken(context.Background(), "tok123")
	if err != nil {
		t.Fatalf("GetByToken error: %v", err)
	}
	if got.Username != "alice" || got.Role != "developer" {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestGetByToken_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+.*FROM\s+users\s+WHERE\s+token\s*=\s*\$1`
	mock.ExpectQuery(q).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByToken(context.Background(), "nope")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateToken_OverwritesPrevious(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+users\s+SET\s+token\s*=\s*\$2,\s*last_login\s*=\s*\$3\s+WHERE\s+username\s*=\s*\$1\s*$`
	mock.ExpectExec(q).WithArgs("alice", "newtok", int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateToken(context.Background(), "alice", "newtok", 99); err != nil {
		t.Fatalf("UpdateToken error: %v", err)
	}
}

func TestUpdateToken_MissingUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+users\s+SET\s+token`
	mock.ExpectExec(q).WithArgs("ghost", "tok", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateToken(context.Background(), "ghost", "tok", 1)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsert_InsertOrUpdate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+users\s+.*ON\s+CONFLICT\s+\(username\)\s+DO\s+UPDATE\s+SET.*$`
	mock.ExpectExec(q).
		WithArgs("bob", "$2a$10$hash", "", "", "admin", int64(0)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u := &models.User{Username: "bob", PasswordHash: "$2a$10$hash", Role: "admin"}
	if err := repo.Upsert(context.Background(), u); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
}
