package keys

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/trainingpay/internal/common"
	"github.com/dmitrijs2005/trainingpay/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const (
	findQuery   = `(?s)^SELECT\s+email,\s*secret_key\s+FROM\s+key_storage\s+WHERE\s+email\s*=\s*\$1\s*$`
	insertQuery = `(?s)^INSERT\s+INTO\s+key_storage\s*\(email,\s*secret_key\)\s*VALUES\s*\(\$1,\s*\$2\)\s*$`
	deleteQuery = `(?s)^DELETE\s+FROM\s+key_storage\s+WHERE\s+email\s*=\s*\$1\s*$`
)

func TestFind_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(findQuery).WithArgs("a@b.c").
		WillReturnRows(sqlmock.NewRows([]string{"email", "secret_key"}).AddRow("a@b.c", "a2V5"))

	rec, err := repo.Find(context.Background(), "a@b.c")
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	if rec.Email != "a@b.c" || rec.SecretKey != "a2V5" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestFind_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(findQuery).WithArgs("a@b.c").WillReturnError(sql.ErrNoRows)

	if _, err := repo.Find(context.Background(), "a@b.c"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestFind_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(findQuery).WithArgs("a@b.c").WillReturnError(errors.New("conn reset"))

	_, err := repo.Find(context.Background(), "a@b.c")
	if err == nil || !regexp.MustCompile(`db error: .*conn reset`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestSave_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(insertQuery).WithArgs("a@b.c", "a2V5").WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Save(context.Background(), &models.KeyRecord{Email: "a@b.c", SecretKey: "a2V5"}); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSave_ExistingKeyIsNotOverwritten(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(insertQuery).WithArgs("a@b.c", "bmV3").WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Save(context.Background(), &models.KeyRecord{Email: "a@b.c", SecretKey: "bmV3"})
	if !errors.Is(err, common.ErrorAlreadyExists) {
		t.Fatalf("expected ErrorAlreadyExists, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(deleteQuery).WithArgs("a@b.c").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "a@b.c"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
}
