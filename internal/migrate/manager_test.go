package migrate

import (
	"context"
	"regexp"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSplitStatements(t *testing.T) {
	sql := "-- header\ncreate table a (x text default 'a;b');\n\ninsert into a values ('it''s');\nselect 1"
	got := splitStatements(sql)
	if len(got) != 3 {
		t.Fatalf("expected 3 statements, got %d: %q", len(got), got)
	}
	if !regexp.MustCompile(`'a;b'`).MatchString(got[0]) {
		t.Fatalf("quoted semicolon split: %q", got[0])
	}
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	files, err := collectSQL(Migrations(), ".up.sql")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"0001_accounts.up.sql", "0002_profiles.up.sql", "0003_food_donations.up.sql", "0004_account_sessions.up.sql"}
	if len(files) != len(want) {
		t.Fatalf("files = %v", files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Fatalf("files = %v, want %v", files, want)
		}
	}
	seeds, err := collectSQL(Seeds(), ".sql")
	if err != nil || len(seeds) == 0 {
		t.Fatalf("seeds = %v err = %v", seeds, err)
	}
}

func TestUpAppliesPendingOnly(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	fsys := fstest.MapFS{
		"0001_a.up.sql":   {Data: []byte("create table a (id text);")},
		"0001_a.down.sql": {Data: []byte("drop table a;")},
		"0002_b.up.sql":   {Data: []byte("create table b (id text);\ncreate index b_idx on b (id);")},
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewManager(db, fsys, nil, WithClock(func() time.Time { return now }))

	mock.ExpectExec(regexp.QuoteMeta("create table if not exists schema_migrations")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("create table if not exists schema_seeds")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("select name from schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_a.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("create table b")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("create index b_idx")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec(regexp.QuoteMeta("insert into schema_migrations(name, applied_at)")).
		WithArgs("0002_b.up.sql", now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := m.Up(context.Background()); err != nil {
		t.Fatalf("up: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDownRequiresDownFile(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	m := NewManager(db, fstest.MapFS{"0002_b.up.sql": {Data: []byte("select 1;")}}, nil)
	mock.ExpectExec("create table if not exists").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("create table if not exists").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select name from schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0002_b.up.sql"))

	if err := m.Down(context.Background()); err == nil {
		t.Fatal("expected missing down migration error")
	}
}
