package mysql

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"

	gddl "pgtarget/internal/ddl"
	"pgtarget/internal/storage"
)

func ordersStatement(mode storage.Mode) storage.Statement {
	return storage.Statement{
		Table: "shop.orders",
		Columns: []storage.StatementColumn{
			{Name: "id", Type: gddl.Of(gddl.KindBigInt)},
			{Name: "total", Type: gddl.Numeric(10, 2)},
		},
		Keys: []string{"id"},
		Mode: mode,
	}
}

// TestInsertSQL verifies the statement rendered for each mode.
func TestInsertSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mode storage.Mode
		want string
	}{
		{"insert", storage.ModeInsert, "INSERT INTO `shop`.`orders` (`id`, `total`) VALUES (?, ?)"},
		{"skip", storage.ModeSkip, "INSERT IGNORE INTO `shop`.`orders` (`id`, `total`) VALUES (?, ?)"},
		{"upsert", storage.ModeUpsert, "INSERT INTO `shop`.`orders` (`id`, `total`) VALUES (?, ?) ON DUPLICATE KEY UPDATE `total` = VALUES(`total`)"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := (dialect{}).InsertSQL(ordersStatement(tt.mode))
			if err != nil {
				t.Fatalf("InsertSQL: %v", err)
			}
			if got != tt.want {
				t.Fatalf("InsertSQL =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

// TestInsertSQL_UpsertKeysOnly verifies a key-only table still renders a
// valid ON DUPLICATE KEY clause.
func TestInsertSQL_UpsertKeysOnly(t *testing.T) {
	t.Parallel()

	st := storage.Statement{
		Table:   "t",
		Columns: []storage.StatementColumn{{Name: "id", Type: gddl.Of(gddl.KindBigInt)}},
		Keys:    []string{"id"},
		Mode:    storage.ModeUpsert,
	}
	got, _ := (dialect{}).InsertSQL(st)
	if !strings.HasSuffix(got, "ON DUPLICATE KEY UPDATE `id` = VALUES(`id`)") {
		t.Fatalf("InsertSQL = %s", got)
	}
}

// TestErrorPayload verifies the server error number and message are lifted.
func TestErrorPayload(t *testing.T) {
	t.Parallel()

	err := errors.Join(errors.New("row 0"), &mysql.MySQLError{Number: 1062, Message: "Duplicate entry '1' for key 'PRIMARY'"})
	code, detail, ok := (dialect{}).ErrorPayload(err)
	if !ok || code != "1062" || !strings.Contains(detail, "Duplicate entry") {
		t.Fatalf("ErrorPayload = %q, %q, %v", code, detail, ok)
	}
	if _, _, ok := (dialect{}).ErrorPayload(errors.New("other")); ok {
		t.Fatalf("ErrorPayload matched a non-MySQL error")
	}
}

// TestNormalizeDSN verifies parseTime is forced and bad DSNs are rejected.
func TestNormalizeDSN(t *testing.T) {
	t.Parallel()

	got, err := NormalizeDSN("user:pw@tcp(db:3306)/shop")
	if err != nil {
		t.Fatalf("NormalizeDSN: %v", err)
	}
	if !strings.Contains(got, "parseTime=true") {
		t.Fatalf("NormalizeDSN = %s, want parseTime=true", got)
	}
	if _, err := NormalizeDSN("not a dsn"); err == nil {
		t.Fatalf("NormalizeDSN accepted an invalid DSN")
	}
}

// TestAdapterRegistration verifies storage.New routes "mysql" through the
// newRepository hook.
func TestAdapterRegistration(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var got Config
	closed := false
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		got = cfg
		return &Repository{}, func() { closed = true }, nil
	}

	repo, err := storage.New(context.Background(), storage.Config{Kind: "mysql", DSN: "u:p@tcp(h:3306)/d", MaxConns: 5})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	if got.DSN != "u:p@tcp(h:3306)/d" || got.MaxConns != 5 {
		t.Fatalf("cfg = %+v", got)
	}
	repo.Close()
	if !closed {
		t.Fatalf("Close did not invoke closeFn")
	}
}
