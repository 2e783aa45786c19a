package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"

	gddl "pgtarget/internal/ddl"
	"pgtarget/internal/storage"
	pgddl "pgtarget/internal/storage/postgres/ddl"
)

// PrepareWrite implements storage.Repository. It renders the INSERT used by
// the batch path; plain inserts without MONEY columns are written with COPY
// and keep the SQL only for logging.
func (r *Repository) PrepareWrite(st storage.Statement) (storage.Statement, error) {
	if err := st.Validate(); err != nil {
		return st, err
	}
	st.SQL = insertSQL(r.d, st)
	return st, nil
}

// insertSQL renders INSERT ... VALUES ($1, ...) with the ON CONFLICT clause
// the mode asks for.
func insertSQL(d pgddl.Dialect, st storage.Statement) string {
	cols := make([]string, len(st.Columns))
	params := make([]string, len(st.Columns))
	for i, c := range st.Columns {
		cols[i] = d.QuoteIdent(c.Name)
		params[i] = fmt.Sprintf("$%d", i+1)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s)",
		d.QuoteFQN(st.Table), strings.Join(cols, ", "), strings.Join(params, ", "))

	switch st.Mode {
	case storage.ModeSkip:
		b.WriteString(" ON CONFLICT")
		if len(st.Keys) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(quoteAll(d, st.Keys), ", "))
		}
		b.WriteString(" DO NOTHING")
	case storage.ModeUpsert:
		fmt.Fprintf(&b, " ON CONFLICT (%s)", strings.Join(quoteAll(d, st.Keys), ", "))
		upd := st.UpdateColumns()
		if len(upd) == 0 {
			b.WriteString(" DO NOTHING")
			break
		}
		sets := make([]string, len(upd))
		for i, c := range upd {
			q := d.QuoteIdent(c)
			sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", q, q)
		}
		fmt.Fprintf(&b, " DO UPDATE SET %s", strings.Join(sets, ", "))
	}
	return b.String()
}

func quoteAll(d pgddl.Dialect, names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = d.QuoteIdent(n)
	}
	return out
}

// useCopy reports whether st can go through COPY. pgx has no binary codec
// for MONEY, so those tables take the INSERT path with text parameters.
func useCopy(st storage.Statement) bool {
	if st.Mode != storage.ModeInsert {
		return false
	}
	for _, c := range st.Columns {
		if c.Type.Kind == gddl.KindMoney {
			return false
		}
	}
	return true
}

// Write implements storage.Repository.
func (r *Repository) Write(ctx context.Context, st storage.Statement, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if st.SQL == "" {
		return 0, fmt.Errorf("postgres: write %s: statement not prepared", st.Table)
	}
	if err := encodeRows(st, rows); err != nil {
		return 0, execError("write", st.Table, len(rows), err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, execError("begin", st.Table, len(rows), err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var n int64
	if useCopy(st) {
		n, err = tx.CopyFrom(ctx, pgddl.Identifier(st.Table), st.Names(), pgx.CopyFromRows(rows))
	} else {
		n, err = sendBatch(ctx, tx, st.SQL, rows)
	}
	if err != nil {
		return 0, execError("write", st.Table, len(rows), err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, execError("commit", st.Table, len(rows), err)
	}
	r.log.Debug("wrote rows",
		zap.String("table", st.Table),
		zap.Stringer("mode", st.Mode),
		zap.Bool("copy", useCopy(st)),
		zap.Int64("rows", n),
	)
	return n, nil
}

func sendBatch(ctx context.Context, tx pgx.Tx, sql string, rows [][]any) (int64, error) {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(sql, row...)
	}
	br := tx.SendBatch(ctx, batch)
	var n int64
	for i := 0; i < len(rows); i++ {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		n += tag.RowsAffected()
	}
	if err := br.Close(); err != nil {
		return 0, err
	}
	return n, nil
}

// encodeRows replaces the string forms the codec produces for NUMERIC, UUID
// and TIME columns with pgtype values, which COPY can encode in binary.
// MONEY keeps its text form.
func encodeRows(st storage.Statement, rows [][]any) error {
	for _, row := range rows {
		if len(row) != len(st.Columns) {
			return fmt.Errorf("row length %d != columns length %d", len(row), len(st.Columns))
		}
		for i, c := range st.Columns {
			v, err := encodeValue(c.Type, row[i])
			if err != nil {
				return fmt.Errorf("column %s: %w", c.Name, err)
			}
			row[i] = v
		}
	}
	return nil
}

func encodeValue(t gddl.ColumnType, v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	switch t.Kind {
	case gddl.KindNumeric:
		var n pgtype.Numeric
		if err := n.Scan(s); err != nil {
			return nil, err
		}
		return n, nil
	case gddl.KindUUID:
		var u pgtype.UUID
		if err := u.Scan(s); err != nil {
			return nil, err
		}
		return u, nil
	case gddl.KindTime:
		var tm pgtype.Time
		if err := tm.Scan(s); err != nil {
			return nil, err
		}
		return tm, nil
	}
	return v, nil
}
