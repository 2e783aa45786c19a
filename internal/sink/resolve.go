package sink

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"pgtarget/internal/ddl"
	"pgtarget/internal/metrics"
	"pgtarget/internal/storage"
)

// resolve prepares the destination table and the cached write statement.
// It runs once per sink; a failed attempt is retried on the next flush.
func (s *Sink) resolve(ctx context.Context) (err error) {
	if s.resolved {
		return nil
	}
	start := s.now()
	defer func() { metrics.RecordStep(s.scope, "resolve", err, s.now().Sub(start)) }()

	repo := s.opts.Repo
	fqn := s.plan.FQN

	if s.opts.LoadMethod == LoadOverwrite {
		if err := repo.DropTable(ctx, fqn); err != nil {
			return err
		}
		s.log.Info("dropped table for overwrite")
	}

	exists, err := repo.TableExists(ctx, fqn)
	if err != nil {
		return err
	}
	if !exists {
		if err := repo.CreateTable(ctx, s.plan); err != nil {
			return err
		}
		s.log.Info("created table", zap.Int("columns", len(s.plan.Columns)))
	} else if err := s.reconcile(ctx); err != nil {
		return err
	}

	live, err := repo.Columns(ctx, fqn)
	if err != nil {
		return err
	}
	have := make(map[string]struct{}, len(live))
	for _, c := range live {
		have[c.Name] = struct{}{}
	}

	st := storage.Statement{
		Table: fqn,
		Keys:  s.plan.PrimaryKeys(),
		Mode:  s.mode,
	}
	for _, c := range s.plan.Columns {
		if _, ok := have[c.Name]; !ok {
			return fmt.Errorf("sink: table %s has no column %q after reconciliation", fqn, c.Name)
		}
		st.Columns = append(st.Columns, storage.StatementColumn{Name: c.Name, Type: c.Type})
	}

	st, err = repo.PrepareWrite(st)
	if err != nil {
		return err
	}
	s.stmt = st
	s.resolved = true
	s.log.Debug("prepared write statement",
		zap.Stringer("mode", st.Mode),
		zap.String("sql", st.SQL),
		zap.Duration("took", s.now().Sub(start).Truncate(time.Millisecond)),
	)
	return nil
}

// reconcile brings an existing table in line with the plan: planned columns
// missing from the table are added as nullable columns, and live columns
// that match a planned column only case-insensitively are renamed.
func (s *Sink) reconcile(ctx context.Context) error {
	repo := s.opts.Repo
	fqn := s.plan.FQN

	live, err := repo.Columns(ctx, fqn)
	if err != nil {
		return err
	}
	exact := make(map[string]struct{}, len(live))
	folded := make(map[string]string, len(live))
	for _, c := range live {
		exact[c.Name] = struct{}{}
		folded[strings.ToLower(c.Name)] = c.Name
	}

	for _, c := range s.plan.Columns {
		if _, ok := exact[c.Name]; ok {
			continue
		}
		if from, ok := folded[strings.ToLower(c.Name)]; ok {
			if err := repo.RenameColumn(ctx, fqn, from, c.Name); err != nil {
				return err
			}
			s.log.Info("renamed column", zap.String("from", from), zap.String("to", c.Name))
			continue
		}
		add := ddl.ColumnDef{Name: c.Name, Type: c.Type, Nullable: true}
		if err := repo.AddColumn(ctx, fqn, add); err != nil {
			return err
		}
		s.log.Info("added column", zap.String("column", c.Name), zap.Stringer("type", c.Type))
	}
	return nil
}
