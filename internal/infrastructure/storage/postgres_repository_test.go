package storage

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"TenderScanner/internal/domain"
)

type recordedQuery struct {
	sql  string
	args []any
}

type fakeDB struct {
	queries   []recordedQuery
	rows      [][]any
	queryErrs []error
	rowErrs   []error
	returnID  string
	execSQL   []string
	pingErr   error
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.queries = append(f.queries, recordedQuery{sql: sql, args: args})
	if len(f.queryErrs) > 0 {
		err := f.queryErrs[0]
		f.queryErrs = f.queryErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &fakeRows{data: f.rows, idx: -1}, nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.queries = append(f.queries, recordedQuery{sql: sql, args: args})
	var err error
	if len(f.rowErrs) > 0 {
		err = f.rowErrs[0]
		f.rowErrs = f.rowErrs[1:]
	}
	return fakeRow{id: f.returnID, err: err}
}

func (f *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (f *fakeDB) Ping(context.Context) error { return f.pingErr }

type fakeRow struct {
	id  string
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.id
	return nil
}

type fakeRows struct {
	data [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.data[r.idx], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.data)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.idx]
	if len(row) != len(dest) {
		return errors.New("column count mismatch")
	}
	for i, value := range row {
		target := reflect.ValueOf(dest[i]).Elem()
		if value == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(value))
	}
	return nil
}

func undefinedColumn(column string) error {
	return &pgconn.PgError{
		Code:    codeUndefinedColumn,
		Message: `column "` + column + `" of relation "tenders" does not exist`,
	}
}

func sampleRecord() domain.TenderRecord {
	deadline := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	return domain.TenderRecord{
		Title:            "Dachsanierung",
		Description:      "Flachdach erneuern.",
		Location:         "Leipzig",
		Budget:           "150.000 €",
		BudgetIsEstimate: false,
		Deadline:         &deadline,
		Category:         "Dachdecker",
		SourceURL:        "https://example.org/tender/1",
		Requirements:     []string{"Meisterbrief"},
	}
}

func TestExistingSourceURLsSingleQuery(t *testing.T) {
	db := &fakeDB{rows: [][]any{{"https://example.org/a"}, {"https://example.org/c"}}}
	repo := NewPostgresRepository(db, nil)

	urls := []string{"https://example.org/a", "https://example.org/b", "https://example.org/c"}
	existing, err := repo.ExistingSourceURLs(context.Background(), urls)
	require.NoError(t, err)
	require.Len(t, db.queries, 1)
	require.Equal(t, "SELECT source_url FROM tenders WHERE source_url IN ($1,$2,$3)", db.queries[0].sql)
	require.Equal(t, []any{"https://example.org/a", "https://example.org/b", "https://example.org/c"}, db.queries[0].args)
	require.Equal(t, map[string]struct{}{
		"https://example.org/a": {},
		"https://example.org/c": {},
	}, existing)
}

func TestExistingSourceURLsEmptyInput(t *testing.T) {
	db := &fakeDB{}
	existing, err := NewPostgresRepository(db, nil).ExistingSourceURLs(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, existing)
	require.Empty(t, db.queries)
}

func TestExistingSourceURLsStoreFailure(t *testing.T) {
	db := &fakeDB{queryErrs: []error{errors.New("connection refused")}}
	_, err := NewPostgresRepository(db, nil).ExistingSourceURLs(context.Background(), []string{"u"})
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestInsertTenderFullShape(t *testing.T) {
	db := &fakeDB{returnID: "7f9c0e4e-2d5b-4e38-8a8e-3f0f4c3c9b10"}
	repo := NewPostgresRepository(db, nil)

	id, err := repo.InsertTender(context.Background(), sampleRecord())
	require.NoError(t, err)
	require.Equal(t, "7f9c0e4e-2d5b-4e38-8a8e-3f0f4c3c9b10", id)
	require.Len(t, db.queries, 1)
	require.Contains(t, db.queries[0].sql, "requirements")
	require.Contains(t, db.queries[0].sql, "RETURNING id::text")
	require.Len(t, db.queries[0].args, len(coreColumns)+len(optionalColumns))
}

func TestInsertTenderRetriesWithoutRequirements(t *testing.T) {
	db := &fakeDB{
		returnID: "id-1",
		rowErrs:  []error{undefinedColumn("requirements"), nil},
	}
	repo := NewPostgresRepository(db, nil)

	id, err := repo.InsertTender(context.Background(), sampleRecord())
	require.NoError(t, err)
	require.Equal(t, "id-1", id)
	require.Len(t, db.queries, 2)
	require.NotContains(t, db.queries[1].sql, "requirements")
	require.Len(t, db.queries[1].args, len(coreColumns))
}

func TestInsertTenderOtherUnknownColumnIsNotRetried(t *testing.T) {
	db := &fakeDB{rowErrs: []error{undefinedColumn("colour")}}

	_, err := NewPostgresRepository(db, nil).InsertTender(context.Background(), sampleRecord())
	require.ErrorIs(t, err, domain.ErrUnknownColumn)
	require.Len(t, db.queries, 1)
}

func TestInsertTenderFallbackFailureIsReported(t *testing.T) {
	db := &fakeDB{rowErrs: []error{undefinedColumn("requirements"), errors.New("disk full")}}

	_, err := NewPostgresRepository(db, nil).InsertTender(context.Background(), sampleRecord())
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "disk full"))
	require.Len(t, db.queries, 2)
}

func TestInsertTenderDuplicate(t *testing.T) {
	db := &fakeDB{rowErrs: []error{&pgconn.PgError{Code: codeUniqueViolation, Message: "duplicate key"}}}

	_, err := NewPostgresRepository(db, nil).InsertTender(context.Background(), sampleRecord())
	require.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestListTenders(t *testing.T) {
	created := time.Date(2026, time.February, 1, 8, 0, 0, 0, time.UTC)
	budget := "ca. 25.000 €"
	db := &fakeDB{rows: [][]any{{
		"id-1", "Malerarbeiten", nil, nil, &budget, nil, nil, "https://example.org/2", nil,
		true, []string{"Referenzen"}, created, created,
	}}}

	records, err := NewPostgresRepository(db, nil).ListTenders(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "id-1", records[0].ID)
	require.Equal(t, "ca. 25.000 €", records[0].Budget)
	require.Empty(t, records[0].Location)
	require.Nil(t, records[0].Deadline)
	require.True(t, records[0].BudgetIsEstimate)
	require.Equal(t, []string{"Referenzen"}, records[0].Requirements)
	require.Contains(t, db.queries[0].sql, "ORDER BY created_at DESC LIMIT 20")
}

func TestListTendersLegacyShape(t *testing.T) {
	created := time.Date(2026, time.February, 1, 8, 0, 0, 0, time.UTC)
	db := &fakeDB{
		queryErrs: []error{undefinedColumn("requirements"), nil},
		rows: [][]any{{
			"id-2", "Tiefbau", nil, nil, nil, nil, nil, "https://example.org/3", nil, created, created,
		}},
	}

	records, err := NewPostgresRepository(db, nil).ListTenders(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Nil(t, records[0].Requirements)
	require.Len(t, db.queries, 2)
	require.NotContains(t, db.queries[1].sql, "requirements")
}

func TestPingAndMigrate(t *testing.T) {
	db := &fakeDB{pingErr: errors.New("down")}
	repo := NewPostgresRepository(db, nil)

	require.ErrorIs(t, repo.Ping(context.Background()), domain.ErrStoreUnavailable)

	require.NoError(t, repo.Migrate(context.Background()))
	require.Len(t, db.execSQL, 1)
	require.Contains(t, db.execSQL[0], "CREATE TABLE IF NOT EXISTS tenders")
	require.Contains(t, db.execSQL[0], "source_url         TEXT NOT NULL UNIQUE")
}
