package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDumpTypedError(t *testing.T) {
	err := fmt.Errorf("settle: %w", Wrap(CodeDependency, fmt.Errorf("dial tcp: refused"), "deal store unavailable"))
	d := Dump(err)

	if d.Code != CodeDependency || !d.Retryable {
		t.Fatalf("unexpected code/retryable %s %v", d.Code, d.Retryable)
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d: %v", len(d.Chain), d.Chain)
	}
	if d.Postgres != nil {
		t.Fatalf("expected no postgres detail, got %+v", d.Postgres)
	}

	fields := d.Fields()
	if fields["error_code"] != string(CodeDependency) || fields["error_retryable"] != true {
		t.Fatalf("unexpected fields %v", fields)
	}
	if _, ok := fields["pg_code"]; ok {
		t.Fatal("pg fields must be omitted without a driver error")
	}
}

func TestDumpPostgresErrors(t *testing.T) {
	pgxErr := fmt.Errorf("insert pledge: %w", &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "deal_pledges_deal_buyer_key",
		TableName:      "deal_pledges",
	})
	d := Dump(pgxErr)
	if d.Postgres == nil || d.Postgres.Code != "23505" || d.Postgres.Constraint != "deal_pledges_deal_buyer_key" {
		t.Fatalf("unexpected pgx detail %+v", d.Postgres)
	}
	fields := d.Fields()
	if fields["pg_table"] != "deal_pledges" {
		t.Fatalf("expected pg_table field, got %v", fields)
	}
	if _, ok := fields["pg_column"]; ok {
		t.Fatal("empty pg_column should be skipped")
	}
	if _, ok := fields["error_code"]; ok {
		t.Fatal("untyped error should not carry error_code")
	}

	pqErr := fmt.Errorf("update deal: %w", &pq.Error{Code: "40001", Message: "could not serialize access"})
	d = Dump(pqErr)
	if d.Postgres == nil || d.Postgres.Code != "40001" || d.Postgres.Message != "could not serialize access" {
		t.Fatalf("unexpected pq detail %+v", d.Postgres)
	}
}

func TestDumpNil(t *testing.T) {
	if d := Dump(nil); d.Message != "" || d.Chain != nil {
		t.Fatalf("expected empty dump, got %+v", d)
	}
}
