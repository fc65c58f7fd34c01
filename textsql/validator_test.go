package textsql

import (
	"strings"
	"testing"

	"github.com/altamira-data/queryhub/sqlstore"
)

func testValidator(columns map[string]bool) *Validator {
	if columns == nil {
		columns = map[string]bool{
			"id": true, "customer": true, "amount": true, "due_date": true,
			"item": true, "qty": true,
		}
	}
	return NewValidator([]string{"invoices", "orders"}, columns, sqlstore.NewDialect("sqlite"), 100)
}

func TestValidateSafeQuery(t *testing.T) {
	v := testValidator(nil)

	generated := v.Validate("list invoices", "SELECT customer, amount FROM invoices WHERE amount > 100")
	if !generated.IsSafe {
		t.Fatalf("expected safe, got rejection: %s", generated.RejectionReason)
	}
	if !strings.HasSuffix(generated.QueryText, "LIMIT 100") {
		t.Errorf("row limit not applied: %s", generated.QueryText)
	}
	if generated.SourceQuestion != "list invoices" {
		t.Errorf("source question not preserved: %s", generated.SourceQuestion)
	}
}

func TestValidateRejections(t *testing.T) {
	v := testValidator(nil)

	cases := []struct {
		name   string
		query  string
		reason string
	}{
		{"delete", "DELETE FROM invoices", "only SELECT"},
		{"embedded drop", "SELECT customer FROM invoices; DROP TABLE invoices", "multiple statements"},
		{"update keyword", "SELECT customer FROM invoices WHERE id IN (UPDATE invoices SET amount = 0)", "forbidden keyword: UPDATE"},
		{"pragma", "SELECT customer FROM invoices WHERE id = PRAGMA cache_size", "forbidden keyword: PRAGMA"},
		{"unknown table", "SELECT name FROM employees", "not in the allowed list"},
		{"no table", "SELECT 1", "references no table"},
		{"empty", "   ", "empty query"},
		{"unknown column", "SELECT salary FROM invoices", "unknown column: salary"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			generated := v.Validate("q", tc.query)
			if generated.IsSafe {
				t.Fatalf("expected rejection, got safe query: %s", generated.QueryText)
			}
			if !strings.Contains(generated.RejectionReason, tc.reason) {
				t.Errorf("reason = %q, want contains %q", generated.RejectionReason, tc.reason)
			}
			if generated.QueryText != "" {
				t.Errorf("rejected query must not carry executable text: %s", generated.QueryText)
			}
		})
	}
}

func TestValidateStripsComments(t *testing.T) {
	v := testValidator(nil)

	generated := v.Validate("q", "SELECT customer FROM invoices -- DROP TABLE invoices")
	if !generated.IsSafe {
		t.Fatalf("comment content should not trip keyword check: %s", generated.RejectionReason)
	}

	generated = v.Validate("q", "SELECT customer /* hidden; DELETE */ FROM invoices")
	if !generated.IsSafe {
		t.Fatalf("block comment should be stripped: %s", generated.RejectionReason)
	}
}

func TestValidateKeywordInStringLiteral(t *testing.T) {
	v := testValidator(nil)

	generated := v.Validate("q", "SELECT customer FROM invoices WHERE customer = 'DELETE ME'")
	if !generated.IsSafe {
		t.Errorf("keyword inside a string literal should be ignored: %s", generated.RejectionReason)
	}
}

func TestValidateSemicolonInStringLiteral(t *testing.T) {
	v := testValidator(nil)

	generated := v.Validate("q", "SELECT customer FROM invoices WHERE customer = 'a;b'")
	if !generated.IsSafe {
		t.Errorf("semicolon inside a string literal is not a statement separator: %s", generated.RejectionReason)
	}
}

func TestValidateAliasesAllowed(t *testing.T) {
	v := testValidator(nil)

	generated := v.Validate("q",
		"SELECT i.customer AS client, SUM(i.amount) AS total FROM invoices i GROUP BY i.customer")
	if !generated.IsSafe {
		t.Errorf("aliases should not be flagged as unknown columns: %s", generated.RejectionReason)
	}
}

func TestValidateColumnCheckDisabled(t *testing.T) {
	v := NewValidator([]string{"invoices"}, nil, sqlstore.NewDialect("sqlite"), 100)

	generated := v.Validate("q", "SELECT anything FROM invoices")
	if !generated.IsSafe {
		t.Errorf("nil column universe should disable the column check: %s", generated.RejectionReason)
	}
}

func TestValidateAggregationKeepsNoLimit(t *testing.T) {
	v := testValidator(nil)

	generated := v.Validate("q", "SELECT COUNT(*) FROM invoices")
	if !generated.IsSafe {
		t.Fatalf("unexpected rejection: %s", generated.RejectionReason)
	}
	if strings.Contains(generated.QueryText, "LIMIT") {
		t.Errorf("aggregation should not receive a limit: %s", generated.QueryText)
	}
}
