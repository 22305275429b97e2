package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitStatementCases(t *testing.T) {
	var cases = []struct {
		text   string
		expect []string
	}{
		{"", nil},
		{"  -- just a comment\n /* and another */ ", nil},
		{"SELECT 1", []string{"SELECT 1"}},
		{"SELECT 1; SELECT 2;", []string{"SELECT 1;", "SELECT 2;"}},
		{"SELECT 1;;  ;SELECT 2", []string{"SELECT 1;", "SELECT 2"}},
		{`INSERT INTO t VALUES('a;b', "c;d", [e;f], 'it''s;');`,
			[]string{`INSERT INTO t VALUES('a;b', "c;d", [e;f], 'it''s;');`}},
		{"SELECT 1; -- trailing; comment\nSELECT 2 /* ; */;",
			[]string{"SELECT 1;", "-- trailing; comment\nSELECT 2 /* ; */;"}},
		{`CREATE TRIGGER tr AFTER INSERT ON t BEGIN
			INSERT INTO log VALUES(new.a);
			UPDATE c SET n = CASE WHEN n > 10 THEN 0 ELSE n + 1 END;
		END; SELECT 3;`, []string{`CREATE TRIGGER tr AFTER INSERT ON t BEGIN
			INSERT INTO log VALUES(new.a);
			UPDATE c SET n = CASE WHEN n > 10 THEN 0 ELSE n + 1 END;
		END;`, "SELECT 3;"}},
		{"create temp trigger x after delete on t begin delete from u; end;select 4",
			[]string{"create temp trigger x after delete on t begin delete from u; end;", "select 4"}},
		// A table named "trigger" is not a trigger.
		{`CREATE TABLE "trigger"(a); SELECT 5;`, []string{`CREATE TABLE "trigger"(a);`, "SELECT 5;"}},
	}
	for _, tc := range cases {
		require.Equal(t, tc.expect, SplitStatements(tc.text), tc.text)
	}
}
