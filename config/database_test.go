package config

import (
	"strings"
	"testing"
)

func TestDatabaseDSN(t *testing.T) {
	cases := []struct {
		host     string
		expected string
	}{
		{"db.internal", "tcp(db.internal:3306)/clearview"},
		{"/cloudsql/proj:region:inst", "unix(/cloudsql/proj:region:inst)/clearview"},
	}
	for _, tc := range cases {
		t.Setenv("DB_USER", "svc")
		t.Setenv("DB_PASSWORD", "secret")
		t.Setenv("DB_HOST", tc.host)
		t.Setenv("DB_PORT", "3306")
		t.Setenv("DB_NAME", "clearview")

		dsn := databaseDSN()
		if !strings.HasPrefix(dsn, "svc:secret@"+tc.expected) || !strings.Contains(dsn, "parseTime=true") {
			t.Fatalf("host %q: unexpected dsn %q", tc.host, dsn)
		}
	}
}
