package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSource(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLintFileReportsMissingMarkers(t *testing.T) {
	path := writeSource(t, t.TempDir(), "q.go", "package q\n\n"+
		"const cols = `id, name`\n\n"+
		"const QGood = `--sql 6f5a5787-d218-4c79-ba3c-6491f9dc67cd\nselect ` + cols + ` from t;`\n\n"+
		"const QBad = `select ` + cols + ` from t;`\n\n"+
		"const QPlain = \"delete from t\"\n")

	l := newLinter()
	if err := l.lintFile(path); err != nil {
		t.Fatalf("lintFile: %v", err)
	}
	names := map[string]bool{}
	for _, v := range l.violations {
		names[v.name] = true
	}
	if len(l.violations) != 2 || !names["QBad"] || !names["QPlain"] {
		t.Fatalf("violations = %+v", l.violations)
	}
}

func TestLinterReportsReusedMarkerAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "a.go", "package q\n\nconst QFirst = `--sql 9ade3451-2c51-4678-a31a-d801df0ff7d9\nselect 1;`\n")
	writeSource(t, dir, "b.go", "package q\n\nconst QSecond = `--sql 9ade3451-2c51-4678-a31a-d801df0ff7d9\nselect 2;`\n")
	writeSource(t, dir, "b_test.go", "package q\n\nconst QTest = `select 3;`\n")

	files, err := collect([]string{dir})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %v", files)
	}
	l := newLinter()
	for _, f := range files {
		if err := l.lintFile(f); err != nil {
			t.Fatalf("lintFile(%s): %v", f, err)
		}
	}
	if len(l.violations) != 1 {
		t.Fatalf("violations = %+v", l.violations)
	}
	v := l.violations[0]
	if v.name != "QSecond" || !strings.Contains(v.message, "QFirst") {
		t.Fatalf("violation = %s", v)
	}
}

func TestRepositorySQLIsClean(t *testing.T) {
	files, err := collect([]string{"../../sqlinline", "../../adapter"})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	l := newLinter()
	for _, f := range files {
		if err := l.lintFile(f); err != nil {
			t.Fatalf("lintFile(%s): %v", f, err)
		}
	}
	for _, v := range l.violations {
		t.Errorf("%s", v)
	}
}
