package git

import (
	"reflect"
	"testing"
)

const modifiedDiff = `diff --git a/main.go b/main.go
index 1234567..abcdefg 100644
--- a/main.go
+++ b/main.go
@@ -1,3 +1,4 @@
 package main
+import "fmt"
 func main() {
-	println("hi")
+	fmt.Println("hi")
`

func TestParseDiff(t *testing.T) {
	diff, err := ParseDiff(modifiedDiff)
	if err != nil {
		t.Fatalf("ParseDiff() error = %v", err)
	}

	if len(diff.Files) != 1 {
		t.Fatalf("len(Files) = %d, want 1", len(diff.Files))
	}

	file := diff.Files[0]
	if file.Path != "main.go" {
		t.Errorf("Path = %v, want main.go", file.Path)
	}
	if file.Status != FileModified {
		t.Errorf("Status = %v, want modified", file.Status)
	}
	if file.Additions != 2 || file.Deletions != 1 {
		t.Errorf("Additions/Deletions = %d/%d, want 2/1", file.Additions, file.Deletions)
	}
	if len(file.Hunks) != 1 {
		t.Fatalf("len(Hunks) = %d, want 1", len(file.Hunks))
	}
	if h := file.Hunks[0]; h.OldStart != 1 || h.NewLines != 4 {
		t.Errorf("hunk range = %+v", h)
	}
	if diff.Stats.Additions != 2 || diff.Stats.FilesChanged != 1 {
		t.Errorf("Stats = %+v", diff.Stats)
	}
}

func TestParseDiffAdded(t *testing.T) {
	diffText := `diff --git a/new.go b/new.go
new file mode 100644
index 0000000..1234567
--- /dev/null
+++ b/new.go
@@ -0,0 +1,3 @@
+package main
+
+func hello() {}
`

	diff, err := ParseDiff(diffText)
	if err != nil {
		t.Fatalf("ParseDiff() error = %v", err)
	}

	if diff.Files[0].Status != FileAdded {
		t.Errorf("Status = %v, want added", diff.Files[0].Status)
	}
	if diff.Files[0].Path != "new.go" {
		t.Errorf("Path = %v, want new.go", diff.Files[0].Path)
	}
	if diff.Files[0].Additions != 3 {
		t.Errorf("Additions = %d, want 3", diff.Files[0].Additions)
	}
}

func TestParseDiffDeleted(t *testing.T) {
	diffText := `diff --git a/old.go b/old.go
deleted file mode 100644
index 1234567..0000000
--- a/old.go
+++ /dev/null
@@ -1,3 +0,0 @@
-package main
-
-func old() {}
`

	diff, err := ParseDiff(diffText)
	if err != nil {
		t.Fatalf("ParseDiff() error = %v", err)
	}

	if diff.Files[0].Status != FileDeleted {
		t.Errorf("Status = %v, want deleted", diff.Files[0].Status)
	}
	if diff.Files[0].Path != "old.go" {
		t.Errorf("Path = %v, want old.go", diff.Files[0].Path)
	}
}

func TestParseDiffRenamed(t *testing.T) {
	diffText := `diff --git a/old.go b/new.go
similarity index 90%
rename from old.go
rename to new.go
index 1234567..abcdefg 100644
--- a/old.go
+++ b/new.go
@@ -1,2 +1,2 @@
 package main
-var x = 1
+var x = 2
`

	diff, err := ParseDiff(diffText)
	if err != nil {
		t.Fatalf("ParseDiff() error = %v", err)
	}

	f := diff.Files[0]
	if f.Status != FileRenamed || f.Path != "new.go" || f.OldPath != "old.go" {
		t.Errorf("file = %+v", f)
	}
}

func TestEmptyDiff(t *testing.T) {
	diff, err := ParseDiff("")
	if err != nil {
		t.Fatalf("ParseDiff() error = %v", err)
	}

	if len(diff.Files) != 0 {
		t.Errorf("len(Files) = %d, want 0", len(diff.Files))
	}
}

func TestParsePatch(t *testing.T) {
	patch := "@@ -1,2 +1,3 @@\n const a = 1;\n-const b = 2;\n+const b = 3;\n+const c = 4;\n"

	f, err := ParsePatch("src/a.ts", patch)
	if err != nil {
		t.Fatalf("ParsePatch() error = %v", err)
	}
	if f.Path != "src/a.ts" || f.Additions != 2 || f.Deletions != 1 {
		t.Errorf("file = %+v", f)
	}
	want := []string{"const b = 3;", "const c = 4;"}
	if got := addedContent(f.Hunks); !reflect.DeepEqual(got, want) {
		t.Errorf("added lines = %q, want %q", got, want)
	}
}

const renameOnlyDiff = `diff --git a/src/ui/Card.props.tsx b/src/ui/CardView.props.tsx
similarity index 100%
rename from src/ui/Card.props.tsx
rename to src/ui/CardView.props.tsx
`

const emptyNewFileDiff = `diff --git a/src/empty.ts b/src/empty.ts
new file mode 100644
index 0000000..e69de29
`

const modeOnlyDiff = `diff --git a/bin/run.sh b/bin/run.sh
old mode 100644
new mode 100755
`

func addedContent(hunks []Hunk) []string {
	var out []string
	for _, h := range hunks {
		for _, l := range h.Lines {
			if l.Type == LineAddition {
				out = append(out, l.Content)
			}
		}
	}
	return out
}

func additionContents(text string) []string {
	lines := Additions(text)
	if lines == nil {
		return nil
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Content
	}
	return out
}

func TestAdditions(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"blank", "  \n", nil},
		{"raw content", "line one\nline two\n", []string{"line one", "line two"}},
		{"hunk patch", "@@ -1 +1,2 @@\n keep\n+added\n", []string{"added"}},
		{"full diff", modifiedDiff, []string{`import "fmt"`, `	fmt.Println("hi")`}},
		{"rename only", renameOnlyDiff, nil},
		{"empty new file", emptyNewFileDiff, nil},
		{"mode only", modeOnlyDiff, nil},
		{"binary", "diff --git a/logo.png b/logo.png\nindex 1..2 100644\nBinary files a/logo.png and b/logo.png differ\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := additionContents(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Additions() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCountChanges(t *testing.T) {
	add, del := CountChanges(modifiedDiff)
	if add != 2 || del != 1 {
		t.Errorf("CountChanges(diff) = %d/%d, want 2/1", add, del)
	}

	add, del = CountChanges("a\nb\nc\n")
	if add != 3 || del != 0 {
		t.Errorf("CountChanges(raw) = %d/%d, want 3/0", add, del)
	}

	for name, text := range map[string]string{"rename": renameOnlyDiff, "empty new file": emptyNewFileDiff} {
		if add, del := CountChanges(text); add != 0 || del != 0 {
			t.Errorf("CountChanges(%s) = %d/%d, want 0/0", name, add, del)
		}
	}
}

func TestParseDiffGitLine(t *testing.T) {
	oldPath, newPath := parseDiffGitLine("diff --git a/src/x.go b/src/y.go")
	if oldPath != "src/x.go" || newPath != "src/y.go" {
		t.Errorf("got %q, %q", oldPath, newPath)
	}

	if o, n := parseDiffGitLine("not a header"); o != "" || n != "" {
		t.Errorf("expected empty paths, got %q, %q", o, n)
	}
}

func TestAdditionsLineNumbers(t *testing.T) {
	lines := Additions(modifiedDiff)
	if len(lines) != 2 {
		t.Fatalf("len(Additions) = %d, want 2", len(lines))
	}
	if lines[0].NewNumber != 2 || lines[1].NewNumber != 4 {
		t.Errorf("line numbers = %d, %d, want 2, 4", lines[0].NewNumber, lines[1].NewNumber)
	}

	raw := Additions("a\nb\n")
	if len(raw) != 2 || raw[1].NewNumber != 2 {
		t.Errorf("raw Additions = %+v", raw)
	}
}
