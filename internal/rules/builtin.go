package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/JNZader/prgate/internal/git"
	"github.com/JNZader/prgate/internal/pr"
)

// builtins maps rule IDs to their checks. Metadata (severity, message,
// patterns) lives in defaults/builtin.yaml.
var builtins = map[string]checkFunc{
	"SIZE-001": checkSizeFail,
	"SIZE-002": checkSizeWarn,
	"SIZE-003": checkSizeInfo,
	"DESC-001": checkDescription,
	"DESC-002": checkVisualEvidence,
	"TS-001":   checkUntypedProps,
	"TEST-001": checkMissingTests,
	"DEP-001":  checkManifestWithoutLock,
	"DEP-002":  checkLockWithoutManifest,
	"TS-002":   checkExplicitAny,
	"TS-003":   checkSuppressions,
	"IMP-001":  checkWholeLibraryImport,
	"SEC-001":  checkSecrets,
	"LOG-001":  checkConsoleCalls,
	"SUM-001":  checkSummary,
}

// pinnedSeverity fixes the severity of checks that must never move the
// decision.
var pinnedSeverity = map[string]Severity{
	"SUM-001": SeverityInfo,
}

type vars = map[string]any

func sizeVars(s *pr.Snapshot, limit int) vars {
	return vars{
		"total":     s.TotalLines(),
		"additions": s.Additions(),
		"deletions": s.Deletions(),
		"limit":     limit,
	}
}

func checkSizeFail(r Rule, s *pr.Snapshot, e *env) ([]Finding, error) {
	if s.TotalLines() <= e.SizeFail {
		return nil, nil
	}
	return []Finding{r.finding("", 0, sizeVars(s, e.SizeFail))}, nil
}

func checkSizeWarn(r Rule, s *pr.Snapshot, e *env) ([]Finding, error) {
	total := s.TotalLines()
	if total <= e.SizeWarn || total > e.SizeFail {
		return nil, nil
	}
	return []Finding{r.finding("", 0, sizeVars(s, e.SizeWarn))}, nil
}

func checkSizeInfo(r Rule, s *pr.Snapshot, e *env) ([]Finding, error) {
	total := s.TotalLines()
	if total <= e.SizeInfo || total > e.SizeWarn {
		return nil, nil
	}
	return []Finding{r.finding("", 0, sizeVars(s, e.SizeInfo))}, nil
}

func checkDescription(r Rule, s *pr.Snapshot, e *env) ([]Finding, error) {
	n := DescriptionLength(s.Description())
	if n >= e.MinDescription {
		return nil, nil
	}
	return []Finding{r.finding("", 0, vars{"length": n, "min": e.MinDescription})}, nil
}

func checkVisualEvidence(r Rule, s *pr.Snapshot, _ *env) ([]Finding, error) {
	desc := s.Description()
	if !MentionsVisualChange(desc) || HasVisualEvidence(desc) {
		return nil, nil
	}
	return []Finding{r.finding("", 0, nil)}, nil
}

func checkUntypedProps(r Rule, s *pr.Snapshot, _ *env) ([]Finding, error) {
	var out []Finding
	eachChanged(r, s, func(p string, lines []git.Line) {
		if !IsComponentFile(p) {
			return
		}
		text := contents(lines)
		if UsesProps(text) && !DeclaresPropsType(text) {
			out = append(out, r.finding(p, 0, vars{"file": p}))
		}
	})
	return out, nil
}

func checkMissingTests(r Rule, s *pr.Snapshot, _ *env) ([]Finding, error) {
	var sources, tests int
	for _, p := range s.Changed() {
		switch {
		case IsTestFile(p):
			tests++
		case IsSourceFile(p):
			sources++
		}
	}
	if sources == 0 || tests > 0 {
		return nil, nil
	}
	return []Finding{r.finding("", 0, vars{"sources": sources})}, nil
}

func dependencyChanges(s *pr.Snapshot) (manifests, locks []string) {
	for _, p := range s.Touched() {
		switch {
		case IsManifest(p):
			manifests = append(manifests, p)
		case IsLockfile(p):
			locks = append(locks, p)
		}
	}
	return manifests, locks
}

func checkManifestWithoutLock(r Rule, s *pr.Snapshot, _ *env) ([]Finding, error) {
	manifests, locks := dependencyChanges(s)
	if len(manifests) == 0 || len(locks) > 0 {
		return nil, nil
	}
	return []Finding{r.finding(manifests[0], 0, vars{"file": manifests[0]})}, nil
}

func checkLockWithoutManifest(r Rule, s *pr.Snapshot, _ *env) ([]Finding, error) {
	manifests, locks := dependencyChanges(s)
	if len(locks) == 0 || len(manifests) > 0 {
		return nil, nil
	}
	return []Finding{r.finding(locks[0], 0, vars{"file": locks[0]})}, nil
}

// perFileCount reports one finding for every file where count is positive.
func perFileCount(r Rule, s *pr.Snapshot, count func([]string) int) []Finding {
	var out []Finding
	eachChanged(r, s, func(p string, lines []git.Line) {
		if n := count(contents(lines)); n > 0 {
			out = append(out, r.finding(p, 0, vars{"file": p, "count": n}))
		}
	})
	return out
}

func checkExplicitAny(r Rule, s *pr.Snapshot, _ *env) ([]Finding, error) {
	return perFileCount(r, s, CountExplicitAny), nil
}

func checkSuppressions(r Rule, s *pr.Snapshot, _ *env) ([]Finding, error) {
	return perFileCount(r, s, CountSuppressions), nil
}

func checkConsoleCalls(r Rule, s *pr.Snapshot, _ *env) ([]Finding, error) {
	return perFileCount(r, s, CountConsoleCalls), nil
}

func checkWholeLibraryImport(r Rule, s *pr.Snapshot, e *env) ([]Finding, error) {
	if e.imports == nil {
		return nil, nil
	}

	var out []Finding
	eachChanged(r, s, func(p string, lines []git.Line) {
		seen := map[string]bool{}
		var libs []string
		for _, l := range lines {
			if lib, ok := e.imports.Match(l.Content); ok && !seen[lib] {
				seen[lib] = true
				libs = append(libs, lib)
			}
		}
		if len(libs) > 0 {
			out = append(out, r.finding(p, 0, vars{"file": p, "library": strings.Join(libs, ", ")}))
		}
	})
	return out, nil
}

// checkSecrets never puts the matched value in the message.
func checkSecrets(r Rule, s *pr.Snapshot, e *env) ([]Finding, error) {
	var out []Finding
	eachChanged(r, s, func(p string, lines []git.Line) {
		for _, l := range lines {
			if LooksLikeSecret(l.Content, e.SecretMinLength) {
				out = append(out, r.finding(p, l.NewNumber, vars{"file": p, "line": l.NewNumber}))
			}
		}
	})
	return out, nil
}

// Summary labels by file category.
var categoryLabels = map[string]string{
	FileSource: "código",
	FileTest:   "testes",
	FileStyle:  "estilos",
	FileConfig: "config",
	FileDocs:   "docs",
	FileOther:  "outros",
}

func checkSummary(r Rule, s *pr.Snapshot, _ *env) ([]Finding, error) {
	counts := map[string]int{}
	for _, p := range s.Touched() {
		counts[ClassifyFile(p)]++
	}

	var parts []string
	for _, c := range FileCategories {
		if counts[c] > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", categoryLabels[c], counts[c]))
		}
	}
	breakdown := strings.Join(parts, ", ")
	if breakdown == "" {
		breakdown = "nenhum arquivo"
	}

	return []Finding{r.finding("", 0, vars{
		"modified":   len(s.Modified()),
		"created":    len(s.Created()),
		"deleted":    len(s.Deleted()),
		"additions":  s.Additions(),
		"deletions":  s.Deletions(),
		"categories": breakdown,
	})}, nil
}

// checkMatch backs custom rules: one finding per file with at least one
// added line matching the rule's expression.
func checkMatch(r Rule, s *pr.Snapshot, e *env) ([]Finding, error) {
	if e.match == nil {
		return nil, fmt.Errorf("rule %s has no match expression", r.ID)
	}

	var out []Finding
	eachChanged(r, s, func(p string, lines []git.Line) {
		n, first := 0, 0
		for _, l := range lines {
			if e.match.MatchString(l.Content) {
				if n == 0 {
					first = l.NewNumber
				}
				n++
			}
		}
		if n > 0 {
			out = append(out, r.finding(p, first, vars{"file": p, "count": n, "line": first}))
		}
	})
	return out, nil
}

// eachChanged calls fn with the added lines of every modified or created
// file the rule applies to, in snapshot order. A file whose diff could not
// be resolved is seen as empty.
func eachChanged(r Rule, s *pr.Snapshot, fn func(path string, lines []git.Line)) {
	for _, p := range s.Changed() {
		if !r.AppliesTo(p) {
			continue
		}
		text, _ := s.DiffOf(p)
		fn(p, git.Additions(text))
	}
}

func contents(lines []git.Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Content
	}
	return out
}

func builtinIDs() []string {
	ids := make([]string, 0, len(builtins))
	for id := range builtins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
