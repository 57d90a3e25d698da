package rules

import (
	"path"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Heuristic predicates over diff text, file paths and descriptions. Each is
// independent of the rule that uses it.

var (
	propsUsageRe   = regexp.MustCompile(`\bprops\b`)
	propsTypeRe    = regexp.MustCompile(`\b(?:interface|type)\s+\w*Props\b`)
	explicitAnyRe  = regexp.MustCompile(`:\s*any\b|\bas\s+any\b|<\s*any\s*>`)
	suppressionRe  = regexp.MustCompile(`@ts-(?:ignore|nocheck)\b`)
	consoleCallRe  = regexp.MustCompile(`\bconsole\.(?:log|debug|info|warn|error|trace|dir)\s*\(`)
	secretKeyRe    = regexp.MustCompile(`(?i)api[_-]?key|secret|passw(?:or)?d|token`)
	quotedRe       = regexp.MustCompile("\"[^\"]*\"|'[^']*'|`[^`]*`")
	uiWordRe       = regexp.MustCompile(`\bUI\b`)
	visualRe       = regexp.MustCompile(`(?i)visual`)
	screenshotRe   = regexp.MustCompile(`(?i)screenshot`)
	testPathRe     = regexp.MustCompile(`(?:^|/)(?:__tests__|__mocks__|tests?|e2e|spec)/|\.(?:test|spec|e2e)\.[^/]+$|_test\.[^/]+$|(?:^|/)test_[^/]+\.py$`)
	configNameRe   = regexp.MustCompile(`^\.|\.config\.[^.]+$|^(?:Dockerfile|Makefile)$`)
	identifierExpr = `[\w$]+`
)

// UsesProps reports whether any line references a props object.
func UsesProps(lines []string) bool {
	return anyLineMatches(propsUsageRe, lines)
}

// DeclaresPropsType reports whether any line declares an interface or type
// alias whose name ends in Props.
func DeclaresPropsType(lines []string) bool {
	return anyLineMatches(propsTypeRe, lines)
}

// CountExplicitAny counts explicit any annotations and casts.
func CountExplicitAny(lines []string) int {
	return countMatches(explicitAnyRe, lines)
}

// CountSuppressions counts @ts-ignore and @ts-nocheck directives.
func CountSuppressions(lines []string) int {
	return countMatches(suppressionRe, lines)
}

// CountConsoleCalls counts console logging calls.
func CountConsoleCalls(lines []string) int {
	return countMatches(consoleCallRe, lines)
}

// LooksLikeSecret reports whether line names a credential and holds a
// quoted literal at least minLen characters long, quotes included.
func LooksLikeSecret(line string, minLen int) bool {
	if !secretKeyRe.MatchString(line) {
		return false
	}
	for _, lit := range quotedRe.FindAllString(line, -1) {
		if utf8.RuneCountInString(lit) >= minLen {
			return true
		}
	}
	return false
}

// ImportMatcher detects imports that pull a whole utility library instead
// of named members.
type ImportMatcher struct {
	importRe  *regexp.Regexp
	requireRe *regexp.Regexp
}

// NewImportMatcher builds a matcher for the given package names. It returns
// nil when libs is empty.
func NewImportMatcher(libs []string) *ImportMatcher {
	quoted := make([]string, 0, len(libs))
	for _, l := range libs {
		if l = strings.TrimSpace(l); l != "" {
			quoted = append(quoted, regexp.QuoteMeta(l))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	alt := strings.Join(quoted, "|")

	return &ImportMatcher{
		// import _ from 'lodash', import * as R from 'ramda', import _, { x } from 'lodash'
		importRe: regexp.MustCompile(`^\s*import\s+(?:\*\s*as\s+` + identifierExpr + `|` + identifierExpr + `)\s*(?:,\s*\{[^}]*\}\s*)?from\s*['"](` + alt + `)['"]`),
		// const _ = require('lodash')
		requireRe: regexp.MustCompile(`\b(?:const|let|var)\s+` + identifierExpr + `\s*=\s*require\s*\(\s*['"](` + alt + `)['"]\s*\)`),
	}
}

// Match returns the library a line imports whole, if any.
func (m *ImportMatcher) Match(line string) (string, bool) {
	if m == nil {
		return "", false
	}
	if sm := m.importRe.FindStringSubmatch(line); sm != nil {
		return sm[1], true
	}
	if sm := m.requireRe.FindStringSubmatch(line); sm != nil {
		return sm[1], true
	}
	return "", false
}

// MentionsVisualChange reports whether a description talks about UI or
// visual changes. "UI" must be a whole, upper-case word.
func MentionsVisualChange(text string) bool {
	return uiWordRe.MatchString(text) || visualRe.MatchString(text)
}

// HasVisualEvidence reports whether a description mentions screenshots or
// embeds an image.
func HasVisualEvidence(text string) bool {
	return screenshotRe.MatchString(text) || HasImageMarker(text)
}

// HasImageMarker reports whether text embeds an image in markdown or HTML.
func HasImageMarker(text string) bool {
	return strings.Contains(text, "![") || strings.Contains(text, "<img")
}

// DescriptionLength is the length of a description in characters, ignoring
// surrounding whitespace.
func DescriptionLength(text string) int {
	return utf8.RuneCountInString(strings.TrimSpace(text))
}

var sourceExts = map[string]bool{
	".ts": true, ".tsx": true, ".js": true, ".jsx": true, ".mjs": true, ".cjs": true,
	".vue": true, ".svelte": true, ".go": true, ".py": true, ".java": true, ".kt": true,
	".rb": true, ".rs": true, ".cs": true, ".php": true, ".swift": true, ".scala": true,
}

var lockfiles = map[string]bool{
	"package-lock.json":   true,
	"npm-shrinkwrap.json": true,
	"yarn.lock":           true,
	"pnpm-lock.yaml":      true,
	"bun.lockb":           true,
}

// IsTestFile reports whether p looks like a test file.
func IsTestFile(p string) bool {
	return testPathRe.MatchString(p)
}

// IsSourceFile reports whether p is non-test program source.
func IsSourceFile(p string) bool {
	if IsTestFile(p) || strings.HasSuffix(p, ".d.ts") {
		return false
	}
	return sourceExts[strings.ToLower(path.Ext(p))]
}

// IsComponentFile reports whether p is a JSX/TSX component.
func IsComponentFile(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	return ext == ".tsx" || ext == ".jsx"
}

// IsManifest reports whether p is a package.json manifest.
func IsManifest(p string) bool {
	return path.Base(p) == "package.json"
}

// IsLockfile reports whether p is a package manager lockfile.
func IsLockfile(p string) bool {
	return lockfiles[path.Base(p)]
}

// File categories used by the summary.
const (
	FileSource = "source"
	FileTest   = "test"
	FileStyle  = "style"
	FileConfig = "config"
	FileDocs   = "docs"
	FileOther  = "other"
)

// FileCategories lists categories in report order.
var FileCategories = []string{FileSource, FileTest, FileStyle, FileConfig, FileDocs, FileOther}

// ClassifyFile assigns p to one of FileCategories.
func ClassifyFile(p string) string {
	base := path.Base(p)
	ext := strings.ToLower(path.Ext(p))

	switch {
	case IsTestFile(p):
		return FileTest
	case IsSourceFile(p):
		return FileSource
	}

	switch ext {
	case ".css", ".scss", ".sass", ".less", ".styl":
		return FileStyle
	case ".md", ".mdx", ".rst", ".txt", ".adoc":
		return FileDocs
	case ".json", ".yaml", ".yml", ".toml", ".ini", ".env", ".lock", ".lockb":
		return FileConfig
	}
	if configNameRe.MatchString(base) {
		return FileConfig
	}
	if strings.HasPrefix(p, "docs/") {
		return FileDocs
	}
	return FileOther
}

func anyLineMatches(re *regexp.Regexp, lines []string) bool {
	for _, l := range lines {
		if re.MatchString(l) {
			return true
		}
	}
	return false
}

func countMatches(re *regexp.Regexp, lines []string) int {
	n := 0
	for _, l := range lines {
		n += len(re.FindAllStringIndex(l, -1))
	}
	return n
}
