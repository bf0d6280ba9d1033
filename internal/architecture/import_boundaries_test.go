package architecture_test

import (
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const modulePath = "govreport"

type layerRule struct {
	sourcePrefix string
	forbidden    []string
	hint         string
}

var (
	outer = []string{
		modulePath + "/internal/api",
		modulePath + "/internal/app",
		modulePath + "/internal/middleware",
		modulePath + "/internal/config",
		modulePath + "/cmd",
	}
	adapters = []string{
		modulePath + "/internal/db",
		modulePath + "/internal/warehouse",
		modulePath + "/internal/blob",
		modulePath + "/internal/queue",
		modulePath + "/internal/cache",
	}
)

func join(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

var rules = []layerRule{
	{
		sourcePrefix: modulePath + "/internal/domain",
		forbidden:    join(outer, adapters, []string{modulePath + "/internal/service", modulePath + "/internal/formula", modulePath + "/internal/sqlgen"}),
		hint:         "domain may only import domain",
	},
	{
		sourcePrefix: modulePath + "/internal/formula",
		forbidden:    join(outer, adapters, []string{modulePath + "/internal/service", modulePath + "/internal/schema", modulePath + "/internal/sqlgen"}),
		hint:         "the formula language depends on domain only",
	},
	{
		sourcePrefix: modulePath + "/internal/validate",
		forbidden:    join(outer, adapters, []string{modulePath + "/internal/service", modulePath + "/internal/sqlgen"}),
		hint:         "validation depends on schema, formula and domain",
	},
	{
		sourcePrefix: modulePath + "/internal/planner",
		forbidden:    join(outer, adapters, []string{modulePath + "/internal/service", modulePath + "/internal/sqlgen"}),
		hint:         "the join planner depends on schema and domain",
	},
	{
		sourcePrefix: modulePath + "/internal/sqlgen",
		forbidden:    join(outer, adapters, []string{modulePath + "/internal/service"}),
		hint:         "compilation is pure and never reaches storage",
	},
	{
		sourcePrefix: modulePath + "/internal/service",
		forbidden:    join(outer, []string{modulePath + "/internal/db"}),
		hint:         "services depend on domain ports, not on the metastore",
	},
	{
		sourcePrefix: modulePath + "/internal/api",
		forbidden: []string{
			modulePath + "/internal/db",
			modulePath + "/internal/warehouse",
			modulePath + "/internal/queue",
			modulePath + "/internal/cache",
			modulePath + "/internal/app",
			modulePath + "/cmd",
		},
		hint: "api should depend on service/domain/api packages",
	},
	{
		sourcePrefix: modulePath + "/internal/db",
		forbidden:    join(outer, []string{modulePath + "/internal/service"}),
		hint:         "db should depend on domain and db-local packages",
	},
	{
		sourcePrefix: modulePath + "/internal/middleware",
		forbidden:    join(adapters, []string{modulePath + "/internal/service", modulePath + "/internal/api"}),
		hint:         "middleware should depend on domain and middleware-local packages",
	},
}

func TestImportBoundaries(t *testing.T) {
	root := repoRootDir()
	files, err := collectGoFiles(filepath.Join(root, "internal"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	violations := make([]string, 0)
	fset := token.NewFileSet()

	for _, file := range files {
		if shouldSkipFile(file) {
			continue
		}

		sourcePkg := packageImportPath(root, file)
		rule, ok := findRule(sourcePkg)
		if !ok {
			continue
		}

		parsed, parseErr := parser.ParseFile(fset, file, nil, parser.ImportsOnly)
		require.NoErrorf(t, parseErr, "parse imports for %s", file)

		for _, imp := range parsed.Imports {
			importPath := strings.Trim(imp.Path.Value, "\"")
			if !strings.HasPrefix(importPath, modulePath+"/") {
				continue
			}
			if violatesRule(importPath, rule.forbidden) {
				violations = append(violations,
					"governance: "+sourcePkg+" imports "+importPath+" via "+file+"; allowed direction: "+rule.hint,
				)
			}
		}
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		t.Fatalf("%s", strings.Join(violations, "\n"))
	}
}

// Production code never imports test helpers.
func TestTestutilIsTestOnly(t *testing.T) {
	root := repoRootDir()
	files, err := collectGoFiles(root)
	require.NoError(t, err)

	fset := token.NewFileSet()
	for _, file := range files {
		if strings.HasSuffix(file, "_test.go") || strings.Contains(filepath.ToSlash(file), "/internal/testutil/") {
			continue
		}
		parsed, err := parser.ParseFile(fset, file, nil, parser.ImportsOnly)
		require.NoErrorf(t, err, "parse imports for %s", file)
		for _, imp := range parsed.Imports {
			require.NotEqualf(t, `"`+modulePath+`/internal/testutil"`, imp.Path.Value, "%s imports testutil", file)
		}
	}
}

func repoRootDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}

func collectGoFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") || name == "testdata") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".go") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func shouldSkipFile(path string) bool {
	return strings.HasSuffix(filepath.Base(path), "_test.go")
}

func packageImportPath(root, file string) string {
	rel, err := filepath.Rel(root, filepath.Dir(file))
	if err != nil {
		return ""
	}
	return modulePath + "/" + filepath.ToSlash(rel)
}

func findRule(sourcePkg string) (layerRule, bool) {
	for _, rule := range rules {
		if hasPathPrefix(sourcePkg, rule.sourcePrefix) {
			return rule, true
		}
	}
	return layerRule{}, false
}

func violatesRule(importPath string, forbidden []string) bool {
	for _, prefix := range forbidden {
		if hasPathPrefix(importPath, prefix) {
			return true
		}
	}
	return false
}

func hasPathPrefix(value string, prefix string) bool {
	return value == prefix || strings.HasPrefix(value, prefix+"/")
}
