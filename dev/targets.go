//go:build targ

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/akedrou/textdiff"
	"github.com/toejough/go-reorder"
	"github.com/toejough/targ"
	"github.com/toejough/targ/file"
	"github.com/toejough/targ/sh"
)

// Check runs all checks & fixes on the code, in order of correctness.
func Check() error {
	fmt.Println("Checking...")

	return targ.Deps(
		Tidy,          // clean up the module dependencies
		Modernize,     // no use doing anything else to old code patterns
		CheckCoverage, // does our code work?
		ReorderDecls,  // linter will yell about declaration order if not correct
		Lint,
	)
}

// CheckCoverage checks that every function meets the minimum coverage.
func CheckCoverage() error {
	fmt.Println("Checking coverage...")

	if err := targ.Deps(Test); err != nil {
		return err
	}

	out, err := output("go", "tool", "cover", "-func=coverage.out")
	if err != nil {
		return err
	}

	percentPattern := regexp.MustCompile(`(\d+\.\d)%$`)
	funcs := []funcCoverage{}

	for line := range strings.SplitSeq(out, "\n") {
		if strings.HasPrefix(line, "total:") {
			continue
		}

		found := percentPattern.FindStringSubmatch(line)
		if found == nil {
			continue
		}

		percent, err := strconv.ParseFloat(found[1], 64)
		if err != nil {
			return err
		}

		funcs = append(funcs, funcCoverage{line: line, coverage: percent})
	}

	if len(funcs) == 0 {
		return errNoCoverage
	}

	slices.SortStableFunc(funcs, func(a, b funcCoverage) int {
		switch {
		case a.coverage < b.coverage:
			return -1
		case a.coverage > b.coverage:
			return 1
		default:
			return 0
		}
	})

	for _, fc := range funcs {
		fmt.Println(fc.line)
	}

	const minimum = 80.0
	if worst := funcs[0]; worst.coverage < minimum {
		return fmt.Errorf("function coverage was less than the limit of %.1f:\n  %s", minimum, worst.line)
	}

	return nil
}

// CheckForFail runs all checks on the code for determining whether any fail.
func CheckForFail() error {
	fmt.Println("Checking...")

	// Checks from fastest to slowest
	return targ.Deps(
		ReorderDeclsCheck,
		LintForFail,
		TestForFail,
		CheckCoverage,
	)
}

// Clean cleans up the dev env.
func Clean() {
	fmt.Println("Cleaning...")
	os.Remove("coverage.out")
}

// Fuzz runs the property tests with more checks than the default.
func Fuzz() error {
	fmt.Println("Running property tests...")

	return sh.Run("go", "test", "-race", "-count=1", "./...", "-rapid.checks=1000")
}

// Lint lints the codebase.
func Lint() error {
	fmt.Println("Linting...")
	return sh.Run("golangci-lint", "run")
}

// LintForFail lints the codebase purely to find out whether anything fails.
func LintForFail() error {
	fmt.Println("Linting to check for overall pass/fail...")

	return sh.Run(
		"golangci-lint", "run",
		"--fix=false",
		"--max-issues-per-linter=1",
		"--max-same-issues=1",
		"--allow-parallel-runners",
	)
}

// Modernize updates the codebase to use modern Go patterns.
func Modernize() error {
	fmt.Println("Modernizing codebase...")

	return sh.Run("go", "run", "golang.org/x/tools/go/analysis/passes/modernize/cmd/modernize@latest",
		"-fix", "./...")
}

// Mutate runs the mutation tests.
func Mutate() error {
	fmt.Println("Running mutation tests...")

	if err := targ.Deps(TestForFail); err != nil {
		return err
	}

	return sh.Run(
		"go",
		"test",
		"-timeout=6000s",
		"-tags=mutation",
		"-ooze.v",
		"./dev/...",
		"-run=TestMutation",
	)
}

// ReorderDecls reorders declarations in Go files per conventions.
func ReorderDecls() error {
	fmt.Println("Reordering declarations...")

	files, err := sourceFiles(".")
	if err != nil {
		return err
	}

	reorderedCount := 0

	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		reordered, err := reorder.Source(string(content))
		if err != nil {
			fmt.Printf("Warning: failed to reorder %s: %v\n", path, err)

			continue
		}

		if string(content) == reordered {
			continue
		}

		if err := os.WriteFile(path, []byte(reordered), 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}

		fmt.Printf("  Reordered: %s\n", path)
		reorderedCount++
	}

	fmt.Printf("Reordered %d file(s).\n", reorderedCount)

	return nil
}

// ReorderDeclsCheck reports files that need reordering without modifying them.
func ReorderDeclsCheck() error {
	fmt.Println("Checking declaration order...")

	files, err := sourceFiles(".")
	if err != nil {
		return err
	}

	outOfOrder := 0

	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		sectionOrder, err := reorder.AnalyzeSectionOrder(string(content))
		if err != nil {
			fmt.Printf("Warning: failed to analyze %s: %v\n", path, err)

			continue
		}

		reordered, err := reorder.Source(string(content))
		if err != nil || string(content) == reordered {
			continue
		}

		outOfOrder++

		fmt.Printf("\n%s:\n", path)

		for idx, section := range sectionOrder.Sections {
			if section.Expected != idx+1 {
				fmt.Printf("  %s is #%d, should be #%d\n", section.Name, idx+1, section.Expected)
			}
		}

		fmt.Printf("\n%s\n", textdiff.Unified(path+" (current)", path+" (reordered)", string(content), reordered))
	}

	if outOfOrder > 0 {
		return fmt.Errorf("%d file(s) need reordering, run 'targ reorder-decls' to fix", outOfOrder)
	}

	fmt.Printf("All %d files are correctly ordered.\n", len(files))

	return nil
}

// Test runs the unit tests with coverage.
func Test() error {
	fmt.Println("Running unit tests...")

	// Use -count=1 to disable caching so coverage is regenerated
	return sh.Run(
		"go",
		"test",
		"-timeout=2m",
		"-race",
		"-count=1",
		"-coverprofile=coverage.out",
		"-coverpkg=./...",
		"./...",
	)
}

// TestForFail runs the unit tests purely to find out whether any fail.
func TestForFail() error {
	fmt.Println("Running unit tests for overall pass/fail...")

	return sh.Run(
		"go",
		"test",
		"-timeout=30s",
		"./...",
		"-failfast",
	)
}

// Tidy tidies up go.mod.
func Tidy() error {
	fmt.Println("Tidying go.mod...")
	return sh.Run("go", "mod", "tidy")
}

// Watch re-runs Check whenever files change.
func Watch(ctx context.Context) error {
	fmt.Println("Watching...")

	return file.Watch(ctx, []string{"**/*.go", "**/*.toml"}, file.WatchOptions{}, func(changes file.ChangeSet) error {
		if !hasRelevantChanges(changes) {
			return nil
		}

		fmt.Println("Change detected...")

		targ.ResetDeps() // Clear execution cache so targets run again

		if err := Check(); err != nil {
			fmt.Println("continuing to watch after check failure (see errors above)")
		} else {
			fmt.Println("continuing to watch after all checks passed!")
		}

		return nil // Don't stop watching on error
	})
}

var errNoCoverage = errors.New("no function coverage found in coverage.out")

type funcCoverage struct {
	line     string
	coverage float64
}

// hasRelevantChanges returns true if the changeset contains files we care about.
// Coverage output is written by Check itself and is ignored.
func hasRelevantChanges(changes file.ChangeSet) bool {
	allFiles := slices.Concat(changes.Added, changes.Removed, changes.Modified)

	return slices.ContainsFunc(allFiles, func(path string) bool {
		return !strings.HasSuffix(path, "coverage.out")
	})
}

func isGeneratedFile(path string) (bool, error) {
	handle, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer handle.Close()

	buf := make([]byte, 200)

	n, err := handle.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return bytes.Contains(buf[:n], []byte("Code generated")), nil
}

func output(command string, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd := exec.Command(command, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = buf
	cmd.Stderr = os.Stderr
	err := cmd.Run()

	return strings.TrimSuffix(buf.String(), "\n"), err
}

// sourceFiles lists the hand-written Go files under root, skipping hidden, vendored,
// and underscore-prefixed directories.
func sourceFiles(root string) ([]string, error) {
	files := []string{}

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("unable to walk %s: %w", path, err)
		}

		name := entry.Name()
		if entry.IsDir() {
			if path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor") {
				return filepath.SkipDir
			}

			return nil
		}

		if filepath.Ext(name) != ".go" {
			return nil
		}

		generated, err := isGeneratedFile(path)
		if err != nil {
			return err
		}

		if !generated {
			files = append(files, path)
		}

		return nil
	})

	return files, err
}
