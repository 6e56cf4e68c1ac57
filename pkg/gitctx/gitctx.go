package gitctx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-git/go-git/v5"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultLockFiles are dependency lock files excluded from diff context by
// default; their churn drowns out the interesting changes.
var DefaultLockFiles = []string{"go.sum", "package-lock.json", "yarn.lock", "pnpm-lock.yaml", "Cargo.lock"}

// IsRepository reports whether the current directory is a git repository.
func IsRepository(ctx context.Context) bool {
	_, err := git.PlainOpen(".")
	return err == nil
}

// isBinary checks if the provided data is binary by scanning for a null
// byte. A simple heuristic that works in many cases.
func isBinary(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	return bytes.IndexByte(data, 0) != -1
}

// StagedDiff returns a unified diff of staged changes by comparing the HEAD
// tree against the working directory. Binary files are skipped.
func StagedDiff(ctx context.Context) (string, error) {
	repo, err := git.PlainOpen(".")
	if err != nil {
		return "", fmt.Errorf("failed to open repository: %w", err)
	}

	headRef, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD reference: %w", err)
	}
	headCommit, err := repo.CommitObject(headRef.Hash())
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD commit: %w", err)
	}
	headTree, err := headCommit.Tree()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD tree: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree status: %w", err)
	}

	var diffResult strings.Builder
	dmp := diffmatchpatch.New()

	for filePath, fileStatus := range status {
		if fileStatus.Staging == git.Unmodified {
			continue
		}

		var oldContent string
		if fileInTree, err := headTree.File(filePath); err == nil {
			if reader, err := fileInTree.Blob.Reader(); err == nil {
				data, err := io.ReadAll(reader)
				reader.Close()
				if err == nil {
					oldContent = string(data)
				}
			}
		}

		var newContent string
		if newContentBytes, err := os.ReadFile(filePath); err == nil {
			if isBinary(newContentBytes) {
				continue
			}
			newContent = string(newContentBytes)
		}

		diffs := dmp.DiffMain(oldContent, newContent, true)
		patches := dmp.PatchMake(oldContent, newContent, diffs)
		patchText := dmp.PatchToText(patches)

		if strings.TrimSpace(patchText) != "" {
			diffResult.WriteString(fmt.Sprintf("diff --git a/%s b/%s\n", filePath, filePath))
			diffResult.WriteString(patchText)
			diffResult.WriteString("\n")
		}
	}

	return diffResult.String(), nil
}

// FilterLockFiles removes diff sections of lock files.
func FilterLockFiles(diff string, lockFiles []string) string {
	lines := strings.Split(diff, "\n")
	var filtered []string
	isLockFile := false

	for _, line := range lines {
		if strings.HasPrefix(line, "diff --git") {
			matchesLockFile := false
			for _, lf := range lockFiles {
				p := regexp.MustCompile(`^diff --git a/(.*/)?(` + regexp.QuoteMeta(lf) + `)`)
				if p.MatchString(line) {
					matchesLockFile = true
					break
				}
			}
			if matchesLockFile {
				isLockFile = true
				continue
			}
			isLockFile = false
		}
		if !isLockFile {
			filtered = append(filtered, line)
		}
	}
	return strings.Join(filtered, "\n")
}

// Truncate caps the diff at maxChars bytes without splitting a rune,
// appending a marker when something was cut. maxChars <= 0 disables the cap.
func Truncate(diff string, maxChars int) string {
	if maxChars <= 0 || len(diff) <= maxChars {
		return diff
	}
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(diff[cut]) {
		cut--
	}
	return diff[:cut] + "\n... [diff truncated]"
}
