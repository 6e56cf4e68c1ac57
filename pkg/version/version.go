package version

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/renatogalera/ai-chat/pkg/httpx"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

const releasesURL = "https://api.github.com/repos/renatogalera/ai-chat/releases/latest"

// LatestRelease fetches the latest published release tag from GitHub.
func LatestRelease(ctx context.Context) (string, error) {
	return latestRelease(ctx, httpx.NewDefaultClient(), releasesURL)
}

func latestRelease(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build release request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch latest release: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch latest release: status %d", resp.StatusCode)
	}

	var release struct {
		TagName string `json:"tag_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", fmt.Errorf("failed to parse release response: %w", err)
	}
	if release.TagName == "" {
		return "", errors.New("release response missing tag_name")
	}
	return release.TagName, nil
}

// CheckForUpdate returns the latest release tag and whether it is newer than
// the running version.
func CheckForUpdate(ctx context.Context) (string, bool, error) {
	latest, err := LatestRelease(ctx)
	if err != nil {
		return "", false, err
	}
	return latest, IsNewer(latest, Version), nil
}

// IsNewer reports whether candidate is a semver tag strictly newer than
// current. Either side failing to parse (development builds) compares as
// not newer.
func IsNewer(candidate, current string) bool {
	candidate = canonical(candidate)
	current = canonical(current)
	if !semver.IsValid(candidate) || !semver.IsValid(current) {
		return false
	}
	return semver.Compare(candidate, current) > 0
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
