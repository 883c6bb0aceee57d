package training

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
)

var versionPattern = regexp.MustCompile(`^version_(\d+)$`)

// NextRunVersion scans dir for version_N subdirectories and returns one
// greater than the highest number found, or 0 when none exist (including
// when dir itself does not exist yet). The scan is deterministic for a
// stable directory snapshot but is not safe against concurrently launched
// runs racing on the same parent directory.
func NextRunVersion(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to scan run directory %s: %v", dir, err)
	}

	max := -1
	for _, entry := range entries {
		m := versionPattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if v > max {
			max = v
		}
	}
	return max + 1, nil
}
