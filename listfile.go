// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mopaq

import "strings"

// listfileName is the special file carrying the archive's filename list.
// Not every archive ships one; files it omits are still reachable by name
// or by block index.
const listfileName = "(listfile)"

// normalizeMpqPath normalizes a path for deduplication: backslash
// separators, uppercase, collapsed doubles. This matches MPQ's internal
// path handling (case-insensitive, backslash separators).
func normalizeMpqPath(path string) string {
	normalized := strings.ReplaceAll(path, "/", "\\")
	normalized = strings.ToUpper(normalized)
	for strings.Contains(normalized, "\\\\") {
		normalized = strings.ReplaceAll(normalized, "\\\\", "\\")
	}
	return normalized
}

// ListFiles returns the names recorded in the archive's (listfile),
// deduplicated case-insensitively, in first-seen order. Returns
// ErrFileNotFound when the archive has no listfile.
func (a *Archive) ListFiles() ([]string, error) {
	data, err := a.ReadFile(listfileName)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var result []string
	for _, line := range strings.Split(string(data), "\n") {
		name := strings.TrimRight(line, "\r")
		if name == "" {
			continue
		}
		key := normalizeMpqPath(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, name)
	}
	return result, nil
}
