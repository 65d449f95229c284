package gallerydl

import "strings"

// Progress checkpoints are coarse heuristics tied to markers in gallery-dl
// output, not a measured fraction. Regressions are discarded at apply time,
// so a later "extracting" line cannot pull a job back below 50.
const (
	checkpointExtract = 25
	checkpointProcess = 50
)

// Update is one parsed progress observation. Progress < 0 means the line
// carried a message but no percentage change.
type Update struct {
	Progress int
	Message  string
}

// ParseProgress maps one line of gallery-dl output to a progress update.
// Matching is case-insensitive substring containment, first match wins.
func ParseProgress(line string) (Update, bool) {
	if !strings.Contains(line, "[") || !strings.Contains(line, "]") {
		return Update{}, false
	}
	l := strings.ToLower(line)
	switch {
	case strings.Contains(l, "downloading"):
		return Update{Progress: -1, Message: "Downloading files..."}, true
	case strings.Contains(l, "extracting"):
		return Update{Progress: checkpointExtract, Message: "Extracting metadata..."}, true
	case strings.Contains(l, "processing"):
		return Update{Progress: checkpointProcess, Message: "Processing files..."}, true
	}
	return Update{}, false
}

// CountDownloadedFiles counts completed-file markers across the full
// captured output of a finished attempt.
func CountDownloadedFiles(lines []string) int {
	count := 0
	for _, line := range lines {
		if strings.Contains(line, "Downloading") && strings.Contains(line, " -> ") {
			count++
		}
	}
	return count
}
