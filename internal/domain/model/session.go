package model

import "path/filepath"

// Session is the isolation boundary grouping downloads, output files, and
// credentials by caller. It is created implicitly on first interaction and
// destroyed, with a full cascade, on explicit clear.
type Session struct {
	ID           string
	DownloadsDir string
	CookiesDir   string
}

func NewSession(id, downloadsBase, cookiesBase string) *Session {
	return &Session{
		ID:           id,
		DownloadsDir: filepath.Join(downloadsBase, id),
		CookiesDir:   filepath.Join(cookiesBase, id),
	}
}

// CookieFile returns the path of the encrypted credential file for one job.
func (s *Session) CookieFile(jobID string) string {
	return filepath.Join(s.CookiesDir, jobID+".cookies")
}
