package adapter

import "context"

// FetchRequest describes one invocation of the external fetch worker.
type FetchRequest struct {
	URL         string
	OutputDir   string
	CookiesPath string // optional decrypted credential file
}

// FetchWorker invokes the external downloader for one attempt, calling
// onLine for every line of output as it is produced. It returns the full
// captured stdout; a non-zero exit surfaces as an error carrying the
// worker's stderr text.
type FetchWorker interface {
	Invoke(ctx context.Context, req FetchRequest, onLine func(line string)) ([]string, error)
}
