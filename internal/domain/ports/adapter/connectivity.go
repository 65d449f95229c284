package adapter

import "context"

// Connectivity answers the pre-flight questions asked before spawning a
// worker process: is the network up at all, and does the target host answer.
type Connectivity interface {
	CheckNetwork(ctx context.Context) error
	CheckURL(ctx context.Context, rawURL string) error
}
