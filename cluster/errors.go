package cluster

import "fmt"

// NotSupportedError is raised locally by getConnection when a command is
// unroutable in the current regime: no keys, a multi-key command whose
// keys span different shards, or an unknown command with no descriptor.
// It is never retried.
type NotSupportedError struct {
	CommandID string
	Reason    string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("cluster: command %q not supported: %s", e.CommandID, e.Reason)
}

// ClientError is a protocol-level anomaly: an unexpected redirection
// prefix, a redirection loop exceeding the configured cap, or a
// malformed "host:port" in a MOVED/ASK reply.
type ClientError struct {
	Reason string
}

func (e *ClientError) Error() string {
	return "cluster: " + e.Reason
}
