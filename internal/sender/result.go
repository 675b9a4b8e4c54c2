// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sender

import "fmt"

// Outcome tags a Result.
type Outcome int

const (
	Success Outcome = iota
	ServerRejected
	TransportFailed
	NoFixAvailable
	InvalidEndpoint
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case ServerRejected:
		return "server_rejected"
	case TransportFailed:
		return "transport_failed"
	case NoFixAvailable:
		return "no_fix_available"
	case InvalidEndpoint:
		return "invalid_endpoint"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the outcome of one send attempt. StatusCode is set for Success
// and ServerRejected; Err carries the reason for TransportFailed and
// InvalidEndpoint.
type Result struct {
	Outcome    Outcome
	StatusCode int
	Err        error
}

func (r Result) OK() bool { return r.Outcome == Success }

func (r Result) String() string {
	switch r.Outcome {
	case Success, ServerRejected:
		return fmt.Sprintf("%s (HTTP %d)", r.Outcome, r.StatusCode)
	case TransportFailed, InvalidEndpoint:
		if r.Err != nil {
			return fmt.Sprintf("%s: %v", r.Outcome, r.Err)
		}
	}
	return r.Outcome.String()
}
