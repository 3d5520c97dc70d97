package protocol

import (
	"github.com/google/uuid"
)

// Version is the protocol revision stamped on every message.
const Version uint16 = 1

// ClientRequest carries a prompt from the client to the daemon.
type ClientRequest struct {
	ProtocolVersion uint16      `json:"protocol_version"`
	RequestID       string      `json:"request_id"`
	Prompt          string      `json:"prompt"`
	Cwd             string      `json:"cwd"`
	Shell           *string     `json:"shell"`
	Env             [][2]string `json:"env"`
}

// ServerResponse answers a ClientRequest. Exactly one of Command or Error is
// normally set.
type ServerResponse struct {
	ProtocolVersion uint16  `json:"protocol_version"`
	RequestID       string  `json:"request_id"`
	Command         *string `json:"command"`
	Explanation     *string `json:"explanation"`
	Error           *string `json:"error"`
}

type PingRequest struct {
	ProtocolVersion uint16 `json:"protocol_version"`
}

type PingResponse struct {
	ProtocolVersion uint16 `json:"protocol_version"`
	OK              bool   `json:"ok"`
}

// NewRequest builds a request with the current version and a fresh id.
// An empty shell is encoded as null.
func NewRequest(prompt, cwd, shell string, env [][2]string) ClientRequest {
	req := ClientRequest{
		ProtocolVersion: Version,
		RequestID:       uuid.NewString(),
		Prompt:          prompt,
		Cwd:             cwd,
		Env:             env,
	}
	if shell != "" {
		req.Shell = &shell
	}
	if req.Env == nil {
		req.Env = [][2]string{}
	}
	return req
}

// ErrorResponse answers req with an error message.
func ErrorResponse(req ClientRequest, msg string) ServerResponse {
	return ServerResponse{
		ProtocolVersion: Version,
		RequestID:       req.RequestID,
		Error:           &msg,
	}
}

// CommandResponse answers req with a suggested command.
func CommandResponse(req ClientRequest, command, explanation string) ServerResponse {
	resp := ServerResponse{
		ProtocolVersion: Version,
		RequestID:       req.RequestID,
		Command:         &command,
	}
	if explanation != "" {
		resp.Explanation = &explanation
	}
	return resp
}
