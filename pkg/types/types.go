package types

import (
	"encoding/json"
	"fmt"
)

// Implementation represents server or client implementation information
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Request is the wire envelope for a single inbound message
type Request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is the uniform wire envelope for replies. Exactly one of
// Result or Error is set.
type Response struct {
	Result interface{} `json:"result,omitempty"`
	Error  *Error      `json:"error,omitempty"`
}

// HeaderSessionID carries the session token out-of-band on the
// network transports. Servers generate it; clients echo it back.
const HeaderSessionID = "Mcp-Session-Id"

// Method names understood by a session transport
const (
	MethodInitialize = "initialize"
	MethodPing       = "ping"
	MethodListTools  = "listTools"
	MethodCallTool   = "callTool"
)

// InitializeRequest represents an initialize request
type InitializeRequest struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ClientInfo      Implementation `json:"clientInfo"`
}

// InitializeResponse represents the server's reply to initialize
type InitializeResponse struct {
	ProtocolVersion string             `json:"protocolVersion"`
	ServerInfo      Implementation     `json:"serverInfo"`
	Capabilities    ServerCapabilities `json:"capabilities"`
}

// ServerCapabilities represents capabilities supported by the server
type ServerCapabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

// ToolsCapability represents tool-related capabilities
type ToolsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// CallToolRequest represents parameters for a callTool request
type CallToolRequest struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// ToolInfo describes a registered tool in listTools responses
type ToolInfo struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  *Parameters `json:"parameters,omitempty"`
}

// Parameter represents a parameter in a tool's input schema
type Parameter struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Parameters represents a tool's input schema
type Parameters struct {
	Type       string               `json:"type"`
	Properties map[string]Parameter `json:"properties"`
	Required   []string             `json:"required,omitempty"`
}

// Error codes carried in response envelopes. Each class of failure has
// its own code so clients can tell a malformed request from an unknown
// session from a failed tool execution.
const (
	// CodeProtocolError indicates a malformed or invalid inbound message
	CodeProtocolError = 400
	// CodeUnknownTool indicates a callTool request naming an unregistered tool
	CodeUnknownTool = 404
	// CodeDuplicateTool indicates a startup-time duplicate registration
	CodeDuplicateTool = 409
	// CodeUnknownSession indicates a request carrying an id with no live session
	CodeUnknownSession = 410
	// CodeSessionLimit indicates the session table is at its configured bound
	CodeSessionLimit = 429
	// CodeToolExecution indicates a handler failure or panic
	CodeToolExecution = 500
)

// Error represents a structured protocol error
type Error struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// NewError creates a new Error instance
func NewError(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithData creates a new Error instance with additional data
func NewErrorWithData(code int, message string, data map[string]interface{}) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// Error implements the error interface
func (e Error) Error() string {
	return fmt.Sprintf("error %d: %s", e.Code, e.Message)
}

// AsError extracts a structured *Error from err if it carries one
func AsError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	if e, ok := err.(*Error); ok {
		return e, true
	}
	return nil, false
}

// HasCode reports whether err is a structured error with the given code
func HasCode(err error, code int) bool {
	e, ok := AsError(err)
	return ok && e.Code == code
}
