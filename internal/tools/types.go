// Package tools provides the static tool catalog and the validated executor
// that applies tool calls to the store.
package tools

// ArgType is the JSON shape of a tool argument.
type ArgType string

const (
	ArgString      ArgType = "string"
	ArgInteger     ArgType = "integer"
	ArgStringArray ArgType = "string[]"
	ArgBoolean     ArgType = "boolean"
)

// Arg describes one argument of a tool.
type Arg struct {
	Name        string  `json:"name"`
	Type        ArgType `json:"type"`
	Description string  `json:"description"`
	Required    bool    `json:"required"`
}

// Definition describes a tool. Definitions are built once at startup and never mutated.
type Definition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Args        []Arg  `json:"args"`
}

// Error codes carried by failed results.
const (
	CodeUnknownTool        = "unknown_tool"
	CodeMissingArgument    = "missing_argument"
	CodeTaskNotFound       = "task_not_found"
	CodeNotFound           = "not_found"
	CodeTransactionFailure = "transaction_failure"
	CodeInternalError      = "internal_error"
	CodeInvalidRequest     = "invalid_request"
	CodePrinterUnavailable = "printer_unavailable"
)

// Result is the outcome of a tool invocation. Exactly one of Result and
// Error is set, selected by OK.
type Result struct {
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Error  *Error `json:"error,omitempty"`
}

// Error describes a failed invocation.
type Error struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Detail  string   `json:"detail,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

// Success wraps a handler payload.
func Success(payload any) Result {
	return Result{OK: true, Result: payload}
}

// Failure builds a failed result.
func Failure(code, message, detail string) Result {
	return Result{OK: false, Error: &Error{Code: code, Message: message, Detail: detail}}
}
