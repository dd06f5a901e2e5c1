package defs

import "time"

// Opcode identifies the purpose and payload shape of a frame
type Opcode byte

// Protocol constants
const (
	// Message types
	OpHello      Opcode = 0x01 // worker -> coordinator, identity text
	OpTaskDef    Opcode = 0x02 // coordinator -> worker, source path
	OpTaskResult Opcode = 0x03 // worker -> coordinator, status byte + diagnostic
	OpSubmitFile Opcode = 0x04 // client -> server
	OpFileResult Opcode = 0x05 // server -> client
	OpShutdown   Opcode = 0xFF // coordinator -> worker

	// HeaderSize is opcode (1 byte) plus big-endian payload length (4 bytes)
	HeaderSize = 5

	// Configuration constants
	ResultWaitTimeout          = 10 * time.Second
	ConnectRetryDelay          = 100 * time.Millisecond
	AcceptRetryDelay           = 1 * time.Second
	InitialRegistrationTimeout = 30 * time.Second
	RegistryRefreshInterval    = 1 * time.Minute
	SuccessDiagnostic          = "OK"
	DefaultAddress             = "127.0.0.1:9000"
	DefaultWorkerCount         = 4
)

// Known reports whether op belongs to the fixed opcode set
func (op Opcode) Known() bool {
	switch op {
	case OpHello, OpTaskDef, OpTaskResult, OpSubmitFile, OpFileResult, OpShutdown:
		return true
	}
	return false
}

func (op Opcode) String() string {
	switch op {
	case OpHello:
		return "Hello"
	case OpTaskDef:
		return "TaskDef"
	case OpTaskResult:
		return "TaskResult"
	case OpSubmitFile:
		return "SubmitFile"
	case OpFileResult:
		return "FileResult"
	case OpShutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}
