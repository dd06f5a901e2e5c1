package defs

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortPayload is returned when a payload is shorter than its embedded lengths promise
var ErrShortPayload = errors.New("payload shorter than declared length")

// Protocol data structures
type (
	// TaskResultData is the TaskResult payload: [1 byte success][diagnostic text]
	TaskResultData struct {
		Success    bool
		Diagnostic string
	}

	// SubmitFileData is the SubmitFile payload: [4 byte name len][name][file bytes]
	SubmitFileData struct {
		Filename string
		Contents []byte
	}

	// FileResultData is the FileResult payload:
	// [1 byte success][4 byte name len][name][object bytes | error text]
	FileResultData struct {
		Success  bool
		Filename string
		Data     []byte
	}
)

// Encode serializes the task result payload
func (d TaskResultData) Encode() []byte {
	buf := make([]byte, 0, 1+len(d.Diagnostic))
	buf = append(buf, boolByte(d.Success))
	return append(buf, d.Diagnostic...)
}

// DecodeTaskResult parses a TaskResult payload
func DecodeTaskResult(payload []byte) (TaskResultData, error) {
	if len(payload) < 1 {
		return TaskResultData{}, fmt.Errorf("task result: %w", ErrShortPayload)
	}
	return TaskResultData{
		Success:    payload[0] == 1,
		Diagnostic: string(payload[1:]),
	}, nil
}

// Encode serializes the submit payload
func (d SubmitFileData) Encode() []byte {
	buf := make([]byte, 0, 4+len(d.Filename)+len(d.Contents))
	buf = appendName(buf, d.Filename)
	return append(buf, d.Contents...)
}

// DecodeSubmitFile parses a SubmitFile payload
func DecodeSubmitFile(payload []byte) (SubmitFileData, error) {
	name, rest, err := readName(payload)
	if err != nil {
		return SubmitFileData{}, fmt.Errorf("submit file: %w", err)
	}
	return SubmitFileData{Filename: name, Contents: rest}, nil
}

// Encode serializes the file result payload
func (d FileResultData) Encode() []byte {
	buf := make([]byte, 0, 5+len(d.Filename)+len(d.Data))
	buf = append(buf, boolByte(d.Success))
	buf = appendName(buf, d.Filename)
	return append(buf, d.Data...)
}

// DecodeFileResult parses a FileResult payload
func DecodeFileResult(payload []byte) (FileResultData, error) {
	if len(payload) < 1 {
		return FileResultData{}, fmt.Errorf("file result: %w", ErrShortPayload)
	}
	name, rest, err := readName(payload[1:])
	if err != nil {
		return FileResultData{}, fmt.Errorf("file result: %w", err)
	}
	return FileResultData{Success: payload[0] == 1, Filename: name, Data: rest}, nil
}

func appendName(buf []byte, name string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(name)))
	return append(buf, name...)
}

func readName(payload []byte) (string, []byte, error) {
	if len(payload) < 4 {
		return "", nil, ErrShortPayload
	}
	n := binary.BigEndian.Uint32(payload[0:4])
	if uint64(len(payload)-4) < uint64(n) {
		return "", nil, ErrShortPayload
	}
	end := 4 + int(n)
	return string(payload[4:end]), payload[end:], nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
