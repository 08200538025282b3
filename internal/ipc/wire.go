package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Messages are single JSON lines. Responses can carry a whole lecture
// transcript, so the cap is generous.
const (
	maxRequestBytes  = 64 << 10
	maxResponseBytes = 16 << 20
)

var errMessageTooLarge = errors.New("message exceeds size limit")

func writeMessage(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

func readMessage(r io.Reader, limit int64, v any) error {
	reader := bufio.NewReader(io.LimitReader(r, limit+1))
	line, err := reader.ReadBytes('\n')
	if int64(len(line)) > limit {
		return errMessageTooLarge
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(line, v); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	return nil
}

var errMalformed = errors.New("malformed message")
