package proto

import (
	"errors"
	"fmt"
)

type Status byte

const (
	StatusOk         Status = 0x00
	StatusError      Status = 0x01
	StatusBadRequest Status = 0x02
	StatusData       Status = 0x03
)

func (s Status) String() string {
	switch s {
	case StatusOk:
		return "ok"
	case StatusError:
		return "error"
	case StatusBadRequest:
		return "bad_request"
	case StatusData:
		return "data"
	}
	return fmt.Sprintf("status(%d)", byte(s))
}

// MaxPayload is the largest Data payload the one-byte length can describe.
const MaxPayload = 255

var ErrPayloadTooLarge = errors.New("response payload too large")

type Response struct {
	Status  Status
	Payload []byte
}

func Respond(status Status) Response {
	return Response{Status: status}
}

func (r *Response) addData(data ...byte) {
	r.Status = StatusData
	r.Payload = append(r.Payload, data...)
}

// MarshalBinary encodes the response as a single status byte, or as
// 0x03, length, payload for Data.
func (r Response) MarshalBinary() ([]byte, error) {
	if r.Status != StatusData {
		return []byte{byte(r.Status)}, nil
	}
	if len(r.Payload) > MaxPayload {
		return nil, fmt.Errorf("%d bytes: %w", len(r.Payload), ErrPayloadTooLarge)
	}

	out := make([]byte, 0, 2+len(r.Payload))
	out = append(out, byte(StatusData), byte(len(r.Payload)))
	return append(out, r.Payload...), nil
}

// ParseResponse decodes a response written by MarshalBinary.
func ParseResponse(data []byte) (Response, error) {
	if len(data) == 0 {
		return Response{}, errors.New("empty response")
	}

	status := Status(data[0])
	switch status {
	case StatusOk, StatusError, StatusBadRequest:
		return Response{Status: status}, nil
	case StatusData:
		if len(data) < 2 || len(data) != 2+int(data[1]) {
			return Response{}, fmt.Errorf("data response of %d bytes is truncated", len(data))
		}
		return Response{Status: status, Payload: append([]byte{}, data[2:]...)}, nil
	}

	return Response{}, fmt.Errorf("unknown status byte %#02x", data[0])
}
