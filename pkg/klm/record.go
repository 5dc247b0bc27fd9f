package klm

import "fmt"

const recordHeaderSize = 5

// MarshalBinary encodes the persisted part of the state:
// brightness | speed | mode | power | color count | count*(R,G,B).
// AutoSync is not persisted.
func (s State) MarshalBinary() ([]byte, error) {
	if len(s.Colors) > MaxColors {
		return nil, fmt.Errorf("encode %d colors: %w", len(s.Colors), ErrTooManyColors)
	}

	buf := make([]byte, recordHeaderSize, recordHeaderSize+3*len(s.Colors))
	buf[0] = s.Brightness
	buf[1] = s.Speed
	buf[2] = byte(s.Mode)
	if s.Power {
		buf[3] = 1
	}
	buf[4] = byte(len(s.Colors))
	for _, c := range s.Colors {
		buf = append(buf, c.R, c.G, c.B)
	}

	return buf, nil
}

// UnmarshalBinary decodes a record written by MarshalBinary. AutoSync is left
// untouched.
func (s *State) UnmarshalBinary(data []byte) error {
	if len(data) < recordHeaderSize {
		return fmt.Errorf("record is %d bytes: %w", len(data), ErrCorruptState)
	}

	mode := Mode(data[2])
	if !mode.Valid() {
		return fmt.Errorf("mode %d: %w", data[2], ErrCorruptState)
	}
	if data[3] > 1 {
		return fmt.Errorf("power flag %d: %w", data[3], ErrCorruptState)
	}

	n := int(data[4])
	if n == 0 {
		return fmt.Errorf("record has no colors: %w", ErrCorruptState)
	}
	if len(data) != recordHeaderSize+3*n {
		return fmt.Errorf("record is %d bytes, want %d: %w", len(data), recordHeaderSize+3*n, ErrCorruptState)
	}

	colors := make([]RGB, n)
	for i := range colors {
		off := recordHeaderSize + 3*i
		colors[i] = RGB{R: data[off], G: data[off+1], B: data[off+2]}
	}

	s.Brightness = data[0]
	s.Speed = data[1]
	s.Mode = mode
	s.Power = data[3] == 1
	s.Colors = colors

	return nil
}
