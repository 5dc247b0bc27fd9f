package memory

type StateStore struct {
	record []byte
}

func NewStateStore() *StateStore {
	return &StateStore{}
}

func (s *StateStore) LoadState() ([]byte, error) {
	if s.record == nil {
		return nil, nil
	}
	return append([]byte(nil), s.record...), nil
}

func (s *StateStore) SaveState(record []byte) error {
	s.record = append([]byte{}, record...)
	return nil
}

func (s *StateStore) ClearState() error {
	s.record = nil
	return nil
}
