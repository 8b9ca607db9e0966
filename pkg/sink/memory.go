package sink

import (
	"github.com/nemanja-m/diskmr/pkg/codec"
	"github.com/nemanja-m/diskmr/pkg/core"
)

// Memory keeps every appended record in arrival order.
type Memory struct {
	records []core.KeyValue
	byKey   map[string][]int
	keys    int
}

func NewMemory() *Memory {
	return &Memory{byKey: make(map[string][]int)}
}

func (m *Memory) Kind() Kind {
	return KindMemory
}

func (m *Memory) Append(records []core.KeyValue) error {
	for _, record := range records {
		keyBytes, err := codec.MarshalKey(record.Key)
		if err != nil {
			return err
		}
		hash := core.ContentHash(keyBytes)
		if _, ok := m.byKey[hash]; !ok {
			m.keys++
		}
		m.byKey[hash] = append(m.byKey[hash], len(m.records))
		m.records = append(m.records, record)
	}
	return nil
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) Records() []core.KeyValue {
	return m.records
}

func (m *Memory) Len() int {
	return len(m.records)
}

// NumKeys is the number of distinct keys appended so far.
func (m *Memory) NumKeys() int {
	return m.keys
}

// Get returns every value appended under key.
func (m *Memory) Get(key any) []any {
	keyBytes, err := codec.MarshalKey(key)
	if err != nil {
		return nil
	}
	var values []any
	for _, i := range m.byKey[core.ContentHash(keyBytes)] {
		values = append(values, m.records[i].Value)
	}
	return values
}
