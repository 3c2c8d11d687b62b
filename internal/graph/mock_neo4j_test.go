package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// mockRunCall records a single Run invocation.
type mockRunCall struct {
	cypher string
	params map[string]any
}

// mockSession implements sessionRunner for testing.
type mockSession struct {
	calls   []mockRunCall
	runFunc func(cypher string, params map[string]any) (resultIterator, error)
	closed  bool
}

func (m *mockSession) Run(_ context.Context, cypher string, params map[string]any) (resultIterator, error) {
	m.calls = append(m.calls, mockRunCall{cypher: cypher, params: params})
	if m.runFunc != nil {
		return m.runFunc(cypher, params)
	}
	return &mockResult{}, nil
}

func (m *mockSession) Close(_ context.Context) error {
	m.closed = true
	return nil
}

// mockResult implements resultIterator for testing.
type mockResult struct {
	records []*neo4j.Record
	index   int
	err     error
}

func (m *mockResult) Next(_ context.Context) bool {
	if m.index < len(m.records) {
		m.index++
		return true
	}
	return false
}

func (m *mockResult) Record() *neo4j.Record {
	if m.index > 0 && m.index <= len(m.records) {
		return m.records[m.index-1]
	}
	return nil
}

func (m *mockResult) Err() error {
	return m.err
}

// mockSessionFactory returns a sessionFactory that always returns the given session.
func mockSessionFactory(session *mockSession) sessionFactory {
	return func(_ context.Context) sessionRunner {
		return session
	}
}

// failSessionFactory returns a sessionFactory whose Run always fails.
func failSessionFactory(err error) sessionFactory {
	return func(_ context.Context) sessionRunner {
		return &mockSession{
			runFunc: func(_ string, _ map[string]any) (resultIterator, error) {
				return nil, err
			},
		}
	}
}
