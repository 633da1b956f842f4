package upload

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// StoredUpload is one recorded upload in an in-memory backend.
type StoredUpload struct {
	Data []byte
	Tags map[string]string
}

// MemoryBackend is an in-process fake Backend: it never touches the
// network and records every upload for later inspection.
type MemoryBackend struct {
	mu      sync.Mutex
	uploads map[string]StoredUpload
	fail    bool
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{uploads: make(map[string]StoredUpload)}
}

// SetFail makes every subsequent Upload call return an error, simulating a
// gateway outage.
func (m *MemoryBackend) SetFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

// Upload records data+tags under a fresh uuid transaction id.
func (m *MemoryBackend) Upload(_ context.Context, data []byte, tags map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return "", errUploadFailed
	}
	txID := uuid.New().String()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.uploads[txID] = StoredUpload{Data: cp, Tags: tags}
	return txID, nil
}

// Get returns a previously recorded upload by transaction id.
func (m *MemoryBackend) Get(txID string) (StoredUpload, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.uploads[txID]
	return u, ok
}

// All returns every recorded upload, for test assertions.
func (m *MemoryBackend) All() map[string]StoredUpload {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]StoredUpload, len(m.uploads))
	for k, v := range m.uploads {
		out[k] = v
	}
	return out
}

var errUploadFailed = &uploadError{"simulated upload failure"}

type uploadError struct{ msg string }

func (e *uploadError) Error() string { return e.msg }
