package revocation

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
)

// MemoryStore keeps records in a sharded concurrent map. It does not survive
// a restart.
type MemoryStore struct {
	records *xsync.MapOf[string, Record]
	opts    options
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{records: xsync.NewMapOf[string, Record](), opts: buildOptions(opts)}
}

func (s *MemoryStore) Revoke(ctx context.Context, credential string) error {
	rec, err := newRecord(credential, s.opts.now())
	if err != nil {
		return err
	}
	_, _ = s.Compact(ctx)
	s.records.LoadOrStore(credential, rec)
	return nil
}

func (s *MemoryStore) IsRevoked(_ context.Context, credential string) (bool, error) {
	_, ok := s.records.Load(credential)
	return ok, nil
}

func (s *MemoryStore) Compact(context.Context) (int, error) {
	now := s.opts.now()
	removed := 0
	s.records.Range(func(key string, rec Record) bool {
		if !rec.ExpiresAt.After(now) {
			s.records.Delete(key)
			removed++
		}
		return true
	})
	return removed, nil
}

func (s *MemoryStore) Records(context.Context) ([]Record, error) {
	out := make([]Record, 0, s.records.Size())
	s.records.Range(func(_ string, rec Record) bool {
		out = append(out, rec)
		return true
	})
	return out, nil
}

func (s *MemoryStore) Len() int {
	return s.records.Size()
}
