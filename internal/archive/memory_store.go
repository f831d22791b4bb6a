package archive

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	xerrors "AgentLink-Chain/internal/errors"
)

// MemoryStore 以内存方式保存归档记录，主要用于测试与单机部署。
type MemoryStore struct {
	mu      sync.RWMutex
	records []*Record
	max     int
}

// NewMemoryStore 创建 MemoryStore。max 限制保留的记录条数，0 表示默认上限。
func NewMemoryStore(max int) *MemoryStore {
	if max <= 0 {
		max = 4096
	}
	return &MemoryStore{max: max}
}

// Append 实现 Store 接口。
func (m *MemoryStore) Append(_ context.Context, record *Record) error {
	if record == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "record 不能为空")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *record
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	if clone.CreatedAt == 0 {
		clone.CreatedAt = time.Now().Unix()
	}
	clone.Metadata = record.Metadata.Clone()
	m.records = append(m.records, &clone)

	// 超出上限时丢弃最旧的记录。
	if len(m.records) > m.max {
		m.records = m.records[len(m.records)-m.max:]
	}
	return nil
}

// ListRecent 返回最近的归档记录，新记录在前。
func (m *MemoryStore) ListRecent(_ context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := len(m.records)
	if limit > count {
		limit = count
	}
	results := make([]*Record, 0, limit)
	for i := count - 1; i >= count-limit; i-- {
		clone := *m.records[i]
		clone.Metadata = m.records[i].Metadata.Clone()
		results = append(results, &clone)
	}
	return results, nil
}

// Close 对内存存储无需操作。
func (m *MemoryStore) Close() error {
	return nil
}

// ensure interface compliance at compile time
var _ Store = (*MemoryStore)(nil)
