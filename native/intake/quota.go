package intake

import (
	"fmt"
	"sync"
	"time"

	"trustmesh/native/common"
)

const quotaModule = "intake"

// memoryQuotaStore is an in-process counter store for the per-API-key quota
// gate. Quota counters are ephemeral backpressure state, the same footing
// as the Processor's token-bucket limiter, so they are not threaded through
// the durable Store the way idempotency responses and audit entries are.
type memoryQuotaStore struct {
	mu   sync.Mutex
	data map[string]common.QuotaNow
}

func newMemoryQuotaStore() *memoryQuotaStore {
	return &memoryQuotaStore{data: make(map[string]common.QuotaNow)}
}

func quotaKey(module string, epoch uint64, addr []byte) string {
	return fmt.Sprintf("%s|%d|%s", module, epoch, addr)
}

func (s *memoryQuotaStore) Load(module string, epoch uint64, addr []byte) (common.QuotaNow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[quotaKey(module, epoch, addr)]
	return v, ok, nil
}

func (s *memoryQuotaStore) Save(module string, epoch uint64, addr []byte, counters common.QuotaNow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[quotaKey(module, epoch, addr)] = counters
	return nil
}

// SetQuota enables a per-API-key request quota on top of the global
// token-bucket backpressure gate, generalizing native/common's per-address
// quota gate from its original per-module/NHB-cap shape to a one-minute
// request-count window keyed by API key.
func (p *Processor) SetQuota(maxRequestsPerMinute uint32) {
	if p == nil || maxRequestsPerMinute == 0 {
		return
	}
	p.quotaStore = newMemoryQuotaStore()
	p.quota = common.Quota{MaxRequestsPerMin: maxRequestsPerMinute, EpochSeconds: 60}
}

func (p *Processor) checkQuota(apiKey string) error {
	if p == nil || p.quotaStore == nil || apiKey == "" {
		return nil
	}
	epoch := uint64(time.Now().Unix() / 60)
	if _, err := common.Apply(p.quotaStore, quotaModule, epoch, []byte(apiKey), p.quota, 1, 0); err != nil {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return nil
}
