package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/texusred/rust-wipe-bot/internal/model"
	pkgerrors "github.com/texusred/rust-wipe-bot/pkg/errors"
)

// ── Mock CandidateRepository ──

type mockCandidateRepo struct {
	mu         sync.Mutex
	candidates map[string]*model.Candidate
}

func newMockCandidateRepo() *mockCandidateRepo {
	return &mockCandidateRepo{candidates: make(map[string]*model.Candidate)}
}

func (m *mockCandidateRepo) Create(_ context.Context, c *model.Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.candidates[c.CandidateID] = &cp
	return nil
}

func (m *mockCandidateRepo) GetByID(_ context.Context, id string) (*model.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.candidates[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCandidateRepo) FindByName(_ context.Context, name string) (*model.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.sortedLocked() {
		if strings.EqualFold(c.DisplayName, name) {
			cp := c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCandidateRepo) List(_ context.Context, activeOnly bool) ([]model.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Candidate
	for _, c := range m.sortedLocked() {
		if activeOnly && !c.IsActive {
			continue
		}
		result = append(result, c)
	}
	return result, nil
}

// sortedLocked 按 candidate_id 排序的副本，调用方需持有锁
func (m *mockCandidateRepo) sortedLocked() []model.Candidate {
	list := make([]model.Candidate, 0, len(m.candidates))
	for _, c := range m.candidates {
		list = append(list, *c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CandidateID < list[j].CandidateID })
	return list
}

func (m *mockCandidateRepo) Update(_ context.Context, c *model.Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.candidates[c.CandidateID] = &cp
	return nil
}

func (m *mockCandidateRepo) GetLocked(_ context.Context) (*model.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.sortedLocked() {
		if c.IsLocked {
			cp := c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCandidateRepo) update(id string, fn func(c *model.Candidate)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.candidates[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	fn(c)
	return nil
}

func (m *mockCandidateRepo) SetLocked(_ context.Context, id string, locked bool) error {
	return m.update(id, func(c *model.Candidate) { c.IsLocked = locked })
}

func (m *mockCandidateRepo) SetActive(_ context.Context, id string, active bool) error {
	return m.update(id, func(c *model.Candidate) { c.IsActive = active })
}

func (m *mockCandidateRepo) SetSkipNext(_ context.Context, id string, skip bool) error {
	return m.update(id, func(c *model.Candidate) { c.SkipNext = skip })
}

func (m *mockCandidateRepo) ClearSkipNext(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.candidates {
		c.SkipNext = false
	}
	return nil
}

func (m *mockCandidateRepo) IncrementGames(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if c, ok := m.candidates[id]; ok {
			c.TotalGamesPlayed++
		}
	}
	return nil
}

// ── Mock CycleRepository ──

type mockCycleRepo struct {
	mu        sync.Mutex
	cycles    map[string]*model.Cycle
	seq       int
	updateErr error
	updates   int
}

func newMockCycleRepo() *mockCycleRepo {
	return &mockCycleRepo{cycles: make(map[string]*model.Cycle)}
}

// copyCycle 深拷贝名单，模拟以 JSON 存储的效果
func copyCycle(c *model.Cycle) *model.Cycle {
	cp := *c
	cp.Selection = c.Selection.Clone()
	return &cp
}

func (m *mockCycleRepo) Create(_ context.Context, c *model.Cycle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.CycleID == "" {
		m.seq++
		c.CycleID = fmt.Sprintf("cycle-%d", m.seq)
	}
	m.cycles[c.CycleID] = copyCycle(c)
	return nil
}

func (m *mockCycleRepo) GetByID(_ context.Context, id string) (*model.Cycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.cycles[id]; ok {
		return copyCycle(c), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCycleRepo) GetActive(_ context.Context) (*model.Cycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *model.Cycle
	for _, c := range m.cycles {
		if c.Status != model.CycleStatusActive {
			continue
		}
		if latest == nil || c.StartDate.After(latest.StartDate) {
			latest = c
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return copyCycle(latest), nil
}

func (m *mockCycleRepo) ListRecent(_ context.Context, limit int) ([]model.Cycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := make([]model.Cycle, 0, len(m.cycles))
	for _, c := range m.cycles {
		list = append(list, *copyCycle(c))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].StartDate.After(list[j].StartDate) })
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *mockCycleRepo) Update(_ context.Context, c *model.Cycle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	stored, ok := m.cycles[c.CycleID]
	if !ok || stored.Version != c.Version {
		return pkgerrors.ErrOptimisticLock
	}
	c.Version++
	m.cycles[c.CycleID] = copyCycle(c)
	m.updates++
	return nil
}

// ── Mock HistoryRepository ──

type mockHistoryRepo struct {
	mu      sync.Mutex
	records []model.HistoryRecord
}

func newMockHistoryRepo() *mockHistoryRepo {
	return &mockHistoryRepo{}
}

func (m *mockHistoryRepo) CreateBatch(_ context.Context, records []model.HistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
	return nil
}

func (m *mockHistoryRepo) List(_ context.Context) ([]model.HistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.HistoryRecord(nil), m.records...), nil
}

func (m *mockHistoryRepo) ListByCandidate(_ context.Context, candidateID string) ([]model.HistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.HistoryRecord
	for _, r := range m.records {
		if r.CandidateID == candidateID {
			result = append(result, r)
		}
	}
	return result, nil
}

func (m *mockHistoryRepo) ListSince(_ context.Context, since time.Time) ([]model.HistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.HistoryRecord
	for _, r := range m.records {
		if !r.RecordedAt.Before(since) {
			result = append(result, r)
		}
	}
	return result, nil
}

// ── Mock InterestRepository ──

type mockInterestRepo struct {
	mu        sync.Mutex
	interests map[string]model.InterestExpression
}

func newMockInterestRepo() *mockInterestRepo {
	return &mockInterestRepo{interests: make(map[string]model.InterestExpression)}
}

func (m *mockInterestRepo) Create(_ context.Context, ie *model.InterestExpression) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.interests[ie.CandidateID]; ok {
		return false, nil
	}
	m.interests[ie.CandidateID] = *ie
	return true, nil
}

func (m *mockInterestRepo) Exists(_ context.Context, candidateID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.interests[candidateID]
	return ok, nil
}

func (m *mockInterestRepo) List(_ context.Context) ([]model.InterestExpression, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.InterestExpression
	for _, ie := range m.interests {
		result = append(result, ie)
	}
	return result, nil
}

func (m *mockInterestRepo) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interests = make(map[string]model.InterestExpression)
	return nil
}

// ── Mock ConfigStore ──

// memConfigStore 内存版键值存储，版本语义与数据库实现一致
type memConfigStore struct {
	mu      sync.Mutex
	entries map[string]model.ConfigEntry

	getErr error
	setErr error
	// beforeClaim 在带版本删除执行前调用一次，用于模拟并发修改
	beforeClaim func()
}

func newMemConfigStore() *memConfigStore {
	return &memConfigStore{entries: make(map[string]model.ConfigEntry)}
}

func (m *memConfigStore) Get(_ context.Context, key string) (*model.ConfigEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	e, ok := m.entries[key]
	if !ok || e.Deleted {
		return nil, gorm.ErrRecordNotFound
	}
	return &e, nil
}

func (m *memConfigStore) Set(_ context.Context, key, value string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return 0, m.setErr
	}
	e := m.entries[key]
	e.Key = key
	e.Value = value
	e.Version++
	e.Deleted = false
	e.UpdatedAt = time.Now()
	m.entries[key] = e
	return e.Version, nil
}

func (m *memConfigStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bury(key)
	return nil
}

func (m *memConfigStore) CompareAndSwap(_ context.Context, key string, version int, value string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return 0, m.setErr
	}
	e, ok := m.entries[key]
	live := ok && !e.Deleted
	if (version == 0 && live) || (version != 0 && (!live || e.Version != version)) {
		return 0, pkgerrors.ErrOptimisticLock
	}
	e.Key = key
	e.Value = value
	e.Version++
	e.Deleted = false
	e.UpdatedAt = time.Now()
	m.entries[key] = e
	return e.Version, nil
}

func (m *memConfigStore) DeleteVersion(_ context.Context, key string, version int) error {
	if hook := m.takeBeforeClaim(); hook != nil {
		hook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || e.Deleted {
		return gorm.ErrRecordNotFound
	}
	if e.Version != version {
		return pkgerrors.ErrOptimisticLock
	}
	m.bury(key)
	return nil
}

// bury 留下墓碑，版本号继续递增
func (m *memConfigStore) bury(key string) {
	e, ok := m.entries[key]
	if !ok || e.Deleted {
		return
	}
	e.Value = ""
	e.Version++
	e.Deleted = true
	e.UpdatedAt = time.Now()
	m.entries[key] = e
}

func (m *memConfigStore) takeBeforeClaim() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	hook := m.beforeClaim
	m.beforeClaim = nil
	return hook
}

func (m *memConfigStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	return ok && !e.Deleted
}
