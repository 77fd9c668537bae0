package service

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"go-knowledge/internal/model"
	"go-knowledge/internal/store"
)

var (
	pathModels    = store.Path{model.SectionModels}
	pathProviders = pathModels.Child("providers")
)

// ProviderService 管理 models.providers，所有修改直接写入配置存储
//
// 修改都是读取-修改-整体写回，mu 保证并发请求不会覆盖彼此。
type ProviderService struct {
	store *store.Store
	llm   *LLMService
	mu    sync.Mutex
}

func NewProviderService(st *store.Store, llm *LLMService) *ProviderService {
	return &ProviderService{store: st, llm: llm}
}

func (s *ProviderService) settings() model.ModelSettings {
	return store.DecodeOr(s.store, pathModels, model.ModelSettings{})
}

// ListProviders 按 id 排序
func (s *ProviderService) ListProviders() []model.ProviderConfig {
	providers := s.settings().Providers
	out := make([]model.ProviderConfig, 0, len(providers))
	for _, p := range providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *ProviderService) GetProvider(id string) (model.ProviderConfig, error) {
	p, ok := s.settings().Providers[id]
	if !ok {
		return model.ProviderConfig{}, fmt.Errorf("provider %s: %w", id, ErrNotFound)
	}
	return p, nil
}

// SaveProvider 校验后写入；create 为 true 时 id 必须未被占用
func (s *ProviderService) SaveProvider(p model.ProviderConfig, create bool) error {
	if p.Models == nil {
		p.Models = []string{}
	}
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.settings().Providers[p.ID]
	if create && exists {
		return fmt.Errorf("provider %s: %w", p.ID, ErrAlreadyExists)
	}
	if !create && !exists {
		return fmt.Errorf("provider %s: %w", p.ID, ErrNotFound)
	}
	return s.store.Set(pathProviders.Child(p.ID), p)
}

// DeleteProvider 删除服务商，若为默认服务商则同时清空默认模型
func (s *ProviderService) DeleteProvider(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.settings()
	if _, ok := cur.Providers[id]; !ok {
		return fmt.Errorf("provider %s: %w", id, ErrNotFound)
	}
	if err := s.store.Delete(pathProviders.Child(id)); err != nil {
		return err
	}
	if cur.DefaultProvider == id {
		return s.setDefaultLocked("", "")
	}
	return nil
}

func (s *ProviderService) SetProviderEnabled(id string, enabled bool) error {
	return s.update(id, func(p *model.ProviderConfig) error {
		p.Enabled = enabled
		return nil
	})
}

func (s *ProviderService) AddProviderModel(id, modelName string) error {
	if modelName == "" {
		return fmt.Errorf("%w: model name required", ErrInvalidInput)
	}
	return s.update(id, func(p *model.ProviderConfig) error {
		if p.HasModel(modelName) {
			return fmt.Errorf("model %s: %w", modelName, ErrAlreadyExists)
		}
		p.Models = append(p.Models, modelName)
		return nil
	})
}

func (s *ProviderService) RemoveProviderModel(id, modelName string) error {
	return s.update(id, func(p *model.ProviderConfig) error {
		idx := slices.Index(p.Models, modelName)
		if idx < 0 {
			return fmt.Errorf("model %s: %w", modelName, ErrNotFound)
		}
		p.Models = slices.Delete(p.Models, idx, idx+1)
		return nil
	})
}

func (s *ProviderService) update(id string, fn func(p *model.ProviderConfig) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.GetProvider(id)
	if err != nil {
		return err
	}
	if err := fn(&p); err != nil {
		return err
	}
	return s.store.Set(pathProviders.Child(id), p)
}

// SetDefault 设置默认服务商和模型，两者都为空表示取消默认
func (s *ProviderService) SetDefault(providerID, modelName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setDefaultLocked(providerID, modelName)
}

// setDefaultLocked 调用方持有 mu
func (s *ProviderService) setDefaultLocked(providerID, modelName string) error {
	if providerID != "" {
		p, err := s.GetProvider(providerID)
		if err != nil {
			return err
		}
		if !p.HasModel(modelName) {
			return fmt.Errorf("model %s: %w", modelName, ErrNotFound)
		}
	}
	cur := s.settings()
	cur.DefaultProvider = providerID
	cur.DefaultModel = modelName
	return s.store.Set(pathModels, cur)
}

// ResolveDefault 返回可直接用于请求的默认服务商和模型
//
// 启用状态与 apiKey/apiUrl 需要分别检查。
func (s *ProviderService) ResolveDefault() (model.ProviderConfig, string, error) {
	cur := s.settings()
	if cur.DefaultProvider == "" || cur.DefaultModel == "" {
		return model.ProviderConfig{}, "", ErrNoDefaultModel
	}
	p, ok := cur.Providers[cur.DefaultProvider]
	if !ok {
		return model.ProviderConfig{}, cur.DefaultModel, fmt.Errorf("provider %s: %w", cur.DefaultProvider, ErrNotFound)
	}
	if !p.Enabled {
		return p, cur.DefaultModel, ErrProviderDisabled
	}
	if !p.Ready() {
		return p, cur.DefaultModel, ErrProviderNotReady
	}
	return p, cur.DefaultModel, nil
}

// TestProvider 用指定模型检测服务商的 API 密钥，modelName 为空时取第一个模型
func (s *ProviderService) TestProvider(ctx context.Context, id, modelName string) (APIKeyTestResult, error) {
	p, err := s.GetProvider(id)
	if err != nil {
		return APIKeyTestResult{}, err
	}
	if !p.Ready() {
		return APIKeyTestResult{}, ErrProviderNotReady
	}
	if modelName == "" {
		if len(p.Models) == 0 {
			return APIKeyTestResult{}, fmt.Errorf("%w: no model to test", ErrInvalidInput)
		}
		modelName = p.Models[0]
	}
	return s.llm.TestAPIKey(ctx, p.APIURL, p.APIKey, modelName), nil
}

// ListRemoteModels 从服务商的 /models 接口获取模型列表
func (s *ProviderService) ListRemoteModels(ctx context.Context, id string) ([]string, error) {
	p, err := s.GetProvider(id)
	if err != nil {
		return nil, err
	}
	if !p.Ready() {
		return nil, ErrProviderNotReady
	}
	return s.llm.GetModels(ctx, p.APIURL, p.APIKey)
}
