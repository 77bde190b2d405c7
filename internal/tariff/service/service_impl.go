package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/smallbiznis/servicebill/internal/config"
	tariffdomain "github.com/smallbiznis/servicebill/internal/tariff/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Service struct {
	log *zap.Logger

	tariffsDir string

	mu    sync.Mutex
	cache map[string]*tariffdomain.Plan
}

type ServiceParam struct {
	fx.In

	Log    *zap.Logger
	Config config.Config
}

func NewService(p ServiceParam) tariffdomain.Service {
	return &Service{
		log:        p.Log.Named("tariff.service"),
		tariffsDir: filepath.Join(p.Config.WorkDir, p.Config.TariffsSubdir),
		cache:      map[string]*tariffdomain.Plan{},
	}
}

// NewServiceAt builds a tariff service rooted at dir, used by tests and by
// callers resolving against a checked-out configuration tree.
func NewServiceAt(dir string, log *zap.Logger) tariffdomain.Service {
	return &Service{
		log:        log.Named("tariff.service"),
		tariffsDir: dir,
		cache:      map[string]*tariffdomain.Plan{},
	}
}

func (s *Service) LoadPlan(ctx context.Context, file string) (*tariffdomain.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if plan, ok := s.cache[file]; ok {
		return plan, nil
	}

	path := filepath.Join(s.tariffsDir, file)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", tariffdomain.ErrPlanFileMissing, path, err)
	}

	var plan tariffdomain.Plan
	if err := yaml.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", tariffdomain.ErrPlanInvalid, path, err)
	}
	if plan.Service == "" || plan.Plan == "" {
		return nil, fmt.Errorf("%w: %s: service and plan are required", tariffdomain.ErrPlanInvalid, path)
	}

	s.log.Debug("loaded tariff plan",
		zap.String("file", file),
		zap.String("plan", plan.Label()),
	)

	s.cache[file] = &plan
	return &plan, nil
}

func (s *Service) ResolveRefs(ctx context.Context, refs []tariffdomain.PlanRef) ([]tariffdomain.Plan, error) {
	plans := make([]tariffdomain.Plan, 0, len(refs))
	for _, ref := range refs {
		if ref.IsFile() {
			plan, err := s.LoadPlan(ctx, ref.File)
			if err != nil {
				return nil, err
			}
			plans = append(plans, *plan)
			continue
		}
		if ref.Inline == nil {
			return nil, fmt.Errorf("%w: empty tariff ref", tariffdomain.ErrPlanInvalid)
		}
		plans = append(plans, *ref.Inline)
	}
	return plans, nil
}
