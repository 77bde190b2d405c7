package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	assetdomain "github.com/smallbiznis/servicebill/internal/asset/domain"
	"github.com/smallbiznis/servicebill/internal/config"
	tariffdomain "github.com/smallbiznis/servicebill/internal/tariff/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Service struct {
	log *zap.Logger

	clientsDir string
	tariffs    tariffdomain.Service
}

type ServiceParam struct {
	fx.In

	Log     *zap.Logger
	Config  config.Config
	Tariffs tariffdomain.Service
}

func NewService(p ServiceParam) assetdomain.Service {
	return &Service{
		log:        p.Log.Named("asset.service"),
		clientsDir: filepath.Join(p.Config.WorkDir, p.Config.ClientsSubdir),
		tariffs:    p.Tariffs,
	}
}

// NewServiceAt builds an asset service rooted at dir, used by tests.
func NewServiceAt(dir string, tariffs tariffdomain.Service, log *zap.Logger) assetdomain.Service {
	return &Service{
		log:        log.Named("asset.service"),
		clientsDir: dir,
		tariffs:    tariffs,
	}
}

func (s *Service) LoadClient(ctx context.Context, file string) (*assetdomain.Client, error) {
	path := filepath.Join(s.clientsDir, file)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", assetdomain.ErrClientFileInvalid, file, err)
	}

	var base map[string]any
	if err := yaml.Unmarshal(raw, &base); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", assetdomain.ErrClientFileInvalid, file, err)
	}
	if base == nil {
		base = map[string]any{}
	}

	merged, err := s.applyIncludes(base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}

	client, err := decodeClient(merged)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", assetdomain.ErrClientFileInvalid, file, err)
	}

	s.log.Debug("client loaded",
		zap.String("file", file),
		zap.String("client", client.Name),
		zap.Int("assets", len(client.Assets)+len(client.Servers)),
	)
	return client, nil
}

func (s *Service) LoadClients(ctx context.Context) ([]*assetdomain.Client, error) {
	entries, err := os.ReadDir(s.clientsDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", assetdomain.ErrClientFileInvalid, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isYAML(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	clients := make([]*assetdomain.Client, 0, len(names))
	for _, name := range names {
		client, err := s.LoadClient(ctx, name)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, nil
}

func (s *Service) ResolveAssets(ctx context.Context, client *assetdomain.Client, opts assetdomain.ResolveOptions) ([]assetdomain.Asset, error) {
	declared := make([]assetdomain.Asset, 0, len(client.Servers)+len(client.Assets))
	declared = append(declared, client.Servers...)
	declared = append(declared, client.Assets...)
	if client.ConfigurationManagement.Type == "salt" {
		declared = append(declared, client.ConfigurationManagement.Salt.Masters...)
	}

	assets := make([]assetdomain.Asset, 0, len(declared))
	for _, asset := range declared {
		if asset.Kind == "" {
			asset.Kind = assetdomain.DefaultAssetKind
		}
		if !asset.Active && !opts.IncludeInactive {
			continue
		}

		// An empty tariff history fails resolution the same way a
		// too-early event time does.
		if !opts.At.IsZero() {
			refs, err := tariffdomain.Resolve(asset.Tariffs, opts.At)
			if err != nil {
				return nil, fmt.Errorf("client %s asset %s: %w", client.Name, asset.FQDN, err)
			}
			plans, err := s.tariffs.ResolveRefs(ctx, refs)
			if err != nil {
				return nil, fmt.Errorf("client %s asset %s: %w", client.Name, asset.FQDN, err)
			}
			asset.ActivatedTariff = plans
			asset.Licenses = collectLicenses(plans)
		}

		assets = append(assets, asset)
	}

	assetdomain.SortAssetsForReport(assets)
	return assets, nil
}

// applyIncludes merges include fragments into base: every file in each dirs
// glob first, then the files list, in declaration order.
func (s *Service) applyIncludes(base map[string]any) (map[string]any, error) {
	inc, err := includeOf(base)
	if err != nil {
		return nil, err
	}
	if inc == nil {
		return base, nil
	}

	merged := map[string]any{}
	overlay(merged, base)

	for _, dir := range inc.Dirs {
		paths, err := s.expandIncludeDir(dir)
		if err != nil {
			return nil, err
		}
		for _, path := range paths {
			if skipped(path, inc.SkipFiles) {
				continue
			}
			layer, err := s.loadLayer(path)
			if err != nil {
				return nil, err
			}
			overlay(merged, layer)
		}
	}

	for _, file := range inc.Files {
		layer, err := s.loadLayer(filepath.Join(s.clientsDir, file))
		if err != nil {
			return nil, err
		}
		overlay(merged, layer)
	}

	delete(merged, "include")
	return merged, nil
}

// expandIncludeDir resolves one include.dirs entry to a sorted list of yaml
// fragment files. An entry names a directory under the clients dir, whose
// yaml files are all included; glob metacharacters in the entry are honored,
// and a pattern that already matches yaml files directly is used as is.
func (s *Service) expandIncludeDir(entry string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.clientsDir, entry))
	if err != nil {
		return nil, fmt.Errorf("%w: dirs %q: %v", assetdomain.ErrIncludeInvalid, entry, err)
	}
	sort.Strings(matches)

	var paths []string
	for _, match := range matches {
		fi, err := os.Stat(match)
		if err != nil {
			continue
		}
		if fi.IsDir() {
			inner, err := filepath.Glob(filepath.Join(match, "*"))
			if err != nil {
				return nil, fmt.Errorf("%w: dirs %q: %v", assetdomain.ErrIncludeInvalid, entry, err)
			}
			sort.Strings(inner)
			for _, p := range inner {
				if ifi, err := os.Stat(p); err != nil || ifi.IsDir() || !isYAML(p) {
					continue
				}
				paths = append(paths, p)
			}
			continue
		}
		if isYAML(match) {
			paths = append(paths, match)
		}
	}
	return paths, nil
}

func (s *Service) loadLayer(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", assetdomain.ErrIncludeInvalid, filepath.Base(path), err)
	}
	var layer map[string]any
	if err := yaml.Unmarshal(raw, &layer); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", assetdomain.ErrIncludeInvalid, filepath.Base(path), err)
	}
	if layer == nil {
		layer = map[string]any{}
	}
	return layer, nil
}

// includeOf extracts the include declaration from the raw document, before
// any merging happens.
func includeOf(doc map[string]any) (*assetdomain.Include, error) {
	raw, ok := doc["include"]
	if !ok || raw == nil {
		return nil, nil
	}
	buf, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", assetdomain.ErrIncludeInvalid, err)
	}
	var inc assetdomain.Include
	if err := yaml.Unmarshal(buf, &inc); err != nil {
		return nil, fmt.Errorf("%w: %v", assetdomain.ErrIncludeInvalid, err)
	}
	return &inc, nil
}

// decodeClient round-trips the merged document through yaml into the typed
// model, so the same tag set drives both file parsing and merge decoding.
func decodeClient(doc map[string]any) (*assetdomain.Client, error) {
	buf, err := yaml.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var client assetdomain.Client
	if err := yaml.Unmarshal(buf, &client); err != nil {
		return nil, err
	}
	if client.Name == "" {
		return nil, errors.New("missing name")
	}
	return &client, nil
}

func collectLicenses(plans []tariffdomain.Plan) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, plan := range plans {
		for _, lic := range plan.Licenses {
			if _, ok := seen[lic]; ok {
				continue
			}
			seen[lic] = struct{}{}
			out = append(out, lic)
		}
	}
	return out
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
