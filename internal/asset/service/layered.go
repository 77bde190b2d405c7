package service

// Layered include policy, field by field:
//
//	assets, servers  concatenate across layers, base first
//	everything else  deep-merge, later layer wins on scalars and lists
//
// The concatenation of the asset lists is a deliberate deviation from plain
// deep-merge: include fragments add assets, they never replace the base
// declaration.

import (
	"fmt"
	"strings"
)

const (
	keyAssets  = "assets"
	keyServers = "servers"
)

// overlay merges src into dst under the layered include policy and returns
// dst.
func overlay(dst, src map[string]any) map[string]any {
	baseAssets := asSlice(dst[keyAssets])
	baseServers := asSlice(dst[keyServers])
	srcAssets := asSlice(src[keyAssets])
	srcServers := asSlice(src[keyServers])

	deepMerge(dst, src)

	dst[keyAssets] = append(baseAssets, srcAssets...)
	dst[keyServers] = append(baseServers, srcServers...)
	return dst
}

// deepMerge merges mappings recursively; scalars and lists from src win.
func deepMerge(dst, src map[string]any) {
	for key, sv := range src {
		if dv, ok := dst[key]; ok {
			dm, dok := asMap(dv)
			sm, sok := asMap(sv)
			if dok && sok {
				deepMerge(dm, sm)
				dst[key] = dm
				continue
			}
		}
		dst[key] = sv
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func asSlice(v any) []any {
	if s, ok := v.([]any); ok {
		return s
	}
	return nil
}

// skipped reports whether the include path matches any of the skip_files
// fragments. Matching is by substring over the whole path, so fragments may
// carry a directory component.
func skipped(path string, skipFiles []string) bool {
	for _, fragment := range skipFiles {
		if fragment != "" && strings.Contains(path, fragment) {
			return true
		}
	}
	return false
}
