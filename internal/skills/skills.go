// Package skills loads filesystem-based instruction modules. A skill
// is a directory holding a SKILL.md file: YAML frontmatter (metadata)
// plus a markdown instruction body, with optional resource files under
// resources/.
package skills

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nugget/ore-agent/internal/router"
)

// SkillFilename is the per-directory metadata and instruction file.
const SkillFilename = "SKILL.md"

// envSkillsRoot overrides the configured skills root, for development
// and bundled-skill setups.
const envSkillsRoot = "ORE_SKILLS_ROOT"

// Metadata is the level-1 view of a skill: enough to list and route,
// without loading the full instruction body.
type Metadata struct {
	Name        string
	Description string
	Hints       []string
	Path        string // absolute skill directory
}

// frontmatter is the YAML block at the top of SKILL.md.
type frontmatter struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Hints       []string `yaml:"hints"`
}

// DefaultRoot returns the skills root: the ORE_SKILLS_ROOT environment
// variable when set, otherwise <fallback>. A typical fallback is
// ~/.ore/skills.
func DefaultRoot(fallback string) string {
	if root := os.Getenv(envSkillsRoot); root != "" {
		return root
	}
	return fallback
}

// LoadMetadata parses the frontmatter of <dir>/SKILL.md. Required
// keys: name, description. Optional: hints.
func LoadMetadata(dir string) (Metadata, error) {
	front, _, err := readSkillFile(dir)
	if err != nil {
		return Metadata{}, err
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(front), &fm); err != nil {
		return Metadata{}, fmt.Errorf("parse frontmatter in %s: %w", dir, err)
	}
	if strings.TrimSpace(fm.Name) == "" {
		return Metadata{}, fmt.Errorf("missing required 'name' in %s", filepath.Join(dir, SkillFilename))
	}
	if strings.TrimSpace(fm.Description) == "" {
		return Metadata{}, fmt.Errorf("missing required 'description' in %s", filepath.Join(dir, SkillFilename))
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	return Metadata{
		Name:        fm.Name,
		Description: fm.Description,
		Hints:       fm.Hints,
		Path:        abs,
	}, nil
}

// LoadInstructions returns the level-2 instruction body: everything
// after the closing frontmatter fence, trimmed.
func LoadInstructions(dir string) (string, error) {
	_, body, err := readSkillFile(dir)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(body), nil
}

// LoadResource reads a level-3 resource file from <dir>/resources/.
// The resolved path must stay inside the resources directory; any
// traversal attempt is rejected.
func LoadResource(dir, ref string) (string, error) {
	resourcesRoot, err := filepath.Abs(filepath.Join(dir, "resources"))
	if err != nil {
		return "", err
	}
	target, err := filepath.Abs(filepath.Join(resourcesRoot, ref))
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(resourcesRoot, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal blocked: %q resolves outside %s", ref, resourcesRoot)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("resource not found: %s", target)
		}
		return "", err
	}
	return string(data), nil
}

// Registry maps skill name to metadata.
type Registry map[string]Metadata

// BuildRegistry scans root for subdirectories containing SKILL.md and
// parses each. Malformed skills are skipped with a warning rather than
// failing the whole scan. A missing root yields an empty registry.
func BuildRegistry(logger *slog.Logger, root string) Registry {
	if logger == nil {
		logger = slog.Default()
	}
	registry := Registry{}

	entries, err := os.ReadDir(root)
	if err != nil {
		return registry
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		dir := filepath.Join(root, name)
		if _, err := os.Stat(filepath.Join(dir, SkillFilename)); err != nil {
			continue
		}
		meta, err := LoadMetadata(dir)
		if err != nil {
			logger.Warn("skipping malformed skill", "dir", dir, "error", err)
			continue
		}
		registry[meta.Name] = meta
	}

	return registry
}

// Targets projects the registry into routing targets sorted by name.
// Mirrors tools.Targets for the tool registry.
func Targets(registry Registry) []router.Target {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	targets := make([]router.Target, 0, len(names))
	for _, name := range names {
		meta := registry[name]
		targets = append(targets, router.Target{
			Name:        meta.Name,
			Type:        router.TypeSkill,
			Description: meta.Description,
			Hints:       append([]string(nil), meta.Hints...),
		})
	}
	return targets
}

// readSkillFile splits <dir>/SKILL.md into frontmatter and body. The
// frontmatter must open with "---" on the first non-blank line and
// close with a second "---" fence.
func readSkillFile(dir string) (front, body string, err error) {
	path := filepath.Join(dir, SkillFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", fmt.Errorf("no %s in %s", SkillFilename, dir)
		}
		return "", "", err
	}

	text := strings.TrimLeft(string(data), "\n")
	if !strings.HasPrefix(text, "---") {
		return "", "", fmt.Errorf("no YAML frontmatter found in %s", path)
	}

	rest := strings.TrimLeft(text[3:], "\n")
	closeIdx := strings.Index(rest, "\n---")
	if closeIdx == -1 {
		return "", "", fmt.Errorf("unclosed YAML frontmatter in %s", path)
	}

	front = rest[:closeIdx]
	body = rest[closeIdx+len("\n---"):]
	return front, body, nil
}
