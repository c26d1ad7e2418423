// file: internal/store/recipe.go
package store

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/dkoosis/promptd/internal/logging"
	"github.com/dkoosis/promptd/internal/template"
)

// recipeFile is the on-disk YAML shape of a template recipe. The format
// mirrors the authoring tool's export: a top-level "recipe" mapping with
// title, description, optional instructions prepended to the prompt body,
// the prompt text itself, and a parameter list.
type recipeFile struct {
	Recipe recipeBody `yaml:"recipe"`
	// Name is a legacy fallback used when recipe.title is absent.
	Name string `yaml:"name"`
}

type recipeBody struct {
	Title        string            `yaml:"title"`
	Version      int               `yaml:"version"`
	Description  string            `yaml:"description"`
	Instructions string            `yaml:"instructions"`
	Prompt       string            `yaml:"prompt"`
	Parameters   []recipeParameter `yaml:"parameters"`
}

type recipeParameter struct {
	Key         string      `yaml:"key"`
	InputType   string      `yaml:"input_type"`
	Requirement string      `yaml:"requirement"`
	Description string      `yaml:"description"`
	Default     interface{} `yaml:"default"`
}

// slugRuns matches runs of characters that are not lowercase alphanumerics.
var slugRuns = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts an arbitrary title into a lowercase, underscore-delimited
// template name composed of [a-z0-9_]. An empty result falls back to "prompt".
func Slugify(value string) string {
	s := strings.ToLower(strings.TrimSpace(value))
	s = slugRuns.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "prompt"
	}
	return s
}

// ParseRecipe parses YAML recipe content into an immutable Template. The body
// is parsed here, at publish time, so structurally malformed templates are
// rejected before they become visible to resolution.
func ParseRecipe(data []byte, sourceName string) (*template.Template, error) {
	var file recipeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(err, "failed to parse recipe YAML %q", sourceName)
	}
	recipe := file.Recipe

	if strings.TrimSpace(recipe.Prompt) == "" {
		return nil, errors.Newf("recipe %q has no prompt text", sourceName)
	}

	title := recipe.Title
	if title == "" {
		title = file.Name
	}
	if title == "" {
		base := filepath.Base(sourceName)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	// Instructions, when present, are prepended above the prompt separated by
	// a blank line.
	source := recipe.Prompt
	if instructions := strings.TrimSpace(recipe.Instructions); instructions != "" {
		source = instructions + "\n\n" + recipe.Prompt
	}

	body, err := template.Parse(source)
	if err != nil {
		return nil, errors.Wrapf(err, "recipe %q has a malformed prompt body", sourceName)
	}

	params, err := parseParameters(recipe.Parameters, sourceName)
	if err != nil {
		return nil, err
	}

	version := recipe.Version
	if version == 0 {
		version = 1
	}
	if version < 0 {
		return nil, errors.Newf("recipe %q declares negative version %d", sourceName, version)
	}

	return &template.Template{
		Name:        Slugify(title),
		Version:     version,
		Description: recipe.Description,
		Parameters:  params,
		Body:        body,
		Source:      sourceName,
	}, nil
}

// parseParameters converts recipe parameter declarations, validating names,
// requirement markers, and default-value types.
func parseParameters(raw []recipeParameter, sourceName string) ([]template.Parameter, error) {
	params := make([]template.Parameter, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, rp := range raw {
		key := strings.TrimSpace(rp.Key)
		if key == "" {
			// Tolerated in the legacy format: a parameter without a key is skipped.
			continue
		}
		if _, dup := seen[key]; dup {
			return nil, errors.Newf("recipe %q declares parameter %q twice", sourceName, key)
		}
		seen[key] = struct{}{}

		paramType := template.ParseParamType(rp.InputType)
		required := strings.EqualFold(strings.TrimSpace(rp.Requirement), "required")

		defaultValue := template.Missing()
		if rp.Default != nil {
			converted, err := template.FromInterface(rp.Default)
			if err != nil {
				return nil, errors.Wrapf(err, "recipe %q parameter %q has an invalid default", sourceName, key)
			}
			if !paramType.Accepts(converted) {
				return nil, errors.Newf("recipe %q parameter %q default does not match declared type %s",
					sourceName, key, paramType)
			}
			defaultValue = converted
		}

		params = append(params, template.Parameter{
			Name:        key,
			Type:        paramType,
			Required:    required,
			Default:     defaultValue,
			Description: strings.TrimSpace(rp.Description),
		})
	}
	return params, nil
}

// LoadFile reads and parses one recipe file.
func LoadFile(path string) (*template.Template, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- recipe paths come from the configured directory.
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read recipe file %q", path)
	}
	return ParseRecipe(data, filepath.Base(path))
}

// ScanDir discovers *.yaml and *.yml recipe files in dir (sorted for a
// deterministic publish order) and parses each into template families. A
// recipe that fails to parse or collides with an already-seen (name, version)
// pair is logged and skipped rather than aborting the remaining recipes.
func ScanDir(dir string, logger logging.Logger) (map[string][]*template.Template, error) {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	logger = logger.WithField("component", "recipe_loader")

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, errors.Newf("recipe directory not found: %s", dir)
	}

	yamlFiles, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to glob recipe directory")
	}
	ymlFiles, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to glob recipe directory")
	}
	files := append(yamlFiles, ymlFiles...)
	sort.Strings(files)

	families := make(map[string][]*template.Template)
	for _, path := range files {
		tmpl, err := LoadFile(path)
		if err != nil {
			logger.Warn("Skipping recipe.", "path", path, "error", err)
			continue
		}
		if hasVersion(families[tmpl.Name], tmpl.Version) {
			logger.Warn("Skipping recipe: version already published by an earlier file.",
				"path", path, "template", tmpl.Name, "version", tmpl.Version)
			continue
		}
		families[tmpl.Name] = append(families[tmpl.Name], tmpl)
	}
	if len(families) == 0 {
		logger.Warn("No recipes published.", "dir", dir, "files_seen", len(files))
	}
	return families, nil
}

// hasVersion reports whether the family already contains the version.
func hasVersion(family []*template.Template, version int) bool {
	for _, t := range family {
		if t.Version == version {
			return true
		}
	}
	return false
}

// LoadDir scans dir and atomically installs the result as the store's index.
// Returns the number of templates published.
func LoadDir(s *Store, dir string, logger logging.Logger) (int, error) {
	families, err := ScanDir(dir, logger)
	if err != nil {
		return 0, err
	}
	s.SwapAll(families)
	count := 0
	for _, family := range families {
		count += len(family)
	}
	return count, nil
}
