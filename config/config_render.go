package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/0xPolygon/ctc/log"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/valyala/fasttemplate"
)

const (
	varOpen  = "{{"
	varClose = "}}"
)

var (
	ErrCycleVars                 = errors.New("cycle vars")
	ErrMissingVars               = errors.New("missing vars")
	ErrUnsupportedConfigFileType = errors.New("unsupported config file type")

	// `A = {{B}}` is not valid TOML, so bare vars travel through koanf as `A = "{{B:int}}"`
	bareVarRe   = regexp.MustCompile(`=\s*\{\{([^}:]+)\}\}`)
	quotedVarRe = regexp.MustCompile(`=\s*"\{\{([^}:]+):int\}\}"`)
	typedVarRe  = regexp.MustCompile(`\{\{([^}:]+):int\}\}`)
)

// FileData is the content of one configuration source
type FileData struct {
	Name    string
	Content string
}

// Renderer merges TOML sources, later sources overriding earlier ones, and resolves the
// {{var}} references of the result. A var is looked up first on the environment as
// <EnvPrefix>_<var with dots replaced by underscores>, then on the merged values.
type Renderer struct {
	Files     []FileData
	LookupEnv func(key string) (string, bool)
	EnvPrefix string
}

func NewRenderer(files []FileData, envPrefix string) *Renderer {
	return &Renderer{
		Files:     files,
		LookupEnv: os.LookupEnv,
		EnvPrefix: envPrefix,
	}
}

// Render merges every source and resolves its vars
func (r *Renderer) Render() (string, error) {
	merged, err := r.Merge()
	if err != nil {
		return "", fmt.Errorf("error merging config files: %w", err)
	}
	return r.Resolve(merged)
}

// Merge returns the merged TOML with the vars left unresolved
func (r *Renderer) Merge() (string, error) {
	k := koanf.New(".")
	for _, file := range r.Files {
		content := quoteVars(file.Content)
		if err := k.Load(rawbytes.Provider([]byte(content)), toml.Parser()); err != nil {
			log.Errorf("error loading config file %s: %v", file.Name, err)
			return "", fmt.Errorf("error loading config file %s: %w", file.Name, err)
		}
	}
	merged, err := k.Marshal(toml.Parser())
	if err != nil {
		return "", fmt.Errorf("error marshaling merged config: %w", err)
	}
	return unquoteVars(string(merged)), nil
}

// Resolve substitutes the vars of data until none is left. A var that is neither defined
// nor set on the environment fails with ErrMissingVars. Vars that only reference each
// other never shrink the pending set and fail with ErrCycleVars, returning data untouched.
func (r *Renderer) Resolve(data string) (string, error) {
	raw, missing, err := r.substitute(data)
	if err != nil {
		return "", err
	}
	resolved := stripTypeMarks(raw)
	if len(missing) > 0 {
		return resolved, fmt.Errorf("%w: %v", ErrMissingVars, missing)
	}

	current := resolved
	pending := varsOf(unquoteVars(current))
	for len(pending) > 0 {
		log.Debugf("resolving pending config vars: %v", pending)
		raw, _, err = r.substitute(unquoteVars(current))
		if err != nil {
			return "", err
		}
		next := stripTypeMarks(unquoteVars(raw))
		left := varsOf(next)
		if len(left) == len(pending) {
			return data, fmt.Errorf("%w: %v", ErrCycleVars, left)
		}
		current, pending = next, left
	}
	return current, nil
}

// substitute runs one pass over data. Vars whose value is itself a var are replaced by
// that var, tagged as {{name:int}}. Unknown vars are kept and reported as missing.
func (r *Renderer) substitute(data string) (string, []string, error) {
	tpl, err := fasttemplate.NewTemplate(data, varOpen, varClose)
	if err != nil {
		return "", nil, fmt.Errorf("error parsing config template: %w", err)
	}
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider([]byte(quoteVars(data))), toml.Parser()); err != nil {
		return "", nil, fmt.Errorf("error parsing config values: %w", err)
	}
	values := k.All()

	var missing []string
	out := tpl.ExecuteFuncString(func(w io.Writer, tag string) (int, error) {
		if v, ok := r.lookupEnv(tag); ok {
			return w.Write([]byte(v))
		}
		if v, ok := values[tag]; ok {
			return fmt.Fprintf(w, "%v", v)
		}
		if !contains(missing, tag) {
			missing = append(missing, tag)
		}
		return w.Write([]byte(varOpen + tag + varClose))
	})
	return out, missing, nil
}

func (r *Renderer) lookupEnv(tag string) (string, bool) {
	return r.LookupEnv(r.EnvPrefix + "_" + strings.ReplaceAll(tag, ".", "_"))
}

// varsOf lists every var occurrence of data, duplicates included
func varsOf(data string) []string {
	tpl, err := fasttemplate.NewTemplate(data, varOpen, varClose)
	if err != nil {
		return nil
	}
	var vars []string
	tpl.ExecuteFuncString(func(w io.Writer, tag string) (int, error) {
		vars = append(vars, tag)
		return 0, nil
	})
	return vars
}

func contains(vars []string, search string) bool {
	for _, v := range vars {
		if v == search {
			return true
		}
	}
	return false
}

func quoteVars(data string) string {
	return bareVarRe.ReplaceAllString(data, `= "{{${1}:int}}"`)
}

func unquoteVars(data string) string {
	return quotedVarRe.ReplaceAllString(data, `= {{${1}}}`)
}

func stripTypeMarks(data string) string {
	return typedVarRe.ReplaceAllString(data, `{{${1}}}`)
}

func readFileToString(filename string) (string, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// convertFileToToml accepts JSON sources, TOML is returned as is
func convertFileToToml(fileData string, fileType string) (string, error) {
	switch strings.ToLower(fileType) {
	case "json":
		k := koanf.New(".")
		if err := k.Load(rawbytes.Provider([]byte(fileData)), json.Parser()); err != nil {
			return fileData, fmt.Errorf("error loading json file: %w", err)
		}
		tomlData, err := toml.Parser().Marshal(k.Raw())
		if err != nil {
			return fileData, fmt.Errorf("error converting json to toml: %w", err)
		}
		return string(tomlData), nil
	case "yml", "yaml", "ini":
		return fileData, fmt.Errorf("%w: cannot convert %s to TOML", ErrUnsupportedConfigFileType, fileType)
	default:
		log.Warnf("config file type %s unknown, assuming TOML", fileType)
		return fileData, nil
	}
}
