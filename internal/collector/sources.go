package collector

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed sources.yaml
var defaultSourcesYAML []byte

// Source 描述一个 RSS/Atom 新闻源
type Source struct {
	Name       string   `yaml:"name" json:"name"`
	URL        string   `yaml:"url" json:"url"`
	Categories []string `yaml:"categories" json:"categories"`
}

// Registry 是进程启动时构建的只读新闻源列表，运行期间不会被修改
type Registry struct {
	sources []Source
}

type sourcesFile struct {
	Sources []Source `yaml:"sources"`
}

// NewRegistry 校验并拷贝一份源列表；名称必须唯一，顺序保持不变
func NewRegistry(sources []Source) (*Registry, error) {
	seen := make(map[string]struct{}, len(sources))
	out := make([]Source, 0, len(sources))
	for i, s := range sources {
		s.Name = strings.TrimSpace(s.Name)
		s.URL = strings.TrimSpace(s.URL)
		if s.Name == "" {
			return nil, fmt.Errorf("source #%d: name is required", i)
		}
		if s.URL == "" {
			return nil, fmt.Errorf("source %q: url is required", s.Name)
		}
		if _, ok := seen[s.Name]; ok {
			return nil, fmt.Errorf("source %q: duplicate name", s.Name)
		}
		seen[s.Name] = struct{}{}
		s.Categories = append([]string(nil), s.Categories...)
		out = append(out, s)
	}
	return &Registry{sources: out}, nil
}

// LoadRegistry 从 YAML 文件加载新闻源；path 为空时使用内置默认列表
func LoadRegistry(path string) (*Registry, error) {
	data := defaultSourcesYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read sources file: %w", err)
		}
		data = b
	}
	return parseRegistry(data)
}

// DefaultRegistry 返回内置的默认新闻源
func DefaultRegistry() *Registry {
	r, err := parseRegistry(defaultSourcesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded sources.yaml is invalid: %v", err))
	}
	return r
}

func parseRegistry(data []byte) (*Registry, error) {
	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}
	if len(f.Sources) == 0 {
		return nil, fmt.Errorf("parse sources: no sources defined")
	}
	return NewRegistry(f.Sources)
}

// Sources 返回按声明顺序排列的副本，调用方修改不会影响注册表
func (r *Registry) Sources() []Source {
	out := make([]Source, len(r.sources))
	for i, s := range r.sources {
		s.Categories = append([]string(nil), s.Categories...)
		out[i] = s
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.sources)
}

func (r *Registry) Lookup(name string) (Source, bool) {
	for _, s := range r.sources {
		if s.Name == name {
			s.Categories = append([]string(nil), s.Categories...)
			return s, true
		}
	}
	return Source{}, false
}
