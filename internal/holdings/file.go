package holdings

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rickgao/pricestream/internal/model"
)

// FileProvider reads holdings from a YAML or JSON file. The file holds either
// a list of holdings or an object with a "holdings" list:
//
//	holdings:
//	  - symbol: AAPL
//	    quantity: 100
//	    averageCost: 150.00
type FileProvider struct {
	path string
}

// NewFileProvider creates a provider reading path on every fetch.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// Fetch reads and parses the file.
func (p *FileProvider) Fetch(ctx context.Context) ([]model.Holding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("read holdings file: %w", err)
	}

	return ParseFile(data)
}

// ParseFile decodes holdings from YAML or JSON bytes.
func ParseFile(data []byte) ([]model.Holding, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse holdings: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	var records []record
	doc := root.Content[0]
	switch doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&records); err != nil {
			return nil, fmt.Errorf("parse holdings: %w", err)
		}
	case yaml.MappingNode:
		var wrapped struct {
			Holdings []record `yaml:"holdings"`
		}
		if err := doc.Decode(&wrapped); err != nil {
			return nil, fmt.Errorf("parse holdings: %w", err)
		}
		records = wrapped.Holdings
	default:
		return nil, fmt.Errorf("parse holdings: expected list or mapping at line %d", doc.Line)
	}

	holdings := make([]model.Holding, 0, len(records))
	for _, r := range records {
		h, err := r.holding()
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}
	return holdings, nil
}
