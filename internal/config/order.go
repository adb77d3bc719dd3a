package config

import (
	"gopkg.in/yaml.v3"
)

// declaredOrder returns the keys of the top-level datasets mapping in the
// order they appear in the document. koanf flattens into Go maps, which loses
// that order.
func declaredOrder(data []byte) ([]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, nil
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "datasets" {
			continue
		}
		section := root.Content[i+1]
		if section.Kind == yaml.AliasNode {
			section = section.Alias
		}
		if section.Kind == yaml.ScalarNode && section.Tag == "!!null" {
			return nil, nil
		}
		if section.Kind != yaml.MappingNode {
			return nil, ErrNotMapping
		}
		keys := make([]string, 0, len(section.Content)/2)
		for j := 0; j+1 < len(section.Content); j += 2 {
			keys = append(keys, section.Content[j].Value)
		}
		return keys, nil
	}
	return nil, nil
}
