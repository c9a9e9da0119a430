package utils

import (
	_ "embed"
	"fmt"
	"slices"

	"github.com/q-controller/mediarelay/src/pkg/relay"
	"gopkg.in/yaml.v3"
)

const (
	Tag            = "MediaRelay"
	DownloadPrefix = "/i"
)

//go:embed docs/openapi.yaml
var openAPISpecs string

// GenerateOpenAPISpecs merges the relay paths into the base document.
func GenerateOpenAPISpecs() (string, error) {
	var spec map[string]any
	if err := yaml.Unmarshal([]byte(openAPISpecs), &spec); err != nil {
		return "", fmt.Errorf("failed to parse OpenAPI spec: %w", err)
	}

	tags, _ := spec["tags"].([]any)
	if !slices.ContainsFunc(tags, func(t any) bool {
		m, ok := t.(map[string]any)
		return ok && m["name"] == Tag
	}) {
		tags = append(tags, map[string]any{"name": Tag})
	}
	spec["tags"] = tags

	var relaySpec map[string]any
	if err := yaml.Unmarshal([]byte(relay.GetOpenAPISpec(relay.UploadPath, DownloadPrefix, Tag)), &relaySpec); err != nil {
		return "", fmt.Errorf("failed to parse relay OpenAPI spec: %w", err)
	}

	paths, ok := spec["paths"].(map[string]any)
	if !ok {
		paths = make(map[string]any)
	}
	for k, v := range relaySpec {
		paths[k] = v
	}
	spec["paths"] = paths

	bytes, bytesErr := yaml.Marshal(spec)
	if bytesErr != nil {
		return "", fmt.Errorf("failed to marshal OpenAPI spec: %w", bytesErr)
	}
	return string(bytes), nil
}
