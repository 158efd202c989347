package config

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/ghodss/yaml"
)

// LoadClusterFile loads a ClusterConfig from a path to a YAML file,
// expanding any ${VAR} environment references first.
func LoadClusterFile(path string) (ClusterConfig, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return ClusterConfig{}, err
	}

	return LoadClusterBytes([]byte(os.ExpandEnv(string(contents))))
}

// LoadClusterBytes loads a ClusterConfig from YAML bytes.
func LoadClusterBytes(contents []byte) (ClusterConfig, error) {
	config := ClusterConfig{}
	if err := unmarshalYAMLStrict(contents, &config); err != nil {
		return ClusterConfig{}, err
	}
	return config, nil
}

// LoadExecutorConfigFile loads an ExecutorConfig from a path to a YAML
// file, expanding any ${VAR} environment references first.
func LoadExecutorConfigFile(path string) (ExecutorConfig, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return ExecutorConfig{}, err
	}

	return LoadExecutorConfigBytes([]byte(os.ExpandEnv(string(contents))))
}

// LoadExecutorConfigBytes loads an ExecutorConfig from YAML bytes.
func LoadExecutorConfigBytes(contents []byte) (ExecutorConfig, error) {
	config := ExecutorConfig{}
	if err := unmarshalYAMLStrict(contents, &config); err != nil {
		return ExecutorConfig{}, err
	}
	return config, nil
}

func unmarshalYAMLStrict(y []byte, o interface{}) error {
	jsonBytes, err := yaml.YAMLToJSON(y)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(jsonBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(o)
}
