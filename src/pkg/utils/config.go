package utils

import (
	"bytes"
	"errors"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Unmarshal decodes the YAML document at path into value.
func Unmarshal[T any](value *T, path string) (retErr error) {
	file, openFileErr := os.Open(path)
	if openFileErr != nil {
		return openFileErr
	}

	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			if retErr == nil {
				// Return close error if no other error
				retErr = closeErr
			} else {
				retErr = errors.Join(retErr, closeErr)
			}
		}
	}()

	fileContents, readFileErr := io.ReadAll(file)
	if readFileErr != nil {
		return readFileErr
	}

	decoder := yaml.NewDecoder(bytes.NewReader(fileContents))
	decoder.KnownFields(true)
	if decodeErr := decoder.Decode(value); decodeErr != nil && !errors.Is(decodeErr, io.EOF) {
		return decodeErr
	}

	return nil
}
