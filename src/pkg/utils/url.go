package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

func IsHTTP(rawURL string) bool {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (parsedURL.Scheme == "http" || parsedURL.Scheme == "https") && parsedURL.Host != ""
}

// JoinURL appends path segments to base with exactly one slash between them.
func JoinURL(base string, segments ...string) string {
	out := strings.TrimSuffix(base, "/")
	for _, s := range segments {
		out += "/" + strings.Trim(s, "/")
	}
	return out
}

func Hash(s string) string {
	hash := sha256.New()
	hash.Write([]byte(s))
	return hex.EncodeToString(hash.Sum(nil))
}
