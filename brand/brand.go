// Package brand decodes the application branding Google embeds in its OAuth
// error page.
package brand

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Attribute is the HTML attribute carrying the encoded branding.
const Attribute = "data-client-auth-config-brand"

// valuePrefix is sometimes prepended to the attribute value.
const valuePrefix = "%.@."

const fieldCount = 7

var (
	ErrMarkerNotFound = errors.New("marker attribute not found")
	ErrAttributeEmpty = errors.New("marker attribute empty")
	ErrDecode         = errors.New("decode brand value")
)

// Details is the public metadata registered for an OAuth client.
type Details struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	LogoSrc     string   `json:"logoSrc,omitempty"`
	Website     string   `json:"website"`
	TermsURLs   []string `json:"termsUrls"`
	PrivacyURLs []string `json:"privacyUrls"`
}

// Extract parses an HTML document and decodes the first element exposing
// the brand attribute.
func Extract(r io.Reader) (Details, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Details{}, fmt.Errorf("parse html: %w", err)
	}

	value, ok := findAttribute(doc, Attribute)
	if !ok {
		return Details{}, ErrMarkerNotFound
	}
	if value == "" {
		return Details{}, ErrAttributeEmpty
	}
	return Parse(value)
}

// Parse decodes a raw attribute value. The first field is taken verbatim as
// the client ID, the following six are JSON literals.
func Parse(value string) (Details, error) {
	parts := strings.Split(strings.TrimPrefix(value, valuePrefix), ",")
	if len(parts) < fieldCount {
		return Details{}, fmt.Errorf("%w: expected %d fields, got %d", ErrDecode, fieldCount, len(parts))
	}

	d := Details{ID: parts[0]}
	fields := []struct {
		name string
		dst  any
	}{
		{"name", &d.Name},
		{"logoSrc", &d.LogoSrc},
		{"email", &d.Email},
		{"website", &d.Website},
		{"termsUrls", &d.TermsURLs},
		{"privacyUrls", &d.PrivacyURLs},
	}
	for i, f := range fields {
		if err := json.Unmarshal([]byte(parts[i+1]), f.dst); err != nil {
			return Details{}, fmt.Errorf("%w: field %s: %v", ErrDecode, f.name, err)
		}
	}
	return d, nil
}

// findAttribute walks the tree in document order and returns the value of the
// first matching attribute.
func findAttribute(n *html.Node, key string) (string, bool) {
	if n.Type == html.ElementNode {
		for _, attr := range n.Attr {
			if attr.Namespace == "" && attr.Key == key {
				return attr.Val, true
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if v, ok := findAttribute(c, key); ok {
			return v, true
		}
	}
	return "", false
}
