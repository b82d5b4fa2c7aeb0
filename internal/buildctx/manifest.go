package buildctx

import (
	"encoding/xml"
	"errors"
	"os"
	"strconv"
	"strings"
)

// Manifest holds the two values the build reads from AndroidManifest.xml.
type Manifest struct {
	// Package is the application package name; empty when the attribute is absent.
	Package string
	// HasCode is false only when <application android:hasCode="false">.
	HasCode bool
}

type manifestXML struct {
	XMLName     xml.Name `xml:"manifest"`
	Package     string   `xml:"package,attr"`
	Application struct {
		HasCode string `xml:"http://schemas.android.com/apk/res/android hasCode,attr"`
	} `xml:"application"`
}

// ReadManifest parses the manifest at path. A missing file yields a zero
// Package and HasCode true; malformed XML or an invalid hasCode value is a
// ConfigError.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Manifest{HasCode: true}, nil
		}
		return nil, &ConfigError{Key: "manifest.file", Msg: "cannot read " + path, Err: err}
	}

	var doc manifestXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigError{Key: "manifest.file", Msg: "cannot parse " + path, Err: err}
	}

	m := &Manifest{Package: strings.TrimSpace(doc.Package), HasCode: true}
	if v := strings.TrimSpace(doc.Application.HasCode); v != "" {
		hasCode, err := strconv.ParseBool(v)
		if err != nil {
			return nil, configErrorf("android:hasCode", "invalid value %q in %s", v, path)
		}
		m.HasCode = hasCode
	}
	return m, nil
}
