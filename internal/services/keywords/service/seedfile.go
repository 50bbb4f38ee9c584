package service

import (
	"bytes"
	"io"
	"os"

	perr "hntrends/internal/platform/errors"
	"hntrends/internal/services/keywords/domain"

	"gopkg.in/yaml.v3"
)

// SeedFile is the on-disk shape of keywords.yaml
//
//	keywords:
//	  - keyword: rust
//	    display_name: Rust
//	    include_hiring: true
type SeedFile struct {
	Keywords []domain.Keyword `yaml:"keywords"`
}

// LoadSeedFile reads and decodes a keyword seed file
func LoadSeedFile(path string) ([]domain.Keyword, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeConfig, "read seed file %s", path)
	}
	return DecodeSeed(bytes.NewReader(b))
}

// DecodeSeed decodes a seed document, rejecting unknown fields
func DecodeSeed(r io.Reader) ([]domain.Keyword, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f SeedFile
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, perr.Wrap(err, perr.ErrorCodeConfig, "decode seed file")
	}
	return f.Keywords, nil
}
