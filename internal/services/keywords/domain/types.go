// Package domain defines the keyword registry types and ports
package domain

import (
	"context"
	"strings"

	"hntrends/internal/core/textnorm"
	perr "hntrends/internal/platform/errors"
	"hntrends/internal/platform/validate"
)

// MaxTokenLen caps a keyword literal in bytes
const MaxTokenLen = 64

// Keyword is one configured technology keyword
// Token is the identity and the literal written into fact rows
type Keyword struct {
	Token         string `yaml:"keyword" validate:"required,max=64,lowercase,keyword"`
	DisplayName   string `yaml:"display_name" validate:"max=128"`
	IncludeHiring bool   `yaml:"include_hiring"`
	ImagePath     string `yaml:"image_path" validate:"max=256"`
}

// ReaderPort lists the active keywords for a run
type ReaderPort interface {
	List(ctx context.Context) ([]Keyword, error)
}

// SeederPort upserts keywords into keyword_list (admin only)
type SeederPort interface {
	Seed(ctx context.Context, list []Keyword) (int, error)
}

// StorageRepo is the keyword_list persistence surface
type StorageRepo interface {
	List(ctx context.Context) ([]Keyword, error)
	Upsert(ctx context.Context, k Keyword) error
}

func init() {
	// a keyword must yield at least one index token or it can never match
	_ = validate.RegisterValidation("keyword", "{0} must contain at least one letter, digit, '#' or '+'",
		func(fl validate.FieldLevel) bool {
			_, err := textnorm.MatchExpr(fl.Field().String())
			return err == nil
		})
}

// Validate checks one keyword row
func (k Keyword) Validate() error {
	if err := validate.Struct(k); err != nil {
		return perr.WithOp(err, "keywords.validate")
	}
	return nil
}

// ValidateList checks every row and rejects duplicate tokens
// An empty list is valid: the run then produces empty fact tables
func ValidateList(list []Keyword) error {
	seen := make(map[string]struct{}, len(list))
	for i, k := range list {
		if err := k.Validate(); err != nil {
			return perr.Wrapf(err, perr.CodeOf(err), "keyword row %d (%q)", i, k.Token)
		}
		if _, dup := seen[k.Token]; dup {
			return perr.WithOp(perr.DuplicateKeyf("duplicate keyword %q", k.Token), "keywords.validate")
		}
		seen[k.Token] = struct{}{}
	}
	return nil
}

// Normalize trims surrounding space and lowercases the token
// Used on seed input only; rows read for a run are validated as stored
func Normalize(k Keyword) Keyword {
	k.Token = strings.ToLower(strings.TrimSpace(k.Token))
	k.DisplayName = strings.TrimSpace(k.DisplayName)
	k.ImagePath = strings.TrimSpace(k.ImagePath)
	if k.DisplayName == "" {
		k.DisplayName = k.Token
	}
	return k
}

// Tokens returns the keyword literals in list order
func Tokens(list []Keyword) []string {
	out := make([]string, len(list))
	for i, k := range list {
		out[i] = k.Token
	}
	return out
}
