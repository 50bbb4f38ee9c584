package service

import (
	"strings"
	"testing"

	perr "hntrends/internal/platform/errors"
	"hntrends/internal/platform/testkit"
)

func TestLoadSeedFile(t *testing.T) {
	p := testkit.WriteFile(t, "keywords.yaml", `
keywords:
  - keyword: rust
    display_name: Rust
    include_hiring: true
    image_path: img/rust.svg
  - keyword: c#
    display_name: "C#"
`)
	got, err := LoadSeedFile(p)
	if err != nil {
		t.Fatalf("LoadSeedFile: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d keywords", len(got))
	}
	if got[0].Token != "rust" || !got[0].IncludeHiring || got[0].ImagePath != "img/rust.svg" {
		t.Fatalf("first = %+v", got[0])
	}
	if got[1].Token != "c#" || got[1].IncludeHiring {
		t.Fatalf("second = %+v", got[1])
	}
}

func TestDecodeSeed_RejectsUnknownFields(t *testing.T) {
	_, err := DecodeSeed(strings.NewReader("keywords:\n  - keyword: go\n    colour: blue\n"))
	if !perr.IsCode(err, perr.ErrorCodeConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestDecodeSeed_EmptyDocument(t *testing.T) {
	got, err := DecodeSeed(strings.NewReader(""))
	if err != nil || got != nil {
		t.Fatalf("empty = %v, %v", got, err)
	}
}

func TestLoadSeedFile_Missing(t *testing.T) {
	_, err := LoadSeedFile("/nonexistent/keywords.yaml")
	testkit.MustErr(t, err, "read seed file")
}
