package render

import (
	"strings"

	dErrors "academy/pkg/domain-errors"
)

// Variant selects the document layout.
type Variant string

const (
	VariantCertificate Variant = "certificate"
	VariantReceipt     Variant = "receipt"
	VariantPreview     Variant = "preview"
)

// ParseVariant accepts the query value; empty means certificate.
func ParseVariant(raw string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(raw))); v {
	case "":
		return VariantCertificate, nil
	case VariantCertificate, VariantReceipt, VariantPreview:
		return v, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "variant must be one of [certificate receipt preview]")
}

// Disposition is the Content-Disposition type: previews open inline, the
// others download.
func (v Variant) Disposition() string {
	if v == VariantPreview {
		return "inline"
	}
	return "attachment"
}

// Document is a rendered file ready to stream.
type Document struct {
	Filename    string
	ContentType string
	Disposition string
	Body        []byte
}
