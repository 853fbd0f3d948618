// Package render projects a persisted credential into its PDF and QR forms.
// Nothing rendered is stored: the same credential state always renders to
// the same bytes.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-pdf/fpdf"
	qrcode "github.com/skip2/go-qrcode"

	"academy/internal/credential/metrics"
	"academy/internal/credential/models"
	"academy/internal/credential/sequence"
	enrollment "academy/internal/enrollment/models"
	"academy/internal/platform/tracer"
	id "academy/pkg/domain"
	dErrors "academy/pkg/domain-errors"
	"academy/pkg/platform/sentinel"
	"academy/pkg/requestcontext"
)

// Ledger is the read side of the credential ledger plus receipt numbering.
type Ledger interface {
	Get(ctx context.Context, credentialID id.CredentialID) (*models.Credential, error)
	EnsureSequenceNumber(ctx context.Context, credentialID id.CredentialID, sequenceName string) (int64, error)
	VerificationURL(c *models.Credential) string
}

type DetailReader interface {
	FindDetail(ctx context.Context, enrollmentID id.EnrollmentID) (*enrollment.Detail, error)
}

const (
	contentTypePDF = "application/pdf"
	qrSizePx       = 256
	dateLayout     = "2 January 2006"
)

type Renderer struct {
	ledger     Ledger
	details    DetailReader
	issuerName string
	metrics    *metrics.Metrics
	tracer     tracer.Tracer
	logger     *slog.Logger
}

type Option func(*Renderer)

func WithIssuerName(name string) Option {
	return func(r *Renderer) {
		if name != "" {
			r.issuerName = name
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Renderer) { r.metrics = m }
}

func WithTracer(t tracer.Tracer) Option {
	return func(r *Renderer) { r.tracer = t }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) { r.logger = logger }
}

func New(ledger Ledger, details DetailReader, opts ...Option) *Renderer {
	r := &Renderer{
		ledger:     ledger,
		details:    details,
		issuerName: "Academy",
		tracer:     tracer.NewNoop(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render builds the requested document. Receipts get a sequence number on
// first render; later renders reuse it.
func (r *Renderer) Render(ctx context.Context, credentialID id.CredentialID, variant Variant) (*Document, error) {
	ctx, span := r.tracer.Start(ctx, tracer.SpanRender,
		tracer.String(tracer.AttrCredentialID, credentialID.String()),
		tracer.String(tracer.AttrVariant, string(variant)),
	)
	start := time.Now()

	doc, err := r.render(ctx, credentialID, variant)
	span.End(err)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeRenderFailure) {
			r.metrics.IncRenderFailure(string(variant))
			r.logger.ErrorContext(ctx, "document render failed",
				"credential_id", credentialID.String(),
				"variant", string(variant),
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		return nil, err
	}
	r.metrics.ObserveRender(string(variant), time.Since(start).Seconds())
	return doc, nil
}

func (r *Renderer) render(ctx context.Context, credentialID id.CredentialID, variant Variant) (*Document, error) {
	switch variant {
	case VariantCertificate, VariantReceipt, VariantPreview:
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "unknown document variant")
	}
	c, err := r.ledger.Get(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	if variant == VariantReceipt {
		n, err := r.ledger.EnsureSequenceNumber(ctx, c.ID, sequence.Receipts)
		if err != nil {
			return nil, err
		}
		c.SequenceNo = &n
	}
	detail, err := r.details.FindDetail(ctx, c.EnrollmentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "credential references a missing enrollment")
		}
		if errors.Is(err, sentinel.ErrUnavailable) {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "enrollment store unavailable")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load enrollment detail")
	}

	verifyURL := r.ledger.VerificationURL(c)
	qr, err := encodeQR(verifyURL)
	if err != nil {
		return nil, err
	}

	p := page{credential: c, detail: detail, issuer: r.issuerName, verifyURL: verifyURL, qr: qr}
	var body []byte
	switch variant {
	case VariantReceipt:
		body, err = p.receipt()
	default:
		body, err = p.certificate(variant == VariantPreview)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeRenderFailure, "failed to render document")
	}

	return &Document{
		Filename:    fmt.Sprintf("%s-%s.pdf", variant, c.ID.String()),
		ContentType: contentTypePDF,
		Disposition: variant.Disposition(),
		Body:        body,
	}, nil
}

// QRCode returns the PNG of the credential's verification URL.
func (r *Renderer) QRCode(ctx context.Context, credentialID id.CredentialID) ([]byte, error) {
	c, err := r.ledger.Get(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	png, err := encodeQR(r.ledger.VerificationURL(c))
	if err != nil {
		r.metrics.IncRenderFailure("qr")
		return nil, err
	}
	return png, nil
}

func encodeQR(content string) ([]byte, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, qrSizePx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeRenderFailure, "failed to encode QR code")
	}
	return png, nil
}

// page carries everything one PDF needs. Every timestamp written into the
// file is the issuance time, never the render time.
type page struct {
	credential *models.Credential
	detail     *enrollment.Detail
	issuer     string
	verifyURL  string
	qr         []byte
}

func (p page) newPDF(orientation, title string) *fpdf.Fpdf {
	pdf := fpdf.New(orientation, "mm", "A4", "")
	pdf.SetCreationDate(p.credential.IssuedAt)
	pdf.SetModificationDate(p.credential.IssuedAt)
	pdf.SetCatalogSort(true)
	pdf.SetTitle(title, true)
	pdf.SetAuthor(p.issuer, true)
	pdf.SetCreator(p.issuer, true)
	pdf.SetSubject(p.detail.CourseName, true)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	return pdf
}

func (p page) certificate(preview bool) ([]byte, error) {
	pdf := p.newPDF("L", "Certificate of Completion")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	w, h := pdf.GetPageSize()

	pdf.SetDrawColor(40, 60, 120)
	pdf.SetLineWidth(1.2)
	pdf.Rect(10, 10, w-20, h-20, "D")

	pdf.SetY(30)
	pdf.SetFont("Helvetica", "", 14)
	pdf.CellFormat(0, 8, tr(p.issuer), "", 1, "C", false, 0, "")
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 30)
	pdf.CellFormat(0, 14, "Certificate of Completion", "", 1, "C", false, 0, "")
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 14)
	pdf.CellFormat(0, 8, "This certifies that", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "B", 24)
	pdf.CellFormat(0, 14, tr(p.detail.PersonName), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 14)
	pdf.CellFormat(0, 8, "has successfully completed", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, tr(p.detail.CourseName), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 7, tr(p.detail.OfferingLabel), "", 1, "C", false, 0, "")
	pdf.Ln(6)
	pdf.CellFormat(0, 7, "Issued "+p.credential.IssuedAt.UTC().Format(dateLayout), "", 1, "C", false, 0, "")

	p.footer(pdf, w, h)
	if p.credential.Revoked {
		stamp(pdf, w, "REVOKED")
	} else if preview {
		stamp(pdf, w, "PREVIEW")
	}
	return output(pdf)
}

func (p page) receipt() ([]byte, error) {
	pdf := p.newPDF("P", "Credential Receipt")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	w, h := pdf.GetPageSize()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, tr(p.issuer), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("Receipt No. R-%06d", *p.credential.SequenceNo), "", 1, "L", false, 0, "")
	pdf.Ln(8)

	rows := [][2]string{
		{"Learner", p.detail.PersonName},
		{"Course", p.detail.CourseName},
		{"Offering", p.detail.OfferingLabel},
		{"Issued", p.credential.IssuedAt.UTC().Format(dateLayout)},
		{"Credential", p.credential.ID.String()},
	}
	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(40, 8, row[0], "B", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 8, tr(row[1]), "B", 1, "L", false, 0, "")
	}

	p.footer(pdf, w, h)
	if p.credential.Revoked {
		stamp(pdf, w, "REVOKED")
	}
	return output(pdf)
}

// footer draws the QR code and the printed verification link.
func (p page) footer(pdf *fpdf.Fpdf, w, h float64) {
	const size = 32.0
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("verify-qr", opts, bytes.NewReader(p.qr))
	pdf.ImageOptions("verify-qr", w-20-size, h-20-size, size, size, false, opts, 0, "")

	pdf.SetXY(20, h-32)
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(w-60-size, 5, "Verify this credential at:", "", 1, "L", false, 0, "")
	pdf.SetX(20)
	pdf.CellFormat(w-60-size, 5, p.verifyURL, "", 1, "L", false, 0, p.verifyURL)
	pdf.SetX(20)
	pdf.CellFormat(w-60-size, 5, "Credential ID "+p.credential.ID.String(), "", 1, "L", false, 0, "")
}

func stamp(pdf *fpdf.Fpdf, w float64, text string) {
	pdf.SetXY(0, 14)
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(180, 20, 20)
	pdf.CellFormat(w, 8, text, "", 1, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

func output(pdf *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
