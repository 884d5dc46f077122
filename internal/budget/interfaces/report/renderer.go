// Package report renders grant reports and engagement vouchers as PDF and
// XLSX documents.
package report

import (
	"fmt"

	"grants-cloud/internal/budget/application"
)

// Renderer implements application.Renderer with gofpdf and excelize.
type Renderer struct {
	organization string
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithOrganization prints the organization name on every document.
func WithOrganization(name string) Option {
	return func(r *Renderer) {
		r.organization = name
	}
}

// NewRenderer constructs a renderer.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RenderGrantReport renders report in format.
func (r *Renderer) RenderGrantReport(format application.Format, report *application.GrantReport) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("report: nil grant report")
	}
	switch format {
	case application.FormatPDF:
		return BuildGrantReportPDF(report, r.organization)
	case application.FormatXLSX:
		return BuildGrantReportXLSX(report, r.organization)
	default:
		return nil, fmt.Errorf("report: unsupported format %q", format)
	}
}

// RenderVoucher renders an engagement voucher as PDF.
func (r *Renderer) RenderVoucher(voucher *application.Voucher) ([]byte, error) {
	if voucher == nil || voucher.Engagement == nil {
		return nil, fmt.Errorf("report: nil voucher")
	}
	return BuildVoucherPDF(voucher, r.organization)
}

var _ application.Renderer = (*Renderer)(nil)
