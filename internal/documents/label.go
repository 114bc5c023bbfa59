package documents

import (
	"context"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// LabelPDF renders a printable container label for a document.
func (s *Service) LabelPDF(ctx context.Context, id string) ([]byte, error) {
	label, err := s.Label(ctx, id)
	if err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageSize(pagesize.A6).
		WithLeftMargin(8).
		WithTopMargin(8).
		WithRightMargin(8).
		Build()

	m := maroto.New(cfg)

	m.AddRow(18,
		text.NewCol(12, label.ProductName, props.Text{
			Size:  16,
			Style: fontstyle.Bold,
			Align: align.Center,
		}),
	)

	m.AddRow(24,
		col.New(12).Add(
			text.New("Company: "+label.CompanyCode, props.Text{Size: 10, Top: 0}),
			text.New("Department: "+label.Department, props.Text{Size: 10, Top: 6}),
			text.New("Site: "+label.Site, props.Text{Size: 10, Top: 12}),
			text.New("Document: "+label.Filename, props.Text{Size: 10, Top: 18}),
		),
	)

	m.AddRow(8,
		text.NewCol(12, "Consult the safety data sheet before handling.", props.Text{
			Size:  8,
			Align: align.Center,
		}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
