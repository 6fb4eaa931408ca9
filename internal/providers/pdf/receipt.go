// Package pdf renders purchase receipts.
package pdf

import (
	"bytes"
	"context"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type ReceiptData struct {
	PurchaseID  string
	ProductName string
	PlanLabel   string
	Amount      string
	BuyerID     string
	DatePaid    string
}

type Provider struct{}

func NewProvider() *Provider {
	return &Provider{}
}

func (p *Provider) GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(30,
		text.NewCol(12, "Receipt", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New("Purchase: "+data.PurchaseID, props.Text{Top: 0}),
			text.New("Date paid: "+data.DatePaid, props.Text{Top: 5}),
			text.New("Buyer: "+data.BuyerID, props.Text{Top: 10}),
		),
		col.New(6),
	)

	m.AddRow(20,
		col.New(8).Add(
			text.New(data.ProductName, props.Text{Style: fontstyle.Bold}),
			text.New(data.PlanLabel, props.Text{Top: 5}),
		),
		col.New(4).Add(
			text.New(data.Amount, props.Text{Align: align.Right, Style: fontstyle.Bold}),
		),
	)

	document, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(document.GetBytes()), nil
}
