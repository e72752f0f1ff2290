// Package export renders seller order views as spreadsheets.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"storefront/backend/internal/dashboard"
	"storefront/backend/internal/domain"
)

const (
	ContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ordersSheet  = "Orders"
	summarySheet = "Summary"
)

var orderHeader = []any{
	"Order ID", "Created At", "Buyer", "Status", "Items", "Products",
	"Total", "Original Price", "Discount %", "Discount Code",
}

func Filename(at time.Time) string {
	return fmt.Sprintf("orders-%s.xlsx", at.UTC().Format("20060102-150405"))
}

// WriteOrders writes a workbook with one row per order, in the given order,
// followed by a summary sheet computed over the same rows.
func WriteOrders(w io.Writer, orders []domain.Order, generatedAt time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ordersSheet); err != nil {
		return errors.Wrap(err, "rename sheet")
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "create header style")
	}

	if err := f.SetSheetRow(ordersSheet, "A1", &orderHeader); err != nil {
		return errors.Wrap(err, "write header")
	}
	lastCol, _ := excelize.ColumnNumberToName(len(orderHeader))
	if err := f.SetCellStyle(ordersSheet, "A1", lastCol+"1", bold); err != nil {
		return errors.Wrap(err, "style header")
	}
	if err := f.SetColWidth(ordersSheet, "A", lastCol, 18); err != nil {
		return errors.Wrap(err, "set column width")
	}

	for i, o := range orders {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Wrap(err, "cell name")
		}
		row := orderRow(o)
		if err := f.SetSheetRow(ordersSheet, cell, &row); err != nil {
			return errors.Wrapf(err, "write order %s", o.ID)
		}
	}

	if err := writeSummary(f, orders, generatedAt, bold); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "write workbook")
	}
	return nil
}

func orderRow(o domain.Order) []any {
	names := make([]string, 0, len(o.Items))
	quantity := 0
	for _, item := range o.Items {
		quantity += item.Quantity
		if item.ProductName != "" {
			names = append(names, item.ProductName)
		}
	}

	row := []any{
		o.ID,
		o.CreatedAt.UTC().Format("2006-01-02 15:04"),
		buyerLabel(o),
		o.Status.Presentation().Label,
		quantity,
		strings.Join(names, ", "),
		o.TotalPrice.InexactFloat64(),
		nil,
		nil,
		o.DiscountCode,
	}
	if o.OriginalPrice != nil {
		row[7] = o.OriginalPrice.InexactFloat64()
	}
	if o.DiscountPercentage != nil {
		row[8] = *o.DiscountPercentage
	}
	return row
}

func buyerLabel(o domain.Order) string {
	if o.BuyerName != "" {
		return o.BuyerName
	}
	return o.BuyerID
}

func writeSummary(f *excelize.File, orders []domain.Order, generatedAt time.Time, bold int) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return errors.Wrap(err, "create summary sheet")
	}
	stats := dashboard.SummarizeOrders(orders)

	rows := [][]any{
		{"Generated At", generatedAt.UTC().Format(time.RFC3339)},
		{"Orders", stats.Total},
		{"Total Sales", stats.TotalSales.InexactFloat64()},
		{"Unique Customers", stats.UniqueCustomers},
		{"Growth Rate %", stats.GrowthRate},
	}
	for _, status := range domain.OrderStatuses() {
		rows = append(rows, []any{status.Presentation().Label, stats.ByStatus[status]})
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return errors.Wrap(err, "cell name")
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return errors.Wrap(err, "write summary")
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", fmt.Sprintf("A%d", len(rows)), bold); err != nil {
		return errors.Wrap(err, "style summary")
	}
	return f.SetColWidth(summarySheet, "A", "B", 20)
}
