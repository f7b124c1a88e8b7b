// Package reports renders the printable documents of the back office: the
// invoice of an order and the sales report of a date range.
package reports

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/yeremiapane/restaurant-pos/billing"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

const dateLayout = "2006-01-02"

// ErrEmptyChart is returned by RevenueChart when there is nothing to plot.
var ErrEmptyChart = errors.New("no sales to plot")

// Restaurant is printed on the header of every document.
var Restaurant = "Restaurante"

type document struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func newDocument(title string) *document {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetAuthor(Restaurant, true)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	d := &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 8, d.tr(Restaurant), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 7, d.tr(title), "", 1, "C", false, 0, "")
	pdf.Ln(4)
	return d
}

func (d *document) text(label, value string) {
	d.pdf.SetFont("Helvetica", "B", 10)
	d.pdf.CellFormat(35, 6, d.tr(label), "", 0, "L", false, 0, "")
	d.pdf.SetFont("Helvetica", "", 10)
	d.pdf.CellFormat(0, 6, d.tr(value), "", 1, "L", false, 0, "")
}

// table draws a header row followed by rows; widths are in mm.
func (d *document) table(widths []float64, aligns []string, header []string, rows [][]string) {
	d.pdf.SetFont("Helvetica", "B", 10)
	d.pdf.SetFillColor(230, 230, 230)
	for i, h := range header {
		d.pdf.CellFormat(widths[i], 7, d.tr(h), "1", 0, aligns[i], true, 0, "")
	}
	d.pdf.Ln(-1)

	d.pdf.SetFont("Helvetica", "", 10)
	for _, row := range rows {
		for i, cell := range row {
			d.pdf.CellFormat(widths[i], 6, d.tr(cell), "1", 0, aligns[i], false, 0, "")
		}
		d.pdf.Ln(-1)
	}
}

func (d *document) output(w io.Writer) error {
	if err := d.pdf.Error(); err != nil {
		return err
	}
	return d.pdf.Output(w)
}

func money(v float64) string {
	return strconv.FormatFloat(utils.Round2(v), 'f', 2, 64)
}

// Invoice writes the invoice of an order: its items, the total in the base
// unit, the payment lines and what is still owed in each currency. dishes
// resolves items whose Dish was not embedded by the API.
func Invoice(w io.Writer, order models.Order, dishes []models.Dish, currencies []models.Currency) error {
	byID := make(map[uint]models.Dish, len(dishes))
	for _, d := range dishes {
		byID[d.ID] = d
	}
	for i := range order.Items {
		if order.Items[i].Dish == nil {
			if d, ok := byID[order.Items[i].DishID]; ok {
				d := d
				order.Items[i].Dish = &d
			}
		}
	}
	total := order.ComputeTotal()

	doc := newDocument(fmt.Sprintf("Factura #%06d", order.ID))
	doc.text("Fecha:", order.Date.Format("2006-01-02 15:04"))
	if order.Table != nil {
		doc.text("Mesa:", order.Table.Name)
	} else {
		doc.text("Mesa:", fmt.Sprintf("#%d", order.TableID))
	}
	if order.Customer != nil {
		doc.text("Cliente:", order.Customer.Name+" "+order.Customer.Lastname)
		doc.text("Documento:", order.Customer.NationalID)
	}
	doc.text("Estado:", order.State)
	if order.Notes != "" {
		doc.text("Notas:", order.Notes)
	}
	doc.pdf.Ln(4)

	rows := make([][]string, 0, len(order.Items))
	for _, it := range order.Items {
		name := fmt.Sprintf("Plato #%d", it.DishID)
		var price float64
		if it.Dish != nil {
			name = it.Dish.Name
			price = it.Dish.Price
		}
		rows = append(rows, []string{
			name,
			strconv.Itoa(it.Quantity),
			money(price),
			money(price * float64(it.Quantity)),
		})
	}
	doc.table(
		[]float64{90, 20, 35, 35},
		[]string{"L", "R", "R", "R"},
		[]string{"Plato", "Cant.", "Precio", "Subtotal"},
		rows,
	)
	doc.pdf.SetFont("Helvetica", "B", 11)
	doc.pdf.CellFormat(145, 8, "Total", "", 0, "R", false, 0, "")
	doc.pdf.CellFormat(35, 8, money(total), "", 1, "R", false, 0, "")
	doc.pdf.Ln(4)

	order.Total = total
	bill := billing.NewBill(order, currencies)
	if lines := bill.Lines(); len(lines) > 0 {
		payRows := make([][]string, 0, len(lines))
		for _, l := range lines {
			equivalent := "-"
			if l.Currency.ExchangeRate > 0 {
				equivalent = money(l.Quantity / l.Currency.ExchangeRate)
			}
			payRows = append(payRows, []string{
				l.Currency.Name,
				strconv.FormatFloat(l.Currency.ExchangeRate, 'f', -1, 64),
				money(l.Quantity),
				equivalent,
			})
		}
		doc.table(
			[]float64{60, 40, 40, 40},
			[]string{"L", "R", "R", "R"},
			[]string{"Moneda", "Tasa", "Pagado", "Equivalente"},
			payRows,
		)
		doc.pdf.Ln(4)
	}

	owed := make([][]string, 0, len(currencies))
	for _, c := range bill.Currencies() {
		remaining, err := bill.Remaining(c.ID)
		if err != nil {
			continue
		}
		owed = append(owed, []string{c.Name, utils.FormatMoney(remaining, c.Name)})
	}
	if len(owed) > 0 {
		doc.table([]float64{90, 90}, []string{"L", "R"}, []string{"Moneda", "Pendiente"}, owed)
	}

	return doc.output(w)
}

// Daily groups orders by calendar day between from and to, both inclusive.
// Every day of the range is present, with zero totals when nothing was sold.
func Daily(from, to time.Time, orders []models.Order) []models.DailySale {
	from = truncateDay(from)
	to = truncateDay(to)
	if to.Before(from) {
		return nil
	}

	index := make(map[string]int)
	var days []models.DailySale
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		key := d.Format(dateLayout)
		index[key] = len(days)
		days = append(days, models.DailySale{Date: key})
	}

	for i := range orders {
		o := orders[i]
		key := o.Date.In(from.Location()).Format(dateLayout)
		pos, ok := index[key]
		if !ok {
			continue
		}
		total := o.Total
		if total == 0 {
			total = o.ComputeTotal()
		}
		days[pos].Orders++
		days[pos].Total = utils.Round2(days[pos].Total + total)
	}
	return days
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// RevenueChart renders revenue per day as a PNG bar chart.
func RevenueChart(days []models.DailySale) ([]byte, error) {
	var max float64
	bars := make([]chart.Value, 0, len(days))
	for _, d := range days {
		if d.Total > max {
			max = d.Total
		}
		label := d.Date
		if t, err := time.Parse(dateLayout, d.Date); err == nil {
			label = t.Format("02/01")
		}
		bars = append(bars, chart.Value{Value: d.Total, Label: label})
	}
	if max <= 0 {
		return nil, ErrEmptyChart
	}

	width := 60*len(bars) + 120
	if width < 800 {
		width = 800
	}
	graph := chart.BarChart{
		Title:      "Ventas por día",
		Width:      width,
		Height:     400,
		BarWidth:   40,
		BarSpacing: 20,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 10, Bottom: 10},
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: max * 1.1},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}

// SalesReport writes the sales of a date range: a revenue chart, the daily
// totals and the list of orders.
func SalesReport(w io.Writer, from, to time.Time, orders []models.Order) error {
	days := Daily(from, to, orders)

	doc := newDocument(fmt.Sprintf("Reporte de ventas %s al %s", from.Format(dateLayout), to.Format(dateLayout)))

	var total float64
	var count int
	for _, d := range days {
		total += d.Total
		count += d.Orders
	}
	doc.text("Órdenes:", strconv.Itoa(count))
	doc.text("Total:", money(total))
	doc.pdf.Ln(4)

	png, err := RevenueChart(days)
	switch {
	case err == nil:
		opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
		doc.pdf.RegisterImageOptionsReader("revenue", opts, bytes.NewReader(png))
		doc.pdf.ImageOptions("revenue", 15, doc.pdf.GetY(), 180, 0, true, opts, 0, "")
		doc.pdf.Ln(4)
	case errors.Is(err, ErrEmptyChart):
		doc.pdf.SetFont("Helvetica", "I", 10)
		doc.pdf.CellFormat(0, 6, doc.tr("Sin ventas en el período"), "", 1, "L", false, 0, "")
	default:
		utils.ErrorLogger.Printf("Sales chart skipped: %v", err)
	}

	dayRows := make([][]string, 0, len(days))
	for _, d := range days {
		dayRows = append(dayRows, []string{d.Date, strconv.Itoa(d.Orders), money(d.Total)})
	}
	doc.table([]float64{60, 60, 60}, []string{"L", "R", "R"}, []string{"Día", "Órdenes", "Total"}, dayRows)
	doc.pdf.Ln(4)

	sorted := make([]models.Order, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	orderRows := make([][]string, 0, len(sorted))
	for i := range sorted {
		o := sorted[i]
		t := o.Total
		if t == 0 {
			t = o.ComputeTotal()
		}
		table := fmt.Sprintf("#%d", o.TableID)
		if o.Table != nil {
			table = o.Table.Name
		}
		orderRows = append(orderRows, []string{
			strconv.FormatUint(uint64(o.ID), 10),
			o.Date.Format("2006-01-02 15:04"),
			table,
			o.State,
			money(t),
		})
	}
	if len(orderRows) > 0 {
		doc.table(
			[]float64{20, 45, 45, 35, 35},
			[]string{"R", "L", "L", "L", "R"},
			[]string{"#", "Fecha", "Mesa", "Estado", "Total"},
			orderRows,
		)
	}

	return doc.output(w)
}
