package controllers

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-pos/apiclient"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/notify"
	"github.com/yeremiapane/restaurant-pos/reports"
	"github.com/yeremiapane/restaurant-pos/utils"
)

const reportDate = "2006-01-02"

type reportsData struct {
	StartDate string
	EndDate   string
}

// Reports shows the date range picker, defaulting to the current month.
func (dc *DashboardController) Reports(c *gin.Context) {
	now := time.Now()
	data := reportsData{
		StartDate: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).Format(reportDate),
		EndDate:   now.Format(reportDate),
	}
	dc.render(c, http.StatusOK, "reports.html", dc.view(c, "Reportes", data))
}

func sendPDF(c *gin.Context, filename string, buf *bytes.Buffer) {
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// SalesReport renders GET /reports/sales for the requested range as a PDF.
func (dc *DashboardController) SalesReport(c *gin.Context) {
	from, errFrom := time.Parse(reportDate, c.Query("start_date"))
	to, errTo := time.Parse(reportDate, c.Query("end_date"))
	if errFrom != nil || errTo != nil || to.Before(from) {
		dc.notifier(c).Notify("Rango de fechas inválido", notify.Warning)
		c.Redirect(http.StatusSeeOther, "/dashboard/reports")
		return
	}

	params := url.Values{}
	params.Set("start_date", from.Format(reportDate))
	params.Set("end_date", to.Format(reportDate))

	var report models.SalesReport
	res := apiclient.NewResource[models.SalesReport]("Reporte", "/reports", dc.transport(c), dc.notifier(c))
	if _, err := res.Query(c.Request.Context(), "sales", params, &report); err != nil {
		if dc.signedOut(c, err) {
			return
		}
		c.Redirect(http.StatusSeeOther, "/dashboard/reports")
		return
	}

	var buf bytes.Buffer
	if err := reports.SalesReport(&buf, from, to, report.Orders); err != nil {
		utils.ErrorLogger.Printf("Sales report failed: %v", err)
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	sendPDF(c, fmt.Sprintf("ventas_%s_%s.pdf", params.Get("start_date"), params.Get("end_date")), &buf)
}

// Invoice renders the invoice of one order.
func (dc *DashboardController) Invoice(c *gin.Context) {
	ctx := c.Request.Context()
	order, err := dc.orders(c).Get(ctx, c.Param("id"), nil)
	if dc.signedOut(c, err) {
		return
	}
	if err != nil || order == nil {
		if order == nil && err == nil {
			dc.notifier(c).Notify("Orden no encontrada", notify.Warning)
		}
		c.Redirect(http.StatusSeeOther, "/dashboard/orders")
		return
	}

	dishes, err := apiclient.NewResource[models.Dish]("Plato", "/dishes", dc.transport(c), dc.notifier(c)).List(ctx, nil)
	if err != nil {
		utils.ErrorLogger.Printf("Invoice %d without dish list: %v", order.ID, err)
	}
	currencies, err := apiclient.NewResource[models.Currency]("Moneda", "/currencies", dc.transport(c), dc.notifier(c)).List(ctx, nil)
	if err != nil {
		utils.ErrorLogger.Printf("Invoice %d without currency list: %v", order.ID, err)
	}

	var buf bytes.Buffer
	if err := reports.Invoice(&buf, *order, dishes, currencies); err != nil {
		utils.ErrorLogger.Printf("Invoice %d failed: %v", order.ID, err)
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	sendPDF(c, fmt.Sprintf("factura_%06d.pdf", order.ID), &buf)
}
