package controllers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-pos/apiclient"
	"github.com/yeremiapane/restaurant-pos/listing"
	"github.com/yeremiapane/restaurant-pos/notify"
)

type listRow struct {
	ID    string
	Cells []string
	Links []NavItem
}

type listData struct {
	Title       string
	Base        string
	Columns     []string
	Rows        []listRow
	Page        listing.Page[Row]
	PrevHref    string
	NextHref    string
	ConfirmText string
}

type formData struct {
	Title  string
	Action string
	Cancel string
	Fields []FormField
}

func (dc *DashboardController) resource(c *gin.Context, p *EntityPage) *apiclient.Resource[Row] {
	return apiclient.NewResource[Row](p.Name, p.Path, dc.transport(c), dc.notifier(c))
}

func pageHref(base, q string, number, size int) string {
	v := url.Values{}
	if q != "" {
		v.Set("q", q)
	}
	v.Set("page", strconv.Itoa(number))
	v.Set("size", strconv.Itoa(size))
	return base + "?" + v.Encode()
}

// listURL is where a page goes after a mutation; order changes are
// announced to the other dashboards by the list page itself.
func listURL(p *EntityPage, broadcast bool) string {
	if broadcast && p.Broadcast {
		return p.Base() + "?broadcast=1"
	}
	return p.Base()
}

// List fetches the whole collection and filters and paginates it locally.
func (dc *DashboardController) List(p *EntityPage) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := dc.resource(c, p).List(c.Request.Context(), nil)
		if dc.signedOut(c, err) {
			return
		}

		page := listing.Apply(rows, c.Query("q"), c.Query("page"), c.Query("size"), p.SearchFields)
		data := listData{
			Title:       p.Title,
			Base:        p.Base(),
			Page:        page,
			PrevHref:    pageHref(p.Base(), page.Query, page.PrevPage, page.Size),
			NextHref:    pageHref(p.Base(), page.Query, page.NextPage, page.Size),
			ConfirmText: fmt.Sprintf("¿Eliminar %s?", p.Name),
		}
		for _, col := range p.Columns {
			data.Columns = append(data.Columns, col.Label)
		}
		for _, row := range page.Items {
			lr := listRow{ID: RowID(row)}
			for _, col := range p.Columns {
				lr.Cells = append(lr.Cells, col.Cell(row))
			}
			for _, l := range p.Links {
				lr.Links = append(lr.Links, NavItem{Label: l.Label, Href: fmt.Sprintf(l.Href, lr.ID)})
			}
			data.Rows = append(data.Rows, lr)
		}

		status := http.StatusOK
		if err != nil {
			status = statusOf(err)
		}
		v := dc.view(c, p.Title, data)
		v.LiveReload = p.Broadcast
		v.Broadcast = p.Broadcast && c.Query("broadcast") == "1"
		dc.render(c, status, "list.html", v)
	}
}

// sources loads the collections feeding the selects of the form.
func (dc *DashboardController) sources(c *gin.Context, p *EntityPage) map[string][]Row {
	out := make(map[string][]Row)
	for _, f := range p.Fields {
		if f.Source == "" {
			continue
		}
		if _, done := out[f.Source]; done {
			continue
		}
		res := apiclient.NewResource[Row](f.Label, f.Source, dc.transport(c), dc.notifier(c))
		rows, err := res.List(c.Request.Context(), nil)
		if err != nil {
			rows = nil
		}
		out[f.Source] = rows
	}
	return out
}

func (dc *DashboardController) renderForm(c *gin.Context, status int, p *EntityPage, id string, values url.Values) {
	editing := id != ""
	data := formData{
		Title:  "Nuevo " + p.Name,
		Action: p.Base(),
		Cancel: p.Base(),
		Fields: p.FormFields(values, dc.sources(c, p), editing),
	}
	if editing {
		data.Title = fmt.Sprintf("Editar %s #%s", p.Name, id)
		data.Action = p.Base() + "/" + id
	}
	dc.render(c, status, "form.html", dc.view(c, data.Title, data))
}

// New shows an empty form.
func (dc *DashboardController) New(p *EntityPage) gin.HandlerFunc {
	return func(c *gin.Context) {
		dc.renderForm(c, http.StatusOK, p, "", url.Values{})
	}
}

// Edit shows the form filled with the current entity.
func (dc *DashboardController) Edit(p *EntityPage) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		row, err := dc.resource(c, p).Get(c.Request.Context(), id, nil)
		if dc.signedOut(c, err) {
			return
		}
		if err != nil {
			c.Redirect(http.StatusSeeOther, p.Base())
			return
		}
		if row == nil {
			dc.notifier(c).Notify(fmt.Sprintf("%s no encontrado", p.Name), notify.Warning)
			c.Redirect(http.StatusSeeOther, p.Base())
			return
		}
		dc.renderForm(c, http.StatusOK, p, id, p.RowValues(*row))
	}
}

// Create validates the form and posts it upstream. On failure the form is
// shown again with what was typed.
func (dc *DashboardController) Create(p *EntityPage) gin.HandlerFunc {
	return func(c *gin.Context) {
		dc.save(c, p, "")
	}
}

// Update is Create for an existing entity.
func (dc *DashboardController) Update(p *EntityPage) gin.HandlerFunc {
	return func(c *gin.Context) {
		dc.save(c, p, c.Param("id"))
	}
}

func (dc *DashboardController) save(c *gin.Context, p *EntityPage, id string) {
	if err := c.Request.ParseForm(); err != nil {
		dc.notifier(c).Notify(err.Error(), notify.Error)
		dc.renderForm(c, http.StatusBadRequest, p, id, url.Values{})
		return
	}
	values := c.Request.PostForm

	body, err := p.Body(values, id == "")
	if err != nil {
		dc.notifier(c).Notify(err.Error(), notify.Warning)
		dc.renderForm(c, http.StatusUnprocessableEntity, p, id, values)
		return
	}

	res := dc.resource(c, p)
	if id == "" {
		_, err = res.Create(c.Request.Context(), body)
	} else {
		_, err = res.Update(c.Request.Context(), id, body)
	}
	if dc.signedOut(c, err) {
		return
	}
	if err != nil {
		dc.renderForm(c, statusOf(err), p, id, values)
		return
	}
	c.Redirect(http.StatusSeeOther, listURL(p, true))
}

// Delete runs after the browser confirm dialog. Either way the list is
// shown again; a failure leaves the entity in place with the error toast.
func (dc *DashboardController) Delete(p *EntityPage) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := dc.resource(c, p).Delete(c.Request.Context(), c.Param("id"))
		if dc.signedOut(c, err) {
			return
		}
		c.Redirect(http.StatusSeeOther, listURL(p, err == nil))
	}
}
