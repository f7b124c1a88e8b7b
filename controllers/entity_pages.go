package controllers

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yeremiapane/restaurant-pos/models"
)

// Row is an entity as decoded from the upstream JSON.
type Row = map[string]interface{}

// Field kinds understood by form.html.
const (
	KindText       = "text"
	KindEmail      = "email"
	KindPassword   = "password"
	KindNumber     = "number"
	KindTextarea   = "textarea"
	KindSelect     = "select"
	KindNationalID = "national_id"
	KindItems      = "items"
)

// Option is a choice of a select.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// Column of a list table. Key may be a dotted path, e.g. "table.name".
type Column struct {
	Label   string
	Key     string
	Money   bool
	Choices []Option
}

// Field of a create/edit form.
type Field struct {
	Key      string
	Label    string
	Kind     string
	Required bool
	// Positive rejects numbers <= 0.
	Positive bool
	Default  string
	Choices  []Option
	// Source is the upstream collection feeding a select (or the dish
	// picker of KindItems); SourceLabel are the keys shown for each row.
	Source      string
	SourceLabel []string
}

// EntityPage describes the list and form screens of one entity.
type EntityPage struct {
	Slug    string
	Path    string
	Name    string
	Title   string
	Columns []Column
	Fields  []Field
	// Broadcast announces mutations to the other dashboards.
	Broadcast bool
	// Links are extra per-row actions; %s is replaced by the row id.
	Links []NavItem
}

var orderStates = []Option{
	{Value: models.OrderPending, Label: "Pendiente"},
	{Value: models.OrderPreparing, Label: "En preparación"},
	{Value: models.OrderMade, Label: "Lista"},
	{Value: models.OrderCompleted, Label: "Completada"},
}

var tableStates = []Option{
	{Value: models.TableAvailable, Label: "Disponible"},
	{Value: models.TableOccupied, Label: "Ocupada"},
}

var roles = []Option{
	{Value: models.RoleAdmin, Label: "Administrador"},
	{Value: models.RoleWaiter, Label: "Mesero"},
	{Value: models.RoleChef, Label: "Cocinero"},
	{Value: models.RoleCashier, Label: "Cajero"},
}

var nationalities = []Option{
	{Value: "V", Label: "V"},
	{Value: "E", Label: "E"},
	{Value: "J", Label: "J"},
	{Value: "G", Label: "G"},
	{Value: "P", Label: "P"},
}

// emptyItemLines is how many blank dish lines the order form offers.
const emptyItemLines = 3

// EntityPages lists the managed entities in menu order.
func EntityPages() []*EntityPage {
	return []*EntityPage{
		{
			Slug: "orders", Path: "/orders", Name: "Orden", Title: "Órdenes",
			Broadcast: true,
			Columns: []Column{
				{Label: "#", Key: "id"},
				{Label: "Mesa", Key: "table.name"},
				{Label: "Cliente", Key: "customer.national_id"},
				{Label: "Estado", Key: "state", Choices: orderStates},
				{Label: "Fecha", Key: "date"},
				{Label: "Total", Key: "total", Money: true},
			},
			Fields: []Field{
				{Key: "table_id", Label: "Mesa", Kind: KindSelect, Required: true, Source: "/tables", SourceLabel: []string{"name"}},
				{Key: "customer_id", Label: "Cliente", Kind: KindSelect, Source: "/customers", SourceLabel: []string{"national_id", "name", "lastname"}},
				{Key: "state", Label: "Estado", Kind: KindSelect, Required: true, Default: models.OrderPending, Choices: orderStates},
				{Key: "notes", Label: "Notas", Kind: KindTextarea},
				{Key: "items", Label: "Platos", Kind: KindItems, Required: true, Source: "/dishes", SourceLabel: []string{"name"}},
			},
			Links: []NavItem{
				{Label: "Facturar", Href: "/dashboard/orders/%s/billing"},
				{Label: "Factura PDF", Href: "/dashboard/orders/%s/invoice.pdf"},
			},
		},
		{
			Slug: "tables", Path: "/tables", Name: "Mesa", Title: "Mesas",
			Columns: []Column{
				{Label: "#", Key: "id"},
				{Label: "Nombre", Key: "name"},
				{Label: "Estado", Key: "state", Choices: tableStates},
			},
			Fields: []Field{
				{Key: "name", Label: "Nombre", Kind: KindText, Required: true},
				{Key: "state", Label: "Estado", Kind: KindSelect, Required: true, Default: models.TableAvailable, Choices: tableStates},
			},
		},
		{
			Slug: "customers", Path: "/customers", Name: "Cliente", Title: "Clientes",
			Columns: []Column{
				{Label: "#", Key: "id"},
				{Label: "Documento", Key: "national_id"},
				{Label: "Nombre", Key: "name"},
				{Label: "Apellido", Key: "lastname"},
				{Label: "Teléfono", Key: "phone"},
			},
			Fields: []Field{
				{Key: "national_id", Label: "Documento", Kind: KindNationalID, Required: true, Default: "V", Choices: nationalities},
				{Key: "name", Label: "Nombre", Kind: KindText, Required: true},
				{Key: "lastname", Label: "Apellido", Kind: KindText, Required: true},
				{Key: "phone", Label: "Teléfono", Kind: KindText},
				{Key: "address", Label: "Dirección", Kind: KindTextarea},
			},
		},
		{
			Slug: "dishes", Path: "/dishes", Name: "Plato", Title: "Platos",
			Columns: []Column{
				{Label: "#", Key: "id"},
				{Label: "Nombre", Key: "name"},
				{Label: "Tipo", Key: "type.name"},
				{Label: "Precio", Key: "price", Money: true},
			},
			Fields: []Field{
				{Key: "name", Label: "Nombre", Kind: KindText, Required: true},
				{Key: "description", Label: "Descripción", Kind: KindTextarea},
				{Key: "price", Label: "Precio", Kind: KindNumber, Required: true, Positive: true},
				{Key: "type_id", Label: "Tipo", Kind: KindSelect, Required: true, Source: "/dishes_types", SourceLabel: []string{"name"}},
			},
		},
		{
			Slug: "dish-types", Path: "/dishes_types", Name: "Tipo de plato", Title: "Tipos de plato",
			Columns: []Column{
				{Label: "#", Key: "id"},
				{Label: "Nombre", Key: "name"},
			},
			Fields: []Field{
				{Key: "name", Label: "Nombre", Kind: KindText, Required: true},
			},
		},
		{
			Slug: "currencies", Path: "/currencies", Name: "Moneda", Title: "Monedas",
			Columns: []Column{
				{Label: "#", Key: "id"},
				{Label: "Nombre", Key: "name"},
				{Label: "Tasa", Key: "exchange_rate"},
			},
			Fields: []Field{
				{Key: "name", Label: "Nombre", Kind: KindText, Required: true},
				{Key: "exchange_rate", Label: "Tasa de cambio", Kind: KindNumber, Required: true, Positive: true},
			},
		},
		{
			Slug: "users", Path: "/users", Name: "Usuario", Title: "Usuarios",
			Columns: []Column{
				{Label: "#", Key: "id"},
				{Label: "Usuario", Key: "username"},
				{Label: "Correo", Key: "email"},
				{Label: "Rol", Key: "role", Choices: roles},
			},
			Fields: []Field{
				{Key: "username", Label: "Usuario", Kind: KindText, Required: true},
				{Key: "email", Label: "Correo", Kind: KindEmail, Required: true},
				{Key: "password", Label: "Contraseña", Kind: KindPassword, Required: true},
				{Key: "role", Label: "Rol", Kind: KindSelect, Required: true, Default: models.RoleWaiter, Choices: roles},
			},
		},
	}
}

// Base is the dashboard URL of the page.
func (p *EntityPage) Base() string {
	return "/dashboard/" + p.Slug
}

// lookup follows a dotted key through nested objects.
func lookup(row Row, key string) interface{} {
	var cur interface{} = row
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

func display(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts.Format("2006-01-02 15:04")
		}
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "Sí"
		}
		return "No"
	}
	return fmt.Sprint(v)
}

// Cell renders the value of a column for one row.
func (col Column) Cell(row Row) string {
	v := lookup(row, col.Key)
	if f, ok := v.(float64); ok && col.Money {
		return strconv.FormatFloat(f, 'f', 2, 64)
	}
	s := display(v)
	for _, c := range col.Choices {
		if c.Value == s {
			return c.Label
		}
	}
	return s
}

// RowID is the id of a row as used in URLs.
func RowID(row Row) string {
	return display(row["id"])
}

// SearchFields is what the list search box matches against.
func (p *EntityPage) SearchFields(row Row) []string {
	out := make([]string, 0, len(p.Columns))
	for _, col := range p.Columns {
		out = append(out, col.Cell(row))
	}
	return out
}

// FormField is a Field with its current value, ready for form.html.
type FormField struct {
	Key      string
	Label    string
	Kind     string
	Value    string
	Required bool
	Options  []Option
	Items    []ItemLine
}

// ItemLine is one dish line of the order form.
type ItemLine struct {
	Options  []Option
	Quantity string
}

func sourceOptions(rows []Row, labels []string, selected string) []Option {
	out := make([]Option, 0, len(rows))
	for _, r := range rows {
		parts := make([]string, 0, len(labels))
		for _, k := range labels {
			if s := display(lookup(r, k)); s != "" {
				parts = append(parts, s)
			}
		}
		id := RowID(r)
		out = append(out, Option{Value: id, Label: strings.Join(parts, " "), Selected: id == selected})
	}
	return out
}

func choiceOptions(choices []Option, selected string) []Option {
	out := make([]Option, len(choices))
	for i, c := range choices {
		c.Selected = c.Value == selected
		out[i] = c
	}
	return out
}

// RowValues turns an entity into form values, the same shape a submitted
// form has.
func (p *EntityPage) RowValues(row Row) url.Values {
	values := url.Values{}
	for _, f := range p.Fields {
		switch f.Kind {
		case KindPassword:
		case KindNationalID:
			prefix, number, found := strings.Cut(display(row[f.Key]), "-")
			if !found {
				prefix, number = f.Default, prefix
			}
			values.Set(f.Key+"_prefix", prefix)
			values.Set(f.Key+"_number", number)
		case KindItems:
			items, _ := row[f.Key].([]interface{})
			for _, it := range items {
				m, ok := it.(map[string]interface{})
				if !ok {
					continue
				}
				values.Add(f.Key+"_dish", display(m["dish_id"]))
				values.Add(f.Key+"_quantity", display(m["quantity"]))
			}
		default:
			values.Set(f.Key, display(row[f.Key]))
		}
	}
	return values
}

// FormFields pairs the fields with values. sources holds the rows of every
// Source collection, keyed by path.
func (p *EntityPage) FormFields(values url.Values, sources map[string][]Row, editing bool) []FormField {
	out := make([]FormField, 0, len(p.Fields))
	for _, f := range p.Fields {
		ff := FormField{Key: f.Key, Label: f.Label, Kind: f.Kind, Required: f.Required}
		value := values.Get(f.Key)
		if value == "" && values.Get(f.Key+"_prefix") == "" && len(values[f.Key+"_dish"]) == 0 {
			value = f.Default
		}

		switch f.Kind {
		case KindPassword:
			ff.Required = f.Required && !editing
		case KindSelect:
			if f.Source != "" {
				ff.Options = sourceOptions(sources[f.Source], f.SourceLabel, value)
			} else {
				ff.Options = choiceOptions(f.Choices, value)
			}
			ff.Value = value
		case KindNationalID:
			prefix := values.Get(f.Key + "_prefix")
			if prefix == "" {
				prefix = f.Default
			}
			ff.Options = choiceOptions(f.Choices, prefix)
			ff.Value = values.Get(f.Key + "_number")
		case KindItems:
			dishes := values[f.Key+"_dish"]
			qtys := values[f.Key+"_quantity"]
			for i, d := range dishes {
				if d == "" {
					continue
				}
				q := ""
				if i < len(qtys) {
					q = qtys[i]
				}
				ff.Items = append(ff.Items, ItemLine{Options: sourceOptions(sources[f.Source], f.SourceLabel, d), Quantity: q})
			}
			for i := 0; i < emptyItemLines; i++ {
				ff.Items = append(ff.Items, ItemLine{Options: sourceOptions(sources[f.Source], f.SourceLabel, ""), Quantity: "1"})
			}
		default:
			ff.Value = value
		}
		out = append(out, ff)
	}
	return out
}

// FormError is a validation failure of a submitted form.
type FormError struct {
	Field   string
	Message string
}

func (e *FormError) Error() string { return e.Message }

func required(f Field) error {
	return &FormError{Field: f.Key, Message: fmt.Sprintf("El campo %s es requerido", f.Label)}
}

// Body builds the JSON body sent upstream from submitted form values.
func (p *EntityPage) Body(values url.Values, creating bool) (map[string]interface{}, error) {
	body := make(map[string]interface{}, len(p.Fields))
	for _, f := range p.Fields {
		raw := strings.TrimSpace(values.Get(f.Key))

		switch f.Kind {
		case KindPassword:
			if raw == "" {
				if creating && f.Required {
					return nil, required(f)
				}
				continue
			}
			body[f.Key] = values.Get(f.Key)

		case KindNumber:
			if raw == "" {
				if f.Required {
					return nil, required(f)
				}
				continue
			}
			n, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
			if err != nil {
				return nil, &FormError{Field: f.Key, Message: fmt.Sprintf("El campo %s debe ser un número", f.Label)}
			}
			if f.Positive && n <= 0 {
				return nil, &FormError{Field: f.Key, Message: fmt.Sprintf("El campo %s debe ser mayor que cero", f.Label)}
			}
			body[f.Key] = n

		case KindSelect:
			if raw == "" {
				if f.Required {
					return nil, required(f)
				}
				if f.Source != "" {
					body[f.Key] = nil
				}
				continue
			}
			if f.Source == "" {
				if !hasChoice(f.Choices, raw) {
					return nil, &FormError{Field: f.Key, Message: fmt.Sprintf("Valor inválido para %s", f.Label)}
				}
				body[f.Key] = raw
				continue
			}
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return nil, &FormError{Field: f.Key, Message: fmt.Sprintf("Valor inválido para %s", f.Label)}
			}
			body[f.Key] = id

		case KindNationalID:
			prefix := strings.TrimSpace(values.Get(f.Key + "_prefix"))
			number := strings.TrimSpace(values.Get(f.Key + "_number"))
			if number == "" {
				if f.Required {
					return nil, required(f)
				}
				continue
			}
			if !hasChoice(f.Choices, prefix) {
				return nil, &FormError{Field: f.Key, Message: fmt.Sprintf("Valor inválido para %s", f.Label)}
			}
			if _, err := strconv.ParseUint(number, 10, 64); err != nil {
				return nil, &FormError{Field: f.Key, Message: fmt.Sprintf("El campo %s debe ser numérico", f.Label)}
			}
			body[f.Key] = prefix + "-" + number

		case KindItems:
			items, err := parseItems(f, values)
			if err != nil {
				return nil, err
			}
			if len(items) == 0 && f.Required {
				return nil, &FormError{Field: f.Key, Message: fmt.Sprintf("Agregue al menos un elemento en %s", f.Label)}
			}
			body[f.Key] = items

		default:
			if raw == "" && f.Required {
				return nil, required(f)
			}
			body[f.Key] = raw
		}
	}
	return body, nil
}

func hasChoice(choices []Option, v string) bool {
	for _, c := range choices {
		if c.Value == v {
			return true
		}
	}
	return false
}

func parseItems(f Field, values url.Values) ([]map[string]interface{}, error) {
	dishes := values[f.Key+"_dish"]
	qtys := values[f.Key+"_quantity"]

	var out []map[string]interface{}
	for i, d := range dishes {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		id, err := strconv.ParseUint(d, 10, 64)
		if err != nil {
			return nil, &FormError{Field: f.Key, Message: fmt.Sprintf("Valor inválido para %s", f.Label)}
		}
		q := 1
		if i < len(qtys) && strings.TrimSpace(qtys[i]) != "" {
			q, err = strconv.Atoi(strings.TrimSpace(qtys[i]))
			if err != nil || q <= 0 {
				return nil, &FormError{Field: f.Key, Message: "La cantidad debe ser un entero mayor que cero"}
			}
		}
		out = append(out, map[string]interface{}{"dish_id": id, "quantity": q})
	}
	return out, nil
}
