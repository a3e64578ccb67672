package cms

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/maltedev/catalog-sync/internal/models"
)

// EncodeProduct flattens product into bracket-notation form fields, the way
// PHP and WooCommerce parse nested request bodies:
//
//	meta_data[0][key]=original&images[1][id]=17
func EncodeProduct(p *models.PublishedProduct) url.Values {
	form := url.Values{}
	form.Set("name", p.Name)
	form.Set("type", p.Type)
	form.Set("regular_price", p.RegularPrice)
	form.Set("description", p.Description)
	form.Set("short_description", p.ShortDescription)
	form.Set("stock_status", p.StockStatus)

	for i, m := range p.MetaData {
		form.Set(fmt.Sprintf("meta_data[%d][key]", i), m.Key)
		form.Set(fmt.Sprintf("meta_data[%d][value]", i), m.Value)
	}

	for i, img := range p.Images {
		flatten(form, fmt.Sprintf("images[%d]", i), img)
	}

	return form
}

// flatten writes v under prefix. Objects and lists recurse; empty ones produce
// no field and nulls encode as empty strings.
func flatten(form url.Values, prefix string, v any) {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			flatten(form, prefix+"["+k+"]", child)
		}
	case []any:
		for i, child := range val {
			flatten(form, fmt.Sprintf("%s[%d]", prefix, i), child)
		}
	case nil:
		form.Add(prefix, "")
	case string:
		form.Add(prefix, val)
	case json.Number:
		form.Add(prefix, val.String())
	case float64:
		form.Add(prefix, strconv.FormatFloat(val, 'f', -1, 64))
	case bool:
		form.Add(prefix, strconv.FormatBool(val))
	case int:
		form.Add(prefix, strconv.Itoa(val))
	case int64:
		form.Add(prefix, strconv.FormatInt(val, 10))
	default:
		form.Add(prefix, fmt.Sprint(val))
	}
}
