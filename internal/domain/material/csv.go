package material

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/chemlens/chemlens/pkg/errors"
)

// Canonical column names recognized in uploaded procurement files.  Header
// matching is case-insensitive and tolerant of spaces vs underscores.
var csvColumns = map[string]string{
	"description":     "description",
	"material":        "description",
	"sub category":    "sub_category",
	"sub_category":    "sub_category",
	"subcategory":     "sub_category",
	"commodity":       "commodity",
	"brand":           "brands",
	"brands":          "brands",
	"item code":       "item_code",
	"item_code":       "item_code",
	"plant":           "plant",
	"factory":         "plant",
	"region":          "region",
	"cluster":         "cluster",
	"quantity":        "quantity",
	"qty":             "quantity",
	"spend":           "spend_value",
	"spend value":     "spend_value",
	"spend_value":     "spend_value",
}

func canonicalColumn(header string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(header))
	key = strings.ReplaceAll(key, "-", " ")
	if col, ok := csvColumns[key]; ok {
		return col, true
	}
	return key, false
}

// ParseRawItems reads an uploaded procurement CSV into RawItems.  The first
// row is the header; unrecognized columns are preserved in Extra.  Rows with
// an empty description are skipped, not rejected.
func ParseRawItems(r io.Reader) ([]RawItem, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMaterialImportFailed, "reading csv header")
	}

	type column struct {
		name  string
		known bool
	}
	cols := make([]column, len(header))
	for i, h := range header {
		name, known := canonicalColumn(h)
		cols[i] = column{name: name, known: known}
	}

	var items []RawItem
	row := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeMaterialImportFailed, "reading csv row")
		}
		row++

		item := RawItem{RowNumber: row}
		for i, v := range record {
			if i >= len(cols) {
				break
			}
			v = strings.TrimSpace(v)
			col := cols[i]
			if !col.known {
				if v != "" {
					if item.Extra == nil {
						item.Extra = map[string]string{}
					}
					item.Extra[col.name] = v
				}
				continue
			}
			switch col.name {
			case "description":
				item.Description = v
			case "sub_category":
				item.SubCategory = v
			case "commodity":
				item.Commodity = v
			case "brands":
				item.Brands = v
			case "item_code":
				item.ItemCode = v
			case "plant":
				item.Plant = v
			case "region":
				item.Region = v
			case "cluster":
				item.Cluster = v
			case "quantity":
				item.Quantity, _ = strconv.ParseFloat(v, 64)
			case "spend_value":
				item.SpendValue, _ = strconv.ParseFloat(v, 64)
			}
		}
		if item.Description == "" {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}
