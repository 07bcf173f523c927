package extract

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/MeKo-Tech/petalscan/internal/invoice"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genAmounts generates n two-decimal amounts rendered as text.
func genAmounts(min, max int) gopter.Gen {
	return gen.IntRange(min, max).FlatMap(func(v interface{}) gopter.Gen {
		return gen.SliceOfN(v.(int), gen.Float64Range(0, 9999)).Map(func(vals []float64) string {
			parts := make([]string, len(vals))
			for i, f := range vals {
				parts[i] = fmt.Sprintf("%.2f", f)
			}
			return strings.Join(parts, " ")
		})
	}, reflect.TypeOf(""))
}

// genItemPrefix generates "serial CODE" prefixes such as "12 F123456".
func genItemPrefix() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(1, 999),
		gen.RuneRange('A', 'Z'),
		gen.IntRange(1000, 9999999),
	).Map(func(vals []interface{}) string {
		return fmt.Sprintf("%d %c%d", vals[0].(int), vals[1].(rune), vals[2].(int))
	})
}

func TestPage_IdempotenceProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("same text yields identical records", prop.ForAll(
		func(text string) bool {
			return reflect.DeepEqual(Page(1, text), Page(1, text))
		},
		gen.AnyString(),
	))

	properties.Property("same invoice-like text yields identical records", prop.ForAll(
		func(prefix, desc, amounts string) bool {
			text := "Inv No: X1\n" + prefix + " " + desc + " " + amounts + "\nAmount in words " + amounts
			return reflect.DeepEqual(Page(2, text), Page(2, text))
		},
		genItemPrefix(),
		gen.AlphaString(),
		genAmounts(0, 8),
	))

	properties.TestingRun(t)
}

func TestParseRows_VATPercentProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every item carries the fixed VAT percent", prop.ForAll(
		func(prefix, desc, amounts, continuation string) bool {
			items, _ := ParseRows([]string{prefix + " " + desc + " " + amounts, continuation})
			for _, item := range items {
				if item.VATPercent != invoice.VATPercent {
					return false
				}
			}
			return true
		},
		genItemPrefix(),
		gen.AlphaString(),
		genAmounts(0, 9),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestParseRows_TooFewNumbersProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("rows with fewer than five numbers produce no item", prop.ForAll(
		func(prefix, desc, amounts string) bool {
			items, diags := ParseRows([]string{prefix + " " + desc + " " + amounts})
			return len(items) == 0 && len(diags) == 1
		},
		genItemPrefix(),
		gen.AlphaString(),
		genAmounts(0, 4),
	))

	properties.Property("rows with five or more numbers produce an item unless labelled", prop.ForAll(
		func(prefix, amounts string) bool {
			items, _ := ParseRows([]string{prefix + " Stem " + amounts})
			return len(items) == 1
		},
		genItemPrefix(),
		genAmounts(5, 9),
	))

	properties.TestingRun(t)
}

func TestParseRows_HeaderLabelProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("header label lines never produce items", prop.ForAll(
		func(prefix, label, amounts string) bool {
			items, _ := ParseRows([]string{prefix + " " + label + " " + amounts})
			return len(items) == 0
		},
		genItemPrefix(),
		gen.OneConstOf("S.No", "S No", "SNo", "Stock Code", "STOCKCODE", "Description", "DESCRIPTION", "Qty", "QTY"),
		genAmounts(0, 9),
	))

	properties.TestingRun(t)
}
