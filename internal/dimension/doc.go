// Package dimension loads tracked-dimension definitions written in CUE.
//
// A definition names the source relation (current truth), the target
// relation (history) and the ordered business columns:
//
//	dimension: products: {
//		source: "products_current"
//		target: "products_history"
//		columns: [
//			{name: "product_name", kind: "text", required: true},
//			{name: "price", kind: "numeric", required: true},
//		]
//	}
//
// Every definition is unified with the #Dimension schema (schema.cue) and
// then checked by record.Schema.Validate. The built-in "sales" dimension
// (sales.cue) is used when no directory is given.
package dimension
