// Package compiler turns CUE pattern definitions into evaluable patterns.
//
// A pattern file declares patterns under the top-level "pattern" struct:
//
//	pattern: rising: {
//		structure: seq: [
//			{type: "Stock", name: "a"},
//			{kleene: {type: "Stock", name: "b"}, max: 3},
//			{not: {type: "Halt", name: "h"}},
//		]
//		where: ["a.price < b.price", {consecutive: "b.price", op: "<"}]
//		within: "5m"
//		policy: {single: ["Stock"], mechanism: "node", freeze: ["a"]}
//	}
//
// An optional "plan" field gives the tree shape explicitly; see parsePlan.
// Without it the left-deep plan is used.
package compiler
