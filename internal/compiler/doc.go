// Package compiler turns CUE scenario sources into JSON documents that the
// scenario package decodes like any YAML file.
//
// CUE is useful for scenario suites that share fragments:
//
//	_base: "/api/rfps"
//
//	scenario: {
//		name: "rfp_not_found"
//		steps: [{
//			name: "missing id"
//			http: {method: "GET", path: _base + "/nonexistent-1", expect_status: [404]}
//		}]
//	}
//
// Hidden fields and definitions are not exported, so only the scenario
// itself reaches the strict decoder.
package compiler
