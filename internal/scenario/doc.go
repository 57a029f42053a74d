// Package scenario defines the declarative test scenario model and its file format.
//
// A scenario is an ordered list of steps run against an external target
// system. Each step is one of four kinds:
//
//   - http: issue a request, check the status and body, capture values
//   - ui: drive a browser session through an opaque locator
//   - assert: check a value held in the execution context
//   - wait: poll an http/ui/assert condition until it holds or times out
//
// # Scenario Format
//
//	name: create_then_fetch_rfp
//	description: "POST an RFP and read it back"
//	tags: [api, rfps]
//	steps:
//	  - name: create rfp
//	    http:
//	      method: POST
//	      path: /api/rfps
//	      json: { title: "Test RFP" }
//	      expect_status: [201]
//	      capture: { rfp_id: id }
//	  - name: fetch rfp
//	    http:
//	      method: GET
//	      path: /api/rfps/${rfp_id}
//	      expect_status: [200]
//	      expect_body: { id: "${rfp_id}" }
//
// Files may also be written in CUE; they are evaluated and exported to JSON
// before the same strict decoding and validation runs.
//
// Steps are fatal by default: a failed fatal step causes every later step to
// be skipped. Setting fatal: false lets the run continue, but the scenario
// still fails.
package scenario
