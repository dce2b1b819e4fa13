// Package harness runs scripted RUM event scenarios through the engine and
// checks the documents they produce.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: resource_on_home
//	description: "What this scenario validates"
//	settings:
//	  sample_rate: 42
//	  fail_kinds: [error]
//	steps:
//	  - event: start_view
//	    fields: { key: { id: home, name: Home } }
//	  - after: 50ms
//	    event: start_resource
//	    fields: { key: r1, url: "https://api.example.com/cart" }
//	assertions:
//	  - type: document_count
//	    kind: resource
//	    count: 1
//	  - type: view_field
//	    view: Home
//	    path: view_detail.resource.count
//	    expect: 1
//
// Each step advances the manual clock by `after` and enqueues the event named
// by `event`. Unless `fields` sets `time` explicitly, the event is stamped
// with the clock reading. Fields are decoded strictly: an unknown field is an
// error. Pending work, including write acknowledgements, is drained after
// every step.
//
// # Assertion Types
//
//   - document_count: exactly N documents, optionally of one kind and view
//   - document_order: kinds appear in this order (not necessarily adjacent)
//   - document_field: a field of the nth matching document (default first)
//   - view_field: a field of the nth view document of a view (default last)
//
// Paths are dotted keys into the document JSON; numeric segments index
// arrays. Expected values are compared by their canonical JSON form, so
// `expect: 42` matches both 42 and 42.0.
//
// # Deterministic Testing
//
// All scenarios execute with a manual clock, sequential ids (id-1, id-2, ...)
// and a sampler that keeps every session whose rate is above zero, so the
// same scenario always writes byte-identical documents. RunWithGolden
// compares that stream against testdata/golden/<name>.golden.
package harness
