// Package factory instantiates modules named in configuration. A module is a
// type string plus raw settings; its factory decodes the settings with
// Decode and returns the implementation. Metrics sinks are registered this
// way by infra/metrics:
//
//	sinks:
//	  - type: influx
//	    conf: {url: "http://localhost:8086", bucket: planner}
package factory
