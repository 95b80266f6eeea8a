/*
Package metrics defines and registers the pipeline's Prometheus metrics:
asset/artifact counts, import and job throughput and latency, loader
handle states, and hot-reload/sweep counters. Metrics register at package
init and are exposed over HTTP via Handler.

A Collector periodically samples the two gauge-style metrics (asset and
artifact counts) that have no natural update hook of their own. The other
counters, histograms and the loader-handle gauge are defined and
registered here, but no package in this module updates them, so they stay
at zero.

This package also exposes simple /health, /ready, and /live HTTP handlers
backed by an in-process component health registry (RegisterComponent /
UpdateComponent), independent of the Prometheus registry.
*/
package metrics
