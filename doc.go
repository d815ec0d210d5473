// Package vlsiflow is a small, deterministic VLSI physical-design flow:
// place, legalize, route, and verify a netlist in-process, with no external
// tool dependency.
//
// 🚀 What is vlsiflow?
//
//	A thread-safe-by-convention pipeline that brings together:
//
//	  • A global placer: Nesterov gradient descent over an electrostatic
//	    density-penalty field, minimizing half-perimeter wirelength.
//	  • A legalizer: the Abacus dynamic-programming algorithm, snapping
//	    overlapping cells onto disjoint row slots at minimum displacement.
//	  • A global router: A* search over a coarse gcell grid, producing
//	    per-net per-layer routing guides.
//	  • A detailed router: weighted A* search (the shared router/grid kernel)
//	    over a dense 3-D grid with rip-up and reroute, followed by segment
//	    extraction into
//	    manufacturable wires and vias.
//	  • A verifier: independent concurrent short and open checks over the
//	    extracted geometry.
//
// Under the hood, each stage lives in its own package:
//
//	netlist/         — the columnar Store: cells, nets, pins, layers, segments
//	geom/             — shared geometric primitives (points, rects, intersection tests)
//	placer/           — Nesterov placement
//	legalizer/        — Abacus legalization
//	router/grid/      — the dense routing grid and its A* kernel
//	router/global/    — gcell-level global routing
//	router/detailed/  — grid-level detailed routing and segment extraction
//	verify/           — concurrent short/open design-rule checks
//	flow/             — the driver wiring every stage into one Run call
//	config/           — tunables and their defaults, as functional options
//
// A full run:
//
//	report, err := flow.Run(ctx, store, config.New(), logger)
//	if err != nil {
//		// verification failed; report still holds per-stage diagnostics
//	}
package vlsiflow
