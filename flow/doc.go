// Package flow wires the placer, legalizer, global router, detailed router
// and verifier into a single Run call.
//
// Run executes every stage in order. A failure in placer, legalizer, or
// either router is logged as a warning and does not stop the pipeline — each
// stage does the best it can with whatever state the previous stage left
// behind, and later stages (notably the verifier) are the actual arbiters of
// whether the result is usable. Only a verifier failure is returned to the
// caller, since it is the one check that can observe the netlist in its
// final, fully-routed state.
package flow
