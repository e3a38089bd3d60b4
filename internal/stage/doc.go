// Package stage defines the ad pipeline's stage table: the total order of
// stages, their kinds (processing, review gate, terminal), rollback targets
// for cancellation and failure recovery, human labels, and the static
// regeneration cost model.
//
// Every other component consults this registry instead of hard-coding stage
// names. When you add a stage, update the ordered list, the kind map, the
// rollback map, and the cost table together.
package stage
