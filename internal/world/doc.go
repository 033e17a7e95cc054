// Package world holds the per-session simulation state that the solver reads
// and mutates.
//
// A State is owned by exactly one session. Only the session's tick mutates it,
// and it always does so on a Clone, so readers holding an older snapshot never
// observe a half-applied tick.
//
// # Grid model
//
// Dungeon sessions have a Width x Height grid. Every coordinate holds at most
// one occupant. The occupancy index is maintained incrementally by Place, Move,
// Down and Remove, and Check rebuilds it from scratch to detect drift.
//
//   - Players keep their cell when downed (the body blocks movement) and can be
//     revived in place.
//   - Enemies vacate their cell when downed.
//   - Obstacles are either the wall border (Border=true) or explicit cells.
//
// Duel and rumble sessions carry no grid; their state lives in Duel and Rumble.
//
// # Equality
//
// Two states are equal when their Digest values match. Digest hashes the
// canonical JSON of the exported fields, so unexported indexes never affect it.
package world
