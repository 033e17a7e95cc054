// Package harness runs scripted game sessions against the real engine and
// checks what they settled.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: move_then_attack
//	description: "What this scenario checks"
//	rules: |
//	  dungeon: enemy_attack: 2
//	create:
//	  actor: A
//	  config: { kind: dungeon, seed: 42, width: 5, height: 5 }
//	ticks:
//	  - submit:
//	      - { actor: A, kind: dungeon.join }
//	  - advance: 2m
//	    submit:
//	      - { actor: A, kind: move, direction: right }
//	      - { actor: B, kind: attack, reject: "unauthenticated", as: A }
//	    expect:
//	      - { seq: 3, status: applied }
//	assertions:
//	  - { type: entity, entity: A, pos: { x: 1, y: 0 }, hp: 10 }
//	  - { type: session, status: ended, result: victory }
//	  - { type: event_count, event: downed, count: 1 }
//	  - { type: settled_count, outcome: rejected, count: 0 }
//
// Each tick step optionally advances the fake wall clock, submits its
// intents through the gateway, then runs one solver beat. The create intent
// is queued before the first step, so it settles in the first tick.
//
// # Assertion Types
//
//   - entity: hp, position, alive, xp or gold of one entity
//   - session: status, result, duel state or winner
//   - event_count: how many events of a type the run produced
//   - settled_count: how many settlements ended with an outcome status
//
// # Determinism
//
// Every run uses a fixed session id, a fake clock and a fresh in-memory
// SQLite store. After the last step the stored log is replayed and its
// digest compared with the live one; a mismatch fails the scenario even
// when every assertion holds.
//
// Golden traces live in testdata/golden and are refreshed with
//
//	go test ./internal/harness -update
package harness
