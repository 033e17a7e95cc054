// Package notify connects the solver to NATS.
//
// Ingress answers submissions on a request/reply subject, the publisher
// announces every committed tick on a per-session subject, and
// EmbeddedServer runs an in-process NATS server for single-binary
// deployments and tests.
//
// Subjects:
//
//	intents.submit                    request/reply, JSON engine.Submission
//	intents.session.<id>.tick         JSON settlement.Report per committed tick
package notify
