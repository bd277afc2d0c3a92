// Package orchestrator executes decomposed query plans against the tool
// registry.
//
// A plan's sub-tasks run concurrently up to a per-plan ceiling. A task starts
// only once every dependency has reached a terminal state, and ready tasks
// are dispatched in descending priority. Failed tool calls are retried up to
// a bound; exhausted tasks either satisfy their dependents or cause them to
// be skipped, depending on the failure policy. When every task is accounted
// for, the collected results are synthesized into one of the response
// formats.
//
// Example usage:
//
//	registry := tools.NewDefaultRegistry(store.NewMemory())
//	orch := orchestrator.New(registry)
//	d, _ := decompose.New().Decompose(ctx, "¿Cuántos pedidos y clientes tenemos?")
//	res := orch.ExecuteQueryPlan(ctx, d, map[string]any{"session_id": "s1"})
package orchestrator
