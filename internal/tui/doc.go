// Package tui provides the interactive chat for the waver command.
//
// The chat shows the conversation, a live activity panel fed by the
// orchestrator event stream, and an input field. A question may start
// with !simple, !agentic or !adaptive to switch the processing mode.
//
// Usage:
//
//	program, _ := tui.NewChatProgram(ctx, assistant, orch.Events())
//	if _, err := program.Run(); err != nil {
//	    return err
//	}
package tui
