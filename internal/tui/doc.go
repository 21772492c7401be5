// Package tui provides a read-only terminal view of a running correction
// loop. It shows the current cycle, how many competency questions pass,
// the failing questions and consistency issues, and a short activity log.
//
// Usage:
//
//	program, app := tui.NewLoopProgram("fix draft.ttl", 4)
//	go func() {
//	    // feed cycles and log lines as the loop runs
//	    program.Send(tui.CycleMsg{Attempt: 0, Passed: 2, Total: 5})
//	    program.Send(tui.LogMsg{Timestamp: time.Now(), Message: "..."})
//	    program.Send(tui.DoneMsg{Err: err})
//	}()
//	program.Run()
//
// Users quit with 'q' or Ctrl+C.
package tui
