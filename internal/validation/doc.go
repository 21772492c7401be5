// Package validation checks candidate ontologies and drives their bounded
// correction.
//
// # Overview
//
// A validation cycle runs three stages against one document:
//
//  1. Syntax - the document must parse; failure ends the cycle
//  2. Consistency - reasoning over the parsed graph; issues are recorded
//  3. Competency questions - every question is evaluated and scored
//
// and always produces a report.Report, even when the document does not
// parse. A document is accepted when it parses and every question passes.
// Consistency issues only block acceptance when Options.StrictConsistency
// is set.
//
// # Correction loop
//
// Controller repeats cycles. When a document is rejected and the retry
// budget allows, it asks a Producer for a replacement, passing the failure
// description built by RetryHandler:
//
//	v := validation.NewValidator(log, validation.Options{})
//	c := validation.NewController(v, producer, validation.DefaultRetryConfig(), log)
//
//	out, err := c.Run(ctx, doc, questions)
//	if errors.Is(err, validation.ErrProducerFailure) {
//	    // out.Cycles still holds every cycle that ran
//	}
//	if out.Accepted {
//	    fmt.Println(out.Describe())
//	}
//
// With MaxAttempts = 3 at most four cycles run and the producer is called
// at most three times. Every cycle's report is kept in Outcome.Cycles.
//
// # Error Handling
//
//   - Syntax errors: captured in the report (SyntaxOK = false)
//   - Consistency issues: captured in the report, non-fatal
//   - Query errors: captured on the question's outcome, non-fatal
//   - Producer errors: end the loop; marked with ErrProducerFailure
//
// Context cancellation is observed between cycles only.
package validation
