// Package juryconsensus implements peer review for submissions the
// automated pipeline could not decide.
//
// Validators pull a review queue, cast approve/reject votes, and the
// module finalizes a submission once the vote quorum is reached. Audit
// items can be spliced into the queue through a port so validators cannot
// tell them apart from genuine submissions.
package juryconsensus
