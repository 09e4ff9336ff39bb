// Package submissionpipeline implements the Submission Verification Pipeline
// inside the verification context.
//
// The module owns submission intake, the geofence/timing pre-check, AI
// content scoring, and the decision router that either finalizes a
// submission or hands it to the jury. It keeps business rules in
// application/domain layers and isolates infrastructure concerns behind
// ports and adapters.
package submissionpipeline
